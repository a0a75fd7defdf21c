package badger

import (
	"encoding/binary"

	"github.com/lexemelabs/semsearch/core"
)

// Key prefixes for different data types
const (
	entryPrefix    = "embent"
	responsePrefix = "srcres"
)

// makeEntryKey generates a key for a cache entry by fingerprint.
// The fingerprint is written BigEndian so keys sort consistently.
func makeEntryKey(fp core.Fingerprint) []byte {
	prefix := entryPrefix + ":"
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(fp))
	return buf
}

// makeResponseKey generates a key for a cached source response.
func makeResponseKey(key string) []byte {
	return []byte(responsePrefix + ":" + key)
}
