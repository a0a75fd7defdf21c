package core

import (
	"encoding/binary"
	"strconv"
	"strings"

	"github.com/go-crypt/x/blake2b"
)

// Fingerprint is a stable 64-bit content hash of normalized text, used as
// the embedding cache key. Identical text (after normalization) always
// yields the identical fingerprint, across process restarts.
type Fingerprint uint64

// NormalizeText canonicalizes text for fingerprinting: runs of whitespace
// collapse to a single space and leading/trailing whitespace is dropped.
// Case is preserved, since embedding models are case-sensitive.
func NormalizeText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// FingerprintOf computes the fingerprint of text after normalization
// using BLAKE2b content hashing.
func FingerprintOf(text string) Fingerprint {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(NormalizeText(text)))
	sum := h.Sum(nil)
	return Fingerprint(binary.LittleEndian.Uint64(sum))
}

// String renders the fingerprint as a hex key.
func (f Fingerprint) String() string {
	return strconv.FormatUint(uint64(f), 16)
}
