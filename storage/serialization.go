// Copyright 2025 Lexeme Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package storage

import (
	"fmt"
	"time"

	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"

	"github.com/lexemelabs/semsearch/core"
)

// Cache entries are serialized with MUS: fingerprint, vector length,
// vector components (fixed-width float32), then insertion and access
// timestamps as microseconds since the epoch.

// MarshalCacheEntry serializes a CacheEntry to bytes.
func MarshalCacheEntry(entry *core.CacheEntry) []byte {
	size := varint.Uint64.Size(uint64(entry.Fingerprint)) +
		varint.Int.Size(len(entry.Vector)) +
		varint.Int64.Size(entry.InsertedAt.UnixMicro()) +
		varint.Int64.Size(entry.AccessedAt.UnixMicro())
	for _, c := range entry.Vector {
		size += raw.Float32.Size(c)
	}

	buf := make([]byte, size)
	n := varint.Uint64.Marshal(uint64(entry.Fingerprint), buf)
	n += varint.Int.Marshal(len(entry.Vector), buf[n:])
	for _, c := range entry.Vector {
		n += raw.Float32.Marshal(c, buf[n:])
	}
	n += varint.Int64.Marshal(entry.InsertedAt.UnixMicro(), buf[n:])
	varint.Int64.Marshal(entry.AccessedAt.UnixMicro(), buf[n:])
	return buf
}

// UnmarshalCacheEntry deserializes a CacheEntry from bytes.
// Returns ErrSerializationFailed on malformed input.
func UnmarshalCacheEntry(data []byte) (*core.CacheEntry, error) {
	fp, n, err := varint.Uint64.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: fingerprint: %w", ErrSerializationFailed, err)
	}

	length, m, err := varint.Int.Unmarshal(data[n:])
	if err != nil {
		return nil, fmt.Errorf("%w: vector length: %w", ErrSerializationFailed, err)
	}
	n += m
	if length < 0 || length > (len(data)-n)/4 {
		return nil, fmt.Errorf("%w: vector length %d exceeds payload", ErrTruncatedData, length)
	}

	vector := make([]float32, length)
	for i := range vector {
		vector[i], m, err = raw.Float32.Unmarshal(data[n:])
		if err != nil {
			return nil, fmt.Errorf("%w: vector component %d: %w", ErrSerializationFailed, i, err)
		}
		n += m
	}

	insertedAt, m, err := varint.Int64.Unmarshal(data[n:])
	if err != nil {
		return nil, fmt.Errorf("%w: inserted at: %w", ErrSerializationFailed, err)
	}
	n += m
	accessedAt, _, err := varint.Int64.Unmarshal(data[n:])
	if err != nil {
		return nil, fmt.Errorf("%w: accessed at: %w", ErrSerializationFailed, err)
	}

	return &core.CacheEntry{
		Fingerprint: core.Fingerprint(fp),
		Vector:      vector,
		InsertedAt:  time.UnixMicro(insertedAt).UTC(),
		AccessedAt:  time.UnixMicro(accessedAt).UTC(),
	}, nil
}
