package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexemelabs/semsearch/core"
)

func TestCacheEntrySerialization(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		now := time.Now().UTC().Truncate(time.Microsecond)
		entry := &core.CacheEntry{
			Fingerprint: core.FingerprintOf("some section text"),
			Vector:      []float32{0.25, -0.5, 1.0, 0},
			InsertedAt:  now.Add(-time.Hour),
			AccessedAt:  now,
		}

		got, err := UnmarshalCacheEntry(MarshalCacheEntry(entry))
		require.NoError(t, err)
		assert.Equal(t, entry.Fingerprint, got.Fingerprint)
		assert.Equal(t, entry.Vector, got.Vector)
		assert.True(t, entry.InsertedAt.Equal(got.InsertedAt))
		assert.True(t, entry.AccessedAt.Equal(got.AccessedAt))
	})

	t.Run("empty vector", func(t *testing.T) {
		entry := &core.CacheEntry{Fingerprint: 42, InsertedAt: time.Now(), AccessedAt: time.Now()}
		got, err := UnmarshalCacheEntry(MarshalCacheEntry(entry))
		require.NoError(t, err)
		assert.Empty(t, got.Vector)
	})

	t.Run("truncated payload", func(t *testing.T) {
		entry := &core.CacheEntry{
			Fingerprint: 7,
			Vector:      []float32{1, 2, 3},
			InsertedAt:  time.Now(),
			AccessedAt:  time.Now(),
		}
		data := MarshalCacheEntry(entry)

		_, err := UnmarshalCacheEntry(data[:len(data)/2])
		assert.Error(t, err)
	})

	t.Run("garbage input", func(t *testing.T) {
		_, err := UnmarshalCacheEntry([]byte{0xff})
		assert.Error(t, err)
	})
}
