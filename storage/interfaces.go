package storage

import (
	"context"

	"github.com/lexemelabs/semsearch/core"
)

// EntryStore persists embedding cache entries keyed by fingerprint.
// Implementations must be thread-safe and support concurrent access.
type EntryStore interface {
	// GetEntry retrieves a cache entry by fingerprint.
	// Returns ErrNotFound if the entry doesn't exist.
	GetEntry(ctx context.Context, fp core.Fingerprint) (*core.CacheEntry, error)

	// PutEntry stores a cache entry, overwriting any existing entry with
	// the same fingerprint. Sets InsertedAt if not already set and always
	// refreshes AccessedAt.
	PutEntry(ctx context.Context, entry *core.CacheEntry) error

	// TouchEntry refreshes the access timestamp of an existing entry.
	// Missing entries are ignored.
	TouchEntry(ctx context.Context, fp core.Fingerprint) error

	// DeleteEntries removes entries by fingerprint. Missing entries are
	// ignored.
	DeleteEntries(ctx context.Context, fps ...core.Fingerprint) error

	// CountEntries returns the number of stored entries.
	CountEntries(ctx context.Context) (int, error)

	// PruneEntries removes least-recently-accessed entries until at most
	// maxEntries remain. Returns the number of entries removed.
	PruneEntries(ctx context.Context, maxEntries int) (int, error)

	// Close closes the store and releases resources.
	Close() error
}

// ResponseStore caches raw document-source responses (e.g. fetched article
// XML) so repeat fetches can skip the network.
// Implementations must be thread-safe.
type ResponseStore interface {
	// GetResponse retrieves a cached response body by key.
	// Returns ErrNotFound if no response is cached under the key.
	GetResponse(ctx context.Context, key string) ([]byte, error)

	// PutResponse stores a response body under the key.
	PutResponse(ctx context.Context, key string, body []byte) error

	// Close closes the store and releases resources.
	Close() error
}
