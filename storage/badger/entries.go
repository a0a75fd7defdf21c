package badger

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/lexemelabs/semsearch/core"
	"github.com/lexemelabs/semsearch/storage"
)

// EntryStore implements storage.EntryStore for BadgerDB.
type EntryStore struct {
	backend *Backend
	logger  *slog.Logger
}

var _ storage.EntryStore = (*EntryStore)(nil)

// NewEntryStore creates a new EntryStore.
func NewEntryStore(backend *Backend) (*EntryStore, error) {
	if backend == nil {
		return nil, errors.New("backend required")
	}
	return &EntryStore{
		backend: backend,
		logger:  slog.Default().With("component", "entry-store"),
	}, nil
}

// Close releases resources. EntryStore has no resources of its own; the
// backend is closed by its owner.
func (s *EntryStore) Close() error {
	return nil
}

// GetEntry retrieves a cache entry by fingerprint.
func (s *EntryStore) GetEntry(ctx context.Context, fp core.Fingerprint) (*core.CacheEntry, error) {
	var entry *core.CacheEntry

	err := s.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeEntryKey(fp))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			entry, err = storage.UnmarshalCacheEntry(val)
			return err
		})
	}, false)

	if err != nil {
		return nil, err
	}
	return entry, nil
}

// PutEntry stores a cache entry, overwriting any existing one.
func (s *EntryStore) PutEntry(ctx context.Context, entry *core.CacheEntry) error {
	now := time.Now().UTC()
	if entry.InsertedAt.IsZero() {
		entry.InsertedAt = now
	}
	entry.AccessedAt = now

	return s.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeEntryKey(entry.Fingerprint), storage.MarshalCacheEntry(entry)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// TouchEntry refreshes the access timestamp of an existing entry.
func (s *EntryStore) TouchEntry(ctx context.Context, fp core.Fingerprint) error {
	return s.backend.WithTx(func(tx *badger.Txn) error {
		key := makeEntryKey(fp)
		item, err := tx.Get(key)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}

		var entry *core.CacheEntry
		err = item.Value(func(val []byte) error {
			entry, err = storage.UnmarshalCacheEntry(val)
			return err
		})
		if err != nil {
			// A corrupt entry is not worth failing a touch over.
			s.logger.Warn("skipping touch of unreadable entry", "fingerprint", fp, "err", err)
			return nil
		}

		entry.AccessedAt = time.Now().UTC()
		if err := tx.Set(key, storage.MarshalCacheEntry(entry)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// DeleteEntries removes entries by fingerprint.
func (s *EntryStore) DeleteEntries(ctx context.Context, fps ...core.Fingerprint) error {
	if len(fps) == 0 {
		return nil
	}
	return s.backend.WithTx(func(tx *badger.Txn) error {
		for _, fp := range fps {
			if err := tx.Delete(makeEntryKey(fp)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// CountEntries returns the number of stored entries.
func (s *EntryStore) CountEntries(ctx context.Context) (int, error) {
	count := 0
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(entryPrefix + ":")
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}

// PruneEntries removes least-recently-accessed entries until at most
// maxEntries remain.
func (s *EntryStore) PruneEntries(ctx context.Context, maxEntries int) (int, error) {
	if maxEntries < 0 {
		maxEntries = 0
	}

	type aged struct {
		fp         core.Fingerprint
		accessedAt time.Time
	}
	var all []aged

	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(entryPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var entry *core.CacheEntry
			err := iter.Item().Value(func(val []byte) error {
				var err error
				entry, err = storage.UnmarshalCacheEntry(val)
				return err
			})
			if err != nil {
				// Unreadable entries are pruned first.
				all = append(all, aged{fp: fingerprintFromKey(iter.Item().Key())})
				continue
			}
			all = append(all, aged{fp: entry.Fingerprint, accessedAt: entry.AccessedAt})
		}
		return nil
	}, false)
	if err != nil {
		return 0, err
	}

	if len(all) <= maxEntries {
		return 0, nil
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].accessedAt.Before(all[j].accessedAt)
	})

	victims := make([]core.Fingerprint, 0, len(all)-maxEntries)
	for _, a := range all[:len(all)-maxEntries] {
		victims = append(victims, a.fp)
	}
	if err := s.DeleteEntries(ctx, victims...); err != nil {
		return 0, err
	}
	return len(victims), nil
}

// fingerprintFromKey recovers the fingerprint from an entry key.
func fingerprintFromKey(key []byte) core.Fingerprint {
	prefix := len(entryPrefix) + 1
	if len(key) < prefix+8 {
		return 0
	}
	var fp uint64
	for _, b := range key[prefix : prefix+8] {
		fp = fp<<8 | uint64(b)
	}
	return core.Fingerprint(fp)
}
