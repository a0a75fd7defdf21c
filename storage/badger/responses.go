package badger

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v4"

	"github.com/lexemelabs/semsearch/storage"
)

// ResponseStore implements storage.ResponseStore for BadgerDB.
type ResponseStore struct {
	backend *Backend
}

var _ storage.ResponseStore = (*ResponseStore)(nil)

// NewResponseStore creates a new ResponseStore.
func NewResponseStore(backend *Backend) (*ResponseStore, error) {
	if backend == nil {
		return nil, errors.New("backend required")
	}
	return &ResponseStore{backend: backend}, nil
}

// Close releases resources. ResponseStore has no resources of its own.
func (s *ResponseStore) Close() error {
	return nil
}

// GetResponse retrieves a cached response body by key.
func (s *ResponseStore) GetResponse(ctx context.Context, key string) ([]byte, error) {
	var body []byte
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeResponseKey(key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		body, err = item.ValueCopy(nil)
		return err
	}, false)
	if err != nil {
		return nil, err
	}
	return body, nil
}

// PutResponse stores a response body under the key.
func (s *ResponseStore) PutResponse(ctx context.Context, key string, body []byte) error {
	return s.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeResponseKey(key), body); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}
