package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	domrepo "LoadCast/internal/domain/repository"
)

// BadgerBlobStore implements BlobStore on an embedded BadgerDB. Default
// persistence backend; survives restarts without an external service.
type BadgerBlobStore struct {
	db *badger.DB
}

func NewBadgerBlobStore(path string) (*BadgerBlobStore, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", path, err)
	}
	return &BadgerBlobStore{db: db}, nil
}

var _ domrepo.BlobStore = (*BadgerBlobStore)(nil)

func (s *BadgerBlobStore) Save(ctx context.Context, key string, blob []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), blob)
	})
	if err != nil {
		return fmt.Errorf("badger set %s: %w", key, err)
	}
	return nil
}

func (s *BadgerBlobStore) Load(ctx context.Context, key string) ([]byte, bool, error) {
	var blob []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			blob = append([]byte{}, val...)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("badger get %s: %w", key, err)
	}
	return blob, true, nil
}

func (s *BadgerBlobStore) Delete(ctx context.Context, key string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("badger delete %s: %w", key, err)
	}
	return nil
}

func (s *BadgerBlobStore) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger keys: %w", err)
	}
	return keys, nil
}

func (s *BadgerBlobStore) Close() error {
	return s.db.Close()
}
