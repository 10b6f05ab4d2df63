// internal/storage/badger.go
package storage

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"libracat/internal/catalog"

	"github.com/dgraph-io/badger/v4"
)

const itemPrefix = "item/"

// BadgerStore keeps one JSON value per catalog position. Keys sort in
// catalog order, so iteration returns items in insertion order.
type BadgerStore struct {
	db *badger.DB
}

func OpenBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	return openBadger(opts)
}

// OpenInMemoryBadgerStore opens a badger database that never touches disk.
func OpenInMemoryBadgerStore() (*BadgerStore, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	return openBadger(opts)
}

func openBadger(opts badger.Options) (*BadgerStore, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Load(ctx context.Context) ([]catalog.Item, error) {
	var items []catalog.Item
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(itemPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var item catalog.Item
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &item)
			})
			if err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			items = append(items, item)
		}
		return nil
	})
	if err != nil {
		return items, fmt.Errorf("load catalog from badger: %w", err)
	}
	return items, nil
}

// Save replaces every stored item in a single transaction.
func (s *BadgerStore) Save(ctx context.Context, items []catalog.Item) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		stale, err := existingKeys(txn)
		if err != nil {
			return err
		}
		for _, key := range stale {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}

		for i, item := range items {
			val, err := json.Marshal(item)
			if err != nil {
				return fmt.Errorf("encode item %d: %w", item.ID, err)
			}
			if err := txn.Set(positionKey(i), val); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save catalog to badger: %w", err)
	}
	return nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func existingKeys(txn *badger.Txn) ([][]byte, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	var keys [][]byte
	prefix := []byte(itemPrefix)
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	return keys, nil
}

func positionKey(pos int) []byte {
	key := make([]byte, len(itemPrefix)+8)
	copy(key, itemPrefix)
	binary.BigEndian.PutUint64(key[len(itemPrefix):], uint64(pos))
	return key
}
