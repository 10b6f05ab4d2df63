// internal/storage/store.go
package storage

import (
	"context"
	"fmt"
	"libracat/internal/catalog"
	"sync"
)

// Backend is a catalog store that owns resources.
type Backend interface {
	catalog.Store
	Close() error
}

// Config selects and locates a backend.
type Config struct {
	Backend string
	Path    string
	DSN     string
}

// Open returns the backend named by cfg.Backend.
func Open(ctx context.Context, cfg Config) (Backend, error) {
	switch cfg.Backend {
	case "", "file":
		if cfg.Path == "" {
			return nil, fmt.Errorf("file backend: path is required")
		}
		return NewFileStore(cfg.Path), nil
	case "memory":
		return NewMemoryStore(), nil
	case "badger":
		if cfg.Path == "" {
			return nil, fmt.Errorf("badger backend: path is required")
		}
		s, err := OpenBadgerStore(cfg.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "sqlite":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = cfg.Path
		}
		return openSQL(ctx, "sqlite", dsn)
	case "postgres":
		return openSQL(ctx, "postgres", cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func openSQL(ctx context.Context, driver, dsn string) (Backend, error) {
	s, err := OpenSQLStore(ctx, driver, dsn)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// MemoryStore keeps the catalog in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	items []catalog.Item
}

func NewMemoryStore(items ...catalog.Item) *MemoryStore {
	return &MemoryStore{items: copyItems(items)}
}

func (s *MemoryStore) Load(ctx context.Context) ([]catalog.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyItems(s.items), nil
}

func (s *MemoryStore) Save(ctx context.Context, items []catalog.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = copyItems(items)
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func copyItems(items []catalog.Item) []catalog.Item {
	out := make([]catalog.Item, len(items))
	copy(out, items)
	return out
}
