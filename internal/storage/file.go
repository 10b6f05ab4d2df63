// internal/storage/file.go
package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"libracat/internal/catalog"
	"libracat/internal/flatfile"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps the catalog in a flat file. Saves go to a temporary
// file in the same directory that is then renamed over the catalog.
type FileStore struct {
	path string

	mu     sync.Mutex
	digest [sha256.Size]byte
	known  bool
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Path() string {
	return s.path
}

// Load reads the catalog. A missing file is an empty catalog.
func (s *FileStore) Load(ctx context.Context) ([]catalog.Item, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.remember(nil)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	s.remember(data)

	items, err := flatfile.Decode(bytes.NewReader(data))
	if err != nil {
		return items, fmt.Errorf("parse %s: %w", s.path, err)
	}
	return items, nil
}

// Save rewrites the whole file.
func (s *FileStore) Save(ctx context.Context, items []catalog.Item) error {
	var buf bytes.Buffer
	if err := flatfile.Encode(&buf, items); err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}

	s.remember(buf.Bytes())
	return nil
}

// Modified reports whether the file differs from what this store last
// read or wrote.
func (s *FileStore) Modified() (bool, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		data, err = nil, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", s.path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.known || sha256.Sum256(data) != s.digest, nil
}

func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) remember(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.digest = sha256.Sum256(data)
	s.known = true
}
