package blobstore

import (
	"context"
	"os"
	"path/filepath"
)

// FSStore implements Store against a local directory tree, one file per
// key. Used by the CLI in batch mode and by tests.
type FSStore struct {
	Root string
}

// NewFSStore returns a Store rooted at dir.
func NewFSStore(dir string) *FSStore {
	return &FSStore{Root: dir}
}

func (s *FSStore) path(key string) string {
	return filepath.Join(s.Root, filepath.FromSlash(key))
}

// Get implements Store.
func (s *FSStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	return data, err
}

// Put implements Store. contentType is ignored: the local filesystem has no
// notion of MIME type.
func (s *FSStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	p := s.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	return os.WriteFile(p, data, 0o644)
}
