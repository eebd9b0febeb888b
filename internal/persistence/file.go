// SPDX-License-Identifier: MIT

package persistence

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
)

// FileStore writes one file per key below a directory.
// Writes are atomic and durable: renameio fsyncs the temp file before the rename.
type FileStore struct {
	dir string
}

// NewFileStore creates dir if needed and returns a store rooted there.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("file store: directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("file store: create dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(key string) string {
	// Escape so keys can never traverse out of dir.
	return filepath.Join(s.dir, url.PathEscape(key)+".json")
}

func (s *FileStore) Load(_ context.Context, key string) ([]byte, bool, error) {
	if err := checkKey(key); err != nil {
		return nil, false, err
	}
	// #nosec G304 -- path is derived from an escaped key below the store dir
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("file store: read %q: %w", key, err)
	}
	return data, true, nil
}

func (s *FileStore) Save(_ context.Context, key string, data []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if err := renameio.WriteFile(s.path(key), data, 0o600); err != nil {
		return fmt.Errorf("file store: write %q: %w", key, err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }
