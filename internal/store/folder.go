package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FolderStore keeps each tile as a file named after its key.
type FolderStore struct {
	dir string
}

// NewFolderStore creates dir if needed and returns a store writing into it.
func NewFolderStore(dir string) (*FolderStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create tile directory: %w", err)
	}
	return &FolderStore{dir: dir}, nil
}

// Dir returns the directory tiles are written to.
func (s *FolderStore) Dir() string {
	return s.dir
}

// Path returns the file path of a tile.
func (s *FolderStore) Path(key Key) string {
	return filepath.Join(s.dir, key.Name())
}

func (s *FolderStore) Has(key Key) (bool, error) {
	_, err := os.Stat(s.Path(key))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat tile %s: %w", key, err)
}

// Put writes the tile through a temporary file so readers never see a
// partial image.
func (s *FolderStore) Put(key Key, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, "."+key.Name()+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for tile %s: %w", key, err)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to write tile %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to close tile %s: %w", key, err)
	}

	if err := os.Rename(tmp.Name(), s.Path(key)); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to move tile %s into place: %w", key, err)
	}

	return nil
}

func (s *FolderStore) Get(key Key) ([]byte, error) {
	data, err := os.ReadFile(s.Path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrTileNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read tile %s: %w", key, err)
	}
	return data, nil
}

// Close is a no-op.
func (s *FolderStore) Close() error {
	return nil
}
