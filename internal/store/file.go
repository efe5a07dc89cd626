package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileStore keeps one JSON file per key inside a directory.
type FileStore struct {
	dir string
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a store rooted at dir. The directory is created on the
// first write.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Dir returns the root directory.
func (s *FileStore) Dir() string {
	return s.dir
}

// Location returns the file path used for key.
func (s *FileStore) Location(key string) string {
	return filepath.Join(s.dir, fileName(key))
}

// Exists reports whether a file is present for key.
func (s *FileStore) Exists(key string) (bool, error) {
	info, err := os.Stat(s.Location(key))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat license file: %w", err)
	}
	return info.Mode().IsRegular(), nil
}

// Read returns the file content for key, or ErrNotFound.
func (s *FileStore) Read(key string) ([]byte, error) {
	data, err := os.ReadFile(s.Location(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read license file: %w", err)
	}
	return data, nil
}

// Write replaces the file for key. The content is written to a temporary file
// in the same directory and renamed over the target so a crash never leaves a
// half-written license behind.
func (s *FileStore) Write(key string, data []byte) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("create license directory %s: %w", s.dir, err)
	}

	tmp, err := os.CreateTemp(s.dir, ".license-*.tmp")
	if err != nil {
		return fmt.Errorf("create temporary license file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write license file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod license file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close license file: %w", err)
	}

	if err := os.Rename(tmpName, s.Location(key)); err != nil {
		return fmt.Errorf("replace license file: %w", err)
	}
	return nil
}

// fileName maps a key to a single path element.
func fileName(key string) string {
	safe := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		if r < 0x20 {
			return '_'
		}
		return r
	}, key)
	if safe == "" || safe == "." || safe == ".." {
		safe = "_"
	}
	return safe + ".json"
}
