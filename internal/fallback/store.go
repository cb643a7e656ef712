package fallback

import (
	"fmt"
	"os"
	"path/filepath"
)

// Store is read-only access to cached plan artifacts.
type Store interface {
	// Exists must not read the artifact.
	Exists(name string) bool
	Read(name string) ([]byte, error)
}

// DirStore serves artifacts from a directory on disk.
type DirStore struct {
	Dir string
}

func (s DirStore) path(name string) (string, error) {
	if name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid artifact name %q", name)
	}
	return filepath.Join(s.Dir, name), nil
}

func (s DirStore) Exists(name string) bool {
	p, err := s.path(name)
	if err != nil {
		return false
	}
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

func (s DirStore) Read(name string) ([]byte, error) {
	p, err := s.path(name)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(p)
}
