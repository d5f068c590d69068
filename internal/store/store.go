// Package store maps model descriptors to files under the models directory.
// It never touches the network; downloads are written by package fetch.
package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"tutord/internal/common/fsutil"
	"tutord/pkg/types"
)

// Store resolves local model paths under a single base directory.
type Store struct {
	dir string
}

// New returns a Store rooted at dir. A leading '~' is expanded and the
// directory is made absolute; it does not need to exist yet.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("empty models dir")
	}
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	return &Store{dir: abs}, nil
}

// Dir returns the absolute base directory.
func (s *Store) Dir() string { return s.dir }

// LocalPath is {dir}/{id}. Descriptor validation rejects ids with separators,
// so distinct ids never share a path.
func (s *Store) LocalPath(d types.ModelDescriptor) string {
	return filepath.Join(s.dir, d.ID)
}

// Exists reports whether the model file is present.
func (s *Store) Exists(d types.ModelDescriptor) bool {
	return fsutil.IsRegularFile(s.LocalPath(d))
}

// EnsureDir creates the base directory if needed.
func (s *Store) EnsureDir() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create models dir: %w", err)
	}
	return nil
}

// Remove deletes the model file if present.
func (s *Store) Remove(d types.ModelDescriptor) error {
	return fsutil.RemoveIfExists(s.LocalPath(d))
}

// Files lists the model files present in the directory, sorted by name.
// Partial downloads and subdirectories are skipped; a missing directory
// yields an empty list.
func (s *Store) Files() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasSuffix(e.Name(), types.PartialSuffix) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}
