package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Store manages one service's slice of the archive: a root directory that
// holds numbered folders, each capped at the configured capacity.
type Store struct {
	root      string
	allocator *Allocator[string]
}

// NewStore creates a store rooted at dir. The directory is created if it
// does not exist yet.
func NewStore(dir string, folderCapacity int) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	s := &Store{root: dir}
	s.allocator = NewAllocator(folderCapacity, s.openFolder)
	return s, nil
}

// openFolder creates the numbered folder if needed and counts its files.
func (s *Store) openFolder(ordinal int) (string, int, error) {
	dir := filepath.Join(s.root, strconv.Itoa(ordinal))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", 0, fmt.Errorf("failed to create folder: %w", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", 0, fmt.Errorf("failed to read folder: %w", err)
	}

	count := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			count++
		}
	}

	return dir, count, nil
}

// Save writes data into the next folder with room, using a temporary file
// and rename so a crash never leaves a half-written screenshot that a later
// run would mistake for an archived post. It returns the saved file's path.
func (s *Store) Save(filename string, data []byte) (string, error) {
	dir, err := s.allocator.Allocate()
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, filename)
	tempFile := path + ".tmp"

	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to write temporary file: %w", err)
	}

	if err := os.Rename(tempFile, path); err != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to rename temporary file: %w", err)
	}

	s.allocator.Record()
	return path, nil
}

// Root returns the store's root directory.
func (s *Store) Root() string {
	return s.root
}
