// Package archive owns the on-disk layout of archived screenshots: the
// duplicate index built from prior runs, capacity-bounded numbered folders,
// and atomic saves into them.
package archive

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Index records which post IDs already exist somewhere under a service's
// archive root. It is built once at startup by scanning every file in the
// tree, regardless of which numbered folder it landed in.
type Index struct {
	ids map[string]bool
	mu  sync.RWMutex
}

// BuildIndex walks root recursively and indexes every regular file by its
// base name with the extension stripped. A missing root yields an empty
// index, not an error: the first run against a fresh disk is normal.
func BuildIndex(root string) (*Index, error) {
	idx := &Index{ids: make(map[string]bool)}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		idx.ids[StripExtension(d.Name())] = true
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return idx, nil
		}
		return nil, fmt.Errorf("failed to scan archive root: %w", err)
	}

	return idx, nil
}

// StripExtension removes everything from the last dot onward. A name with
// no dot is returned whole, so extensionless files still index correctly.
func StripExtension(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[:i]
	}
	return name
}

// Contains reports whether a post ID is already archived.
func (idx *Index) Contains(id string) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.ids[id]
}

// Add marks a post ID as archived. The index is append-only within a run.
func (idx *Index) Add(id string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.ids[id] = true
}

// Len returns the number of indexed IDs.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.ids)
}
