package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripExtension(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"12345.jpg", "12345"},
		{"12345.jpeg", "12345"},
		{"archive.tar.gz", "archive.tar"},
		{"no_extension", "no_extension"},
		{".hidden", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, StripExtension(tt.name), "name %q", tt.name)
	}
}

func TestBuildIndexScansRecursively(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "1"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "2"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "1", "aaa.jpg"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "2", "bbb.jpg"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "2", "notes"), []byte("x"), 0644))

	idx, err := BuildIndex(root)
	require.NoError(t, err)

	assert.True(t, idx.Contains("aaa"))
	assert.True(t, idx.Contains("bbb"))
	assert.True(t, idx.Contains("notes"))
	assert.False(t, idx.Contains("ccc"))
	assert.Equal(t, 3, idx.Len())
}

func TestBuildIndexMissingRoot(t *testing.T) {
	idx, err := BuildIndex(filepath.Join(t.TempDir(), "does-not-exist"))
	require.NoError(t, err)
	assert.Equal(t, 0, idx.Len())
}

func TestIndexAdd(t *testing.T) {
	idx, err := BuildIndex(t.TempDir())
	require.NoError(t, err)

	assert.False(t, idx.Contains("xyz"))
	idx.Add("xyz")
	assert.True(t, idx.Contains("xyz"))
}

func TestAllocatorAdvancesPastFullContainers(t *testing.T) {
	occupancy := map[int]int{1: 2, 2: 2, 3: 0}
	opened := []int{}

	alloc := NewAllocator(2, func(ordinal int) (string, int, error) {
		opened = append(opened, ordinal)
		return fmt.Sprintf("container-%d", ordinal), occupancy[ordinal], nil
	})

	c, err := alloc.Allocate()
	require.NoError(t, err)
	assert.Equal(t, "container-3", c)
	assert.Equal(t, []int{1, 2, 3}, opened)
	assert.Equal(t, 3, alloc.Ordinal())
}

func TestAllocatorQueriesOccupancyOncePerContainer(t *testing.T) {
	opens := 0
	alloc := NewAllocator(2, func(ordinal int) (string, int, error) {
		opens++
		return fmt.Sprintf("container-%d", ordinal), 0, nil
	})

	// Two placements fit in the first container with a single open.
	for i := 0; i < 2; i++ {
		c, err := alloc.Allocate()
		require.NoError(t, err)
		assert.Equal(t, "container-1", c)
		alloc.Record()
	}
	assert.Equal(t, 1, opens)

	// Third placement rolls over to a fresh container.
	c, err := alloc.Allocate()
	require.NoError(t, err)
	assert.Equal(t, "container-2", c)
	assert.Equal(t, 2, opens)
}

func TestStoreSavesAcrossFolders(t *testing.T) {
	root := t.TempDir()
	store, err := NewStore(root, 2)
	require.NoError(t, err)

	// Five saves at capacity 2 need three folders.
	for i := 0; i < 5; i++ {
		path, err := store.Save(fmt.Sprintf("post%d.jpg", i), []byte("jpeg"))
		require.NoError(t, err)
		assert.FileExists(t, path)
	}

	for folder, want := range map[string]int{"1": 2, "2": 2, "3": 1} {
		entries, err := os.ReadDir(filepath.Join(root, folder))
		require.NoError(t, err)
		assert.Len(t, entries, want, "folder %s", folder)
	}
}

func TestStoreResumesPartialFolder(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "1"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "1", "old.jpg"), []byte("x"), 0644))

	store, err := NewStore(root, 2)
	require.NoError(t, err)

	// One slot left in folder 1, then folder 2 opens.
	path, err := store.Save("new1.jpg", []byte("jpeg"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "1", "new1.jpg"), path)

	path, err = store.Save("new2.jpg", []byte("jpeg"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "2", "new2.jpg"), path)
}

func TestStoreSaveLeavesNoTempFiles(t *testing.T) {
	root := t.TempDir()
	store, err := NewStore(root, 10)
	require.NoError(t, err)

	_, err = store.Save("a.jpg", []byte("jpeg"))
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(root, "1"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a.jpg", entries[0].Name())
}
