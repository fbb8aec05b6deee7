package storagenode

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestStorePutGetDelete(t *testing.T) {
	store := newTestStore(t)
	content := []byte("fake jpeg bytes")

	id, size, err := store.Put(content, "photo.jpg")
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, int64(len(content)), size)

	path, contentType, err := store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", contentType)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, content, data)

	require.NoError(t, store.Delete(id))

	_, _, err = store.Get(id)
	assert.ErrorIs(t, err, ErrFileNotFound)

	err = store.Delete(id)
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestStorePutKeepsExtension(t *testing.T) {
	store := newTestStore(t)

	id, _, err := store.Put([]byte("x"), "Cats And Dogs.PNG")
	require.NoError(t, err)

	path, _, err := store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, ".PNG", filepath.Ext(path))
	assert.Equal(t, id+".PNG", filepath.Base(path))
}

func TestStorePutWithoutExtension(t *testing.T) {
	store := newTestStore(t)

	id, _, err := store.Put([]byte("raw"), "noextension")
	require.NoError(t, err)

	path, contentType, err := store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, id, filepath.Base(path))
	assert.Equal(t, "application/octet-stream", contentType)
}

func TestStoreIDsAreUnique(t *testing.T) {
	store := newTestStore(t)

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id, _, err := store.Put([]byte("same content"), "dup.jpg")
		require.NoError(t, err)
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}

	files, err := store.List()
	require.NoError(t, err)
	assert.Len(t, files, 1000)
}

func TestStoreRejectsTraversalIDs(t *testing.T) {
	store := newTestStore(t)

	for _, id := range []string{"", "../etc/passwd", "a/b", `a\b`, "secret.txt", "."} {
		_, _, err := store.Get(id)
		assert.ErrorIs(t, err, ErrFileNotFound, "id %q", id)
	}
}

func TestStoreStats(t *testing.T) {
	store := newTestStore(t)

	_, _, err := store.Put([]byte("12345"), "a.jpg")
	require.NoError(t, err)
	_, _, err = store.Put([]byte("123"), "b.png")
	require.NoError(t, err)

	stats, err := store.Stats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.NbFiles)
	assert.Equal(t, int64(8), stats.TotalSizeBytes)
}
