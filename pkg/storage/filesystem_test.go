package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *LocalStorage {
	t.Helper()
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return store
}

func put(t *testing.T, store *LocalStorage, name, body string) {
	t.Helper()
	_, err := store.Put(name, strings.NewReader(body), 0)
	require.NoError(t, err)
}

func TestLocalStoragePutExistsDelete(t *testing.T) {
	store := newStore(t)

	put(t, store, "exports/a.zip", "zip")
	assert.True(t, store.Exists("exports/a.zip"))
	data, err := os.ReadFile(store.Path("exports/a.zip"))
	require.NoError(t, err)
	assert.Equal(t, "zip", string(data))

	require.NoError(t, store.Delete("exports/a.zip"))
	require.NoError(t, store.Delete("exports/a.zip"))
	assert.False(t, store.Exists("exports/a.zip"))
}

func TestLocalStorageRejectsTraversal(t *testing.T) {
	store := newStore(t)

	for _, name := range []string{"../escape.txt", "/etc/passwd", "", ".", "a.zip.part"} {
		_, err := store.Put(name, strings.NewReader("x"), 0)
		assert.ErrorIs(t, err, ErrInvalidPath, name)
		assert.Equal(t, "", store.Path(name), name)
	}
}

func TestLocalStoragePutLimit(t *testing.T) {
	store := newStore(t)

	n, err := store.Put("certificates/img.png", strings.NewReader("12345"), 10)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	_, err = store.Put("certificates/big.png", strings.NewReader("12345678901"), 10)
	require.ErrorIs(t, err, ErrTooLarge)
	assert.False(t, store.Exists("certificates/big.png"))

	entries, err := os.ReadDir(filepath.Dir(store.Path("certificates/img.png")))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no staged leftovers")
}

func TestLocalStorageStageIsInvisibleUntilCommit(t *testing.T) {
	store := newStore(t)

	f, err := store.Stage("exports/export_1.zip")
	require.NoError(t, err)
	_, err = f.WriteString("partial")
	require.NoError(t, err)
	assert.False(t, store.Exists("exports/export_1.zip"))

	require.NoError(t, f.Commit())
	f.Discard()
	assert.True(t, store.Exists("exports/export_1.zip"))

	g, err := store.Stage("exports/export_2.zip")
	require.NoError(t, err)
	g.Discard()
	assert.False(t, store.Exists("exports/export_2.zip"))
	_, statErr := os.Stat(g.Name())
	assert.True(t, os.IsNotExist(statErr))
}

func TestLocalStorageSweep(t *testing.T) {
	store := newStore(t)

	put(t, store, "export_old.zip", "a")
	put(t, store, "export_new.zip", "b")
	put(t, store, "keep_old.txt", "c")
	stale, err := store.Stage("other.zip")
	require.NoError(t, err)
	require.NoError(t, stale.Close())

	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(store.Path("export_old.zip"), past, past))
	require.NoError(t, os.Chtimes(store.Path("keep_old.txt"), past, past))
	require.NoError(t, os.Chtimes(stale.Name(), past, past))

	removed, err := store.Sweep("export_", 30*time.Minute)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"export_old.zip", filepath.Base(stale.Name())}, removed)
	assert.True(t, store.Exists("export_new.zip"))
	assert.True(t, store.Exists("keep_old.txt"))
}
