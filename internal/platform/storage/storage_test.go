package storage

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilesystemRoundTrip(t *testing.T) {
	store, err := NewFilesystem(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	key := ImportKey("client-1", "batch-1", "ledger.csv")
	url, err := store.Put(ctx, key, []byte("a,b\n1,2\n"), "text/csv")
	require.NoError(t, err)
	assert.Contains(t, url, "imports/client-1/batch-1/ledger.csv")

	rc, err := store.Open(ctx, key)
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(body))
}

func TestFilesystemMissingObject(t *testing.T) {
	store, err := NewFilesystem(t.TempDir())
	require.NoError(t, err)
	_, err = store.Open(context.Background(), "imports/none.csv")
	require.ErrorIs(t, err, ErrObjectNotFound)
}

func TestKeysCannotEscapeRoot(t *testing.T) {
	store, err := NewFilesystem(t.TempDir())
	require.NoError(t, err)
	_, err = store.Put(context.Background(), "../outside.csv", []byte("x"), "text/csv")
	require.Error(t, err)
}

func TestImportKeyDropsDirectories(t *testing.T) {
	assert.Equal(t, "imports/c/b/file.csv", ImportKey("c", "b", `C:\Users\me\file.csv`))
	assert.Equal(t, "imports/c/b/file.csv", ImportKey("c", "b", "../../file.csv"))
	assert.Equal(t, "imports/c/b/upload.csv", ImportKey("c", "b", ""))
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	_, err := New(context.Background(), Config{Driver: "azure"})
	require.Error(t, err)
}
