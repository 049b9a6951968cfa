package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shelfsync/internal/catalog"
)

func TestLocalDirStoreFindShareLink(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Dune - Frank Herbert.epub"), []byte("x"), 0644))

	store, err := NewLocalDirStore(dir, "https://files.example.com/library/")
	require.NoError(t, err)

	url, err := store.FindShareLink(context.Background(), catalog.ArtifactRef{Filename: "Dune - Frank Herbert.epub"})
	require.NoError(t, err)
	assert.Equal(t, "https://files.example.com/library/Dune%20-%20Frank%20Herbert.epub", url)

	url, err = store.FindShareLink(context.Background(), catalog.ArtifactRef{Filename: "missing.pdf"})
	require.NoError(t, err)
	assert.Empty(t, url, "absence is not an error")
}

func TestLocalDirStoreFileURL(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "book.pdf"), []byte("x"), 0644))

	store, err := NewLocalDirStore(dir, "")
	require.NoError(t, err)

	url, err := store.FindShareLink(context.Background(), catalog.ArtifactRef{Filename: "book.pdf"})
	require.NoError(t, err)
	assert.Equal(t, "file://"+filepath.Join(dir, "book.pdf"), url)
}

func TestNewLocalDirStoreRejectsMissingDir(t *testing.T) {
	_, err := NewLocalDirStore(filepath.Join(t.TempDir(), "nope"), "")
	assert.Error(t, err)
}
