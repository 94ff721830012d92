package local_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"digidoc/internal/domain"
	"digidoc/internal/storage/local"
)

func TestArtifactStore_Layout(t *testing.T) {
	base := t.TempDir()
	store := local.NewArtifactStore(base)

	want := filepath.Join(base, "tenant-a", "queue", "doc-1", domain.ArtifactPreprocessed)
	assert.Equal(t, want, store.Path("tenant-a", "doc-1", domain.ArtifactPreprocessed))

	got, err := store.Write(context.Background(), "tenant-a", "doc-1", domain.ArtifactPreprocessed, []byte("png"))
	require.NoError(t, err)
	assert.Equal(t, want, got)

	data, err := os.ReadFile(got)
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))
}

func TestArtifactStore_ResetClearsPreviousRun(t *testing.T) {
	ctx := context.Background()
	store := local.NewArtifactStore(t.TempDir())

	old, err := store.Write(ctx, "t1", "d1", "stale.txt", []byte("old"))
	require.NoError(t, err)

	require.NoError(t, store.Reset(ctx, "t1", "d1"))
	_, err = os.Stat(old)
	assert.True(t, os.IsNotExist(err))

	info, err := os.Stat(filepath.Dir(old))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestArtifactStore_Overwrite(t *testing.T) {
	ctx := context.Background()
	store := local.NewArtifactStore(t.TempDir())

	_, err := store.Write(ctx, "t1", "d1", "a.json", []byte("1"))
	require.NoError(t, err)
	path, err := store.Write(ctx, "t1", "d1", "a.json", []byte("2"))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "2", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestArtifactStore_RejectsTraversal(t *testing.T) {
	ctx := context.Background()
	store := local.NewArtifactStore(t.TempDir())

	_, err := store.Write(ctx, "t1", "d1", "../escape", []byte("x"))
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	assert.ErrorIs(t, store.Reset(ctx, "..", "d1"), domain.ErrInvalidRequest)
	assert.ErrorIs(t, store.Reset(ctx, "t1", ""), domain.ErrInvalidRequest)
}
