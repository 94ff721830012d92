package local_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"digidoc/internal/domain"
	"digidoc/internal/storage/local"
)

func TestUploadStore_Save(t *testing.T) {
	base := t.TempDir()
	store := local.NewUploadStore(base)

	path, err := store.Save(context.Background(), "tenant-a", "doc-1", ".PNG", strings.NewReader("img"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "tenant-a", "uploads", "doc-1.png"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "img", string(data))
}

func TestUploadStore_SurvivesArtifactReset(t *testing.T) {
	base := t.TempDir()
	uploads := local.NewUploadStore(base)
	artifacts := local.NewArtifactStore(base)

	path, err := uploads.Save(context.Background(), "tenant-a", "doc-1", "png", strings.NewReader("img"))
	require.NoError(t, err)
	require.NoError(t, artifacts.Reset(context.Background(), "tenant-a", "doc-1"))

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestUploadStore_RejectsTraversal(t *testing.T) {
	store := local.NewUploadStore(t.TempDir())
	_, err := store.Save(context.Background(), "tenant-a", "../doc", "png", strings.NewReader("x"))
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}
