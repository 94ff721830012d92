package handler_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"digidoc/internal/domain"
	"digidoc/internal/handler"
	"digidoc/internal/storage/local"
	s3storage "digidoc/internal/storage/s3"
	"digidoc/mocks"
)

func artifactContext(tenantID, documentID, name string) (*gin.Context, *httptest.ResponseRecorder) {
	c, w := newContext(http.MethodGet, "/api/v1/documents/"+documentID+"/artifacts/"+name, nil, tenantID)
	c.Params = gin.Params{{Key: "document_id", Value: documentID}, {Key: "name", Value: name}}
	return c, w
}

func TestArtifactHandler_ServesLocalFile(t *testing.T) {
	store := local.NewArtifactStore(t.TempDir())
	_, err := store.Write(context.Background(), "tenant-a", "doc-1", domain.ArtifactMatchMetadata, []byte(`{"reason":"matched"}`))
	require.NoError(t, err)
	h := handler.NewArtifactHandler(store, nil, nil)

	c, w := artifactContext("tenant-a", "doc-1", domain.ArtifactMatchMetadata)
	h.Get(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"reason":"matched"}`, w.Body.String())
}

func TestArtifactHandler_Missing(t *testing.T) {
	h := handler.NewArtifactHandler(local.NewArtifactStore(t.TempDir()), nil, nil)

	c, w := artifactContext("tenant-a", "doc-1", domain.ArtifactPreprocessed)
	h.Get(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestArtifactHandler_RejectsUnknownNames(t *testing.T) {
	h := handler.NewArtifactHandler(local.NewArtifactStore(t.TempDir()), nil, nil)

	for _, name := range []string{"secrets.txt", "original.pdf", "original", ".."} {
		c, w := artifactContext("tenant-a", "doc-1", name)
		h.Get(c)
		assert.Equal(t, http.StatusBadRequest, w.Code, name)
	}

	c, w := artifactContext("tenant-a", "..", domain.ArtifactPreprocessed)
	h.Get(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestArtifactHandler_AcceptsOriginal(t *testing.T) {
	store := local.NewArtifactStore(t.TempDir())
	_, err := store.Write(context.Background(), "tenant-a", "doc-1", "original.jpg", []byte("jpeg"))
	require.NoError(t, err)
	h := handler.NewArtifactHandler(store, nil, nil)

	c, w := artifactContext("tenant-a", "doc-1", "original.jpg")
	h.Get(c)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestArtifactHandler_RedirectsToMirror(t *testing.T) {
	objects := new(mocks.MockObjectStore)
	objects.On("SignedURL", mock.Anything, "tenant-a/queue/doc-1/preprocessed.png", mock.Anything).
		Return("https://s3.example/preprocessed.png?sig=1", nil)
	store := local.NewArtifactStore(t.TempDir())
	mirror := s3storage.NewMirror(store, objects, nil)
	h := handler.NewArtifactHandler(mirror, mirror, nil)

	c, w := artifactContext("tenant-a", "doc-1", domain.ArtifactPreprocessed)
	h.Get(c)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://s3.example/preprocessed.png?sig=1", w.Header().Get("Location"))
}

func TestArtifactHandler_MirrorFailure(t *testing.T) {
	objects := new(mocks.MockObjectStore)
	objects.On("SignedURL", mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("no credentials"))
	mirror := s3storage.NewMirror(local.NewArtifactStore(t.TempDir()), objects, nil)
	h := handler.NewArtifactHandler(mirror, mirror, nil)

	c, w := artifactContext("tenant-a", "doc-1", domain.ArtifactPreprocessed)
	h.Get(c)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
