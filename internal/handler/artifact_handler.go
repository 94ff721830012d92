package handler

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	"digidoc/internal/domain"
	"digidoc/internal/port"
)

// ArtifactLinker issues download links for artifacts held in object storage.
type ArtifactLinker interface {
	PresignedURL(ctx context.Context, tenantID, documentID, name string) (string, error)
}

// ArtifactHandler serves the files written while processing a document.
type ArtifactHandler struct {
	store  port.ArtifactStore
	linker ArtifactLinker
	logger *slog.Logger
}

// NewArtifactHandler creates a new ArtifactHandler. With a non-nil linker
// requests are redirected to object storage instead of served from disk.
func NewArtifactHandler(store port.ArtifactStore, linker ArtifactLinker, logger *slog.Logger) *ArtifactHandler {
	return &ArtifactHandler{store: store, linker: linker, logger: logger}
}

// Get handles GET /api/v1/documents/:document_id/artifacts/:name
// @Summary Download a processing artifact
// @Param document_id path string true "Document ID"
// @Param name path string true "Artifact file name"
// @Success 200 {file} file
// @Success 302
// @Failure 404 {object} APIResponse
// @Router /documents/{document_id}/artifacts/{name} [get]
func (h *ArtifactHandler) Get(c *gin.Context) {
	tenantID, ok := tenantFromContext(c)
	if !ok {
		return
	}
	documentID, name := c.Param("document_id"), c.Param("name")
	if documentID == "" || documentID == "." || documentID == ".." || !knownArtifact(name) {
		HandleError(c, h.logger, fmt.Errorf("%w: unknown artifact %q", domain.ErrInvalidRequest, name))
		return
	}

	if h.linker != nil {
		url, err := h.linker.PresignedURL(c.Request.Context(), tenantID, documentID, name)
		if err != nil {
			HandleError(c, h.logger, err)
			return
		}
		c.Redirect(http.StatusFound, url)
		return
	}

	path := h.store.Path(tenantID, documentID, name)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = domain.ErrNotFound
		}
		HandleError(c, h.logger, err)
		return
	}
	c.File(path)
}

func knownArtifact(name string) bool {
	switch name {
	case domain.ArtifactPreprocessed, domain.ArtifactMatchVisualization,
		domain.ArtifactMatchMetadata, domain.ArtifactComparison:
		return true
	}
	ext, ok := strings.CutPrefix(name, domain.ArtifactOriginalPrefix+".")
	if !ok {
		return false
	}
	_, ok = domain.AllowedImageExtensions[ext]
	return ok
}
