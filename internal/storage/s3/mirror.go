package s3

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"digidoc/internal/domain"
	"digidoc/internal/logging"
	"digidoc/internal/port"
)

// linkTTL is how long artifact download links stay valid.
const linkTTL = 15 * time.Minute

// Mirror writes artifacts to a primary store and copies them to object
// storage under the same tenant/queue/document layout. Object storage errors
// are logged; the primary write decides success.
type Mirror struct {
	primary port.ArtifactStore
	objects port.ObjectStore
	logger  *slog.Logger
}

// NewMirror wraps primary with a copy in objects.
func NewMirror(primary port.ArtifactStore, objects port.ObjectStore, logger *slog.Logger) *Mirror {
	return &Mirror{primary: primary, objects: objects, logger: logging.OrDiscard(logger)}
}

// Key returns the object key of an artifact.
func Key(tenantID, documentID, name string) string {
	return path.Join(tenantID, "queue", documentID, name)
}

func (m *Mirror) Path(tenantID, documentID, name string) string {
	return m.primary.Path(tenantID, documentID, name)
}

func (m *Mirror) Reset(ctx context.Context, tenantID, documentID string) error {
	if err := m.primary.Reset(ctx, tenantID, documentID); err != nil {
		return err
	}
	prefix := path.Join(tenantID, "queue", documentID) + "/"
	n, err := m.objects.DeletePrefix(ctx, prefix)
	if err != nil {
		m.logger.Warn("s3.Mirror.Reset: clearing mirrored artifacts failed",
			"tenant_id", tenantID, "document_id", documentID, "error", err)
		return nil
	}
	if n > 0 {
		m.logger.Debug("s3.Mirror.Reset: cleared mirrored artifacts",
			"tenant_id", tenantID, "document_id", documentID, "count", n)
	}
	return nil
}

func (m *Mirror) Write(ctx context.Context, tenantID, documentID, name string, data []byte) (string, error) {
	p, err := m.primary.Write(ctx, tenantID, documentID, name, data)
	if err != nil {
		return "", err
	}
	key := Key(tenantID, documentID, name)
	err = m.objects.Put(ctx, port.Object{Key: key, Data: data, ContentType: contentType(name)})
	if err != nil {
		m.logger.Warn("s3.Mirror.Write: mirroring artifact failed",
			"key", key, "error", err)
	}
	return p, nil
}

// PresignedURL returns a time-limited download link for a mirrored artifact.
func (m *Mirror) PresignedURL(ctx context.Context, tenantID, documentID, name string) (string, error) {
	url, err := m.objects.SignedURL(ctx, Key(tenantID, documentID, name), linkTTL)
	if err != nil {
		return "", fmt.Errorf("s3.Mirror.PresignedURL: %w", err)
	}
	return url, nil
}

func contentType(name string) string {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(name)), ".")
	if ext == "json" {
		return "application/json"
	}
	if ct, ok := domain.AllowedImageExtensions[ext]; ok {
		return ct
	}
	return "application/octet-stream"
}
