package port

import (
	"context"
	"io"
	"time"
)

// Object is one blob held in object storage.
type Object struct {
	Key         string
	Data        []byte
	ContentType string
}

// ObjectStore reads and writes objects in a single bucket. Get returns
// domain.ErrNotFound for a missing key.
type ObjectStore interface {
	Put(ctx context.Context, obj Object) error
	Get(ctx context.Context, key string) ([]byte, error)
	// DeletePrefix removes every object under prefix and reports how many
	// were removed.
	DeletePrefix(ctx context.Context, prefix string) (int, error)
	// SignedURL returns a GET link that expires after ttl.
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// ArtifactStore persists the files produced while processing one document.
// Implementations lay files out per tenant and document.
type ArtifactStore interface {
	// Reset clears any previous artifacts of the document and prepares an
	// empty location for new ones.
	Reset(ctx context.Context, tenantID, documentID string) error
	// Write stores data under name and returns the stored path.
	Write(ctx context.Context, tenantID, documentID, name string, data []byte) (string, error)
	// Path returns where name would be stored.
	Path(tenantID, documentID, name string) string
}

// UploadStore keeps documents submitted over HTTP until a worker reads them.
type UploadStore interface {
	// Save stores r for the document and returns the stored path.
	Save(ctx context.Context, tenantID, documentID, ext string, r io.Reader) (string, error)
}
