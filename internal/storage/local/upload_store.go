package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"digidoc/internal/port"
)

const uploadsDir = "uploads"

// UploadStore lays uploads out as {base}/{tenant}/uploads/{document}.{ext},
// outside the artifact directory that reprocessing clears.
type UploadStore struct {
	base string
}

// NewUploadStore creates an upload store rooted at base.
func NewUploadStore(base string) port.UploadStore {
	return &UploadStore{base: base}
}

func (s *UploadStore) Save(ctx context.Context, tenantID, documentID, ext string, r io.Reader) (string, error) {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if err := validSegments(tenantID, documentID, ext); err != nil {
		return "", fmt.Errorf("local.UploadStore.Save: %w", err)
	}
	dir := filepath.Join(s.base, tenantID, uploadsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("local.UploadStore.Save: creating %s: %w", dir, err)
	}

	path := filepath.Join(dir, documentID+"."+ext)
	tmp, err := os.CreateTemp(dir, "."+documentID+".*")
	if err != nil {
		return "", fmt.Errorf("local.UploadStore.Save: %w", err)
	}
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("local.UploadStore.Save: writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("local.UploadStore.Save: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("local.UploadStore.Save: %w", err)
	}
	return path, nil
}
