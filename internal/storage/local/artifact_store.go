// Package local stores document artifacts on the local filesystem.
package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"digidoc/internal/domain"
	"digidoc/internal/port"
)

const queueDir = "queue"

// ArtifactStore lays artifacts out as {base}/{tenant}/queue/{document}/{name}.
type ArtifactStore struct {
	base string
}

// NewArtifactStore creates a store rooted at base.
func NewArtifactStore(base string) port.ArtifactStore {
	return &ArtifactStore{base: base}
}

func (s *ArtifactStore) Path(tenantID, documentID, name string) string {
	return filepath.Join(s.dir(tenantID, documentID), name)
}

func (s *ArtifactStore) Reset(ctx context.Context, tenantID, documentID string) error {
	if err := validSegments(tenantID, documentID); err != nil {
		return fmt.Errorf("local.ArtifactStore.Reset: %w", err)
	}
	dir := s.dir(tenantID, documentID)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("local.ArtifactStore.Reset: removing %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("local.ArtifactStore.Reset: creating %s: %w", dir, err)
	}
	return nil
}

func (s *ArtifactStore) Write(ctx context.Context, tenantID, documentID, name string, data []byte) (string, error) {
	if err := validSegments(tenantID, documentID, name); err != nil {
		return "", fmt.Errorf("local.ArtifactStore.Write: %w", err)
	}
	dir := s.dir(tenantID, documentID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("local.ArtifactStore.Write: creating %s: %w", dir, err)
	}

	path := filepath.Join(dir, name)
	tmp, err := os.CreateTemp(dir, "."+name+".*")
	if err != nil {
		return "", fmt.Errorf("local.ArtifactStore.Write: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("local.ArtifactStore.Write: writing %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("local.ArtifactStore.Write: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("local.ArtifactStore.Write: %w", err)
	}
	return path, nil
}

func (s *ArtifactStore) dir(tenantID, documentID string) string {
	return filepath.Join(s.base, tenantID, queueDir, documentID)
}

// validSegments rejects empty names and anything that could leave the
// document directory.
func validSegments(segments ...string) error {
	for _, seg := range segments {
		if seg == "" || seg == "." || seg == ".." || strings.ContainsAny(seg, `/\`) {
			return fmt.Errorf("%w: invalid path segment %q", domain.ErrInvalidRequest, seg)
		}
	}
	return nil
}
