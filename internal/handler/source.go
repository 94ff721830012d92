package handler

import (
	"fmt"
	"path/filepath"
	"strings"

	"digidoc/internal/domain"
)

// tenantSourcePath resolves a caller supplied file path against the tenant's
// directory under root. Relative paths are taken from that directory;
// absolute paths and symlink targets must stay inside it.
func tenantSourcePath(root, tenantID, path string) (string, error) {
	if root == "" {
		return "", fmt.Errorf("%w: file paths are not accepted", domain.ErrInvalidRequest)
	}
	if tenantID == "" || tenantID == "." || tenantID == ".." || strings.ContainsAny(tenantID, `/\`) {
		return "", fmt.Errorf("%w: invalid tenant", domain.ErrInvalidRequest)
	}
	dir, err := filepath.Abs(filepath.Join(root, tenantID))
	if err != nil {
		return "", fmt.Errorf("handler.tenantSourcePath: %w", err)
	}

	p := path
	if !filepath.IsAbs(p) {
		p = filepath.Join(dir, p)
	}
	p = filepath.Clean(p)
	if !within(dir, p) {
		return "", fmt.Errorf("%w: path must be inside the tenant storage directory", domain.ErrInvalidRequest)
	}

	// A link inside the directory may still point elsewhere.
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		realDir := dir
		if d, err := filepath.EvalSymlinks(dir); err == nil {
			realDir = d
		}
		if !within(realDir, resolved) {
			return "", fmt.Errorf("%w: path must be inside the tenant storage directory", domain.ErrInvalidRequest)
		}
	}
	return p, nil
}

func within(dir, p string) bool {
	rel, err := filepath.Rel(dir, p)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
