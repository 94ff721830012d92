// Package templates caches tenant layout templates, matches documents against
// them and keeps them in sync with the owning tenant systems.
package templates

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"digidoc/internal/domain"
	"digidoc/internal/logging"
	"digidoc/internal/port"
)

// DefaultTTL is how long a synced template stays fresh.
const DefaultTTL = 24 * time.Hour

// Cache is the tenant-scoped template store.
type Cache struct {
	repo   port.TemplateRepository
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// NewCache creates a Cache. A non-positive ttl selects DefaultTTL.
func NewCache(repo port.TemplateRepository, ttl time.Duration, logger *slog.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		repo:   repo,
		ttl:    ttl,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logging.OrDiscard(logger),
	}
}

// GetByID returns one template; domain.ErrTemplateNotFound when absent.
func (c *Cache) GetByID(ctx context.Context, tenantID, templateID string) (*domain.CachedTemplate, error) {
	t, err := c.repo.GetByID(ctx, tenantID, templateID)
	if err != nil {
		if errors.Is(err, domain.ErrTemplateNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("templates.Cache.GetByID: %w", err)
	}
	return t, nil
}

// ListByContext returns the tenant's templates matching every non-empty
// filter field.
func (c *Cache) ListByContext(ctx context.Context, filter domain.TemplateFilter) ([]domain.CachedTemplate, error) {
	if filter.TenantID == "" {
		return nil, fmt.Errorf("templates.Cache.ListByContext: %w: tenant id is required", domain.ErrInvalidRequest)
	}
	list, err := c.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("templates.Cache.ListByContext: %w", err)
	}
	return list, nil
}

// Upsert stores t and stamps it as synced now.
func (c *Cache) Upsert(ctx context.Context, t *domain.CachedTemplate) error {
	if t.TenantID == "" || t.TemplateID == "" {
		return fmt.Errorf("templates.Cache.Upsert: %w: tenant id and template id are required", domain.ErrInvalidRequest)
	}
	t.LastSyncedAt = c.now()
	if err := c.repo.Upsert(ctx, t); err != nil {
		return fmt.Errorf("templates.Cache.Upsert: %w", err)
	}
	c.logger.Debug("templates.Cache.Upsert: cached",
		"tenant_id", t.TenantID, "template_id", t.TemplateID)
	return nil
}

// IsStale reports whether the cached copy needs refreshing: it is missing,
// older than the TTL, or older than lastUpdated at the source.
func (c *Cache) IsStale(ctx context.Context, tenantID, templateID string, lastUpdated *time.Time) (bool, error) {
	t, err := c.repo.GetByID(ctx, tenantID, templateID)
	if errors.Is(err, domain.ErrTemplateNotFound) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("templates.Cache.IsStale: %w", err)
	}
	if c.now().Sub(t.LastSyncedAt) > c.ttl {
		return true, nil
	}
	return lastUpdated != nil && lastUpdated.After(t.LastSyncedAt), nil
}

// Delete removes one template.
func (c *Cache) Delete(ctx context.Context, tenantID, templateID string) error {
	if err := c.repo.Delete(ctx, tenantID, templateID); err != nil {
		if errors.Is(err, domain.ErrTemplateNotFound) {
			return err
		}
		return fmt.Errorf("templates.Cache.Delete: %w", err)
	}
	return nil
}

// ClearTenant removes every template of the tenant and returns how many were
// removed.
func (c *Cache) ClearTenant(ctx context.Context, tenantID string) (int64, error) {
	n, err := c.repo.DeleteByTenant(ctx, tenantID)
	if err != nil {
		return 0, fmt.Errorf("templates.Cache.ClearTenant: %w", err)
	}
	c.logger.Info("templates.Cache.ClearTenant: cleared", "tenant_id", tenantID, "removed", n)
	return n, nil
}
