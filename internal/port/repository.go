package port

import (
	"context"

	"digidoc/internal/domain"
)

// TemplateRepository defines the contract for cached template persistence.
// All query methods are scoped by tenant.
type TemplateRepository interface {
	GetByID(ctx context.Context, tenantID, templateID string) (*domain.CachedTemplate, error)
	List(ctx context.Context, filter domain.TemplateFilter) ([]domain.CachedTemplate, error)
	// Upsert inserts or replaces the row keyed by (tenant_id, template_id) in
	// a single statement.
	Upsert(ctx context.Context, tmpl *domain.CachedTemplate) error
	Delete(ctx context.Context, tenantID, templateID string) error
	DeleteByTenant(ctx context.Context, tenantID string) (int64, error)
}

// SyncMetadataRepository stores the outcome of template pulls.
type SyncMetadataRepository interface {
	Get(ctx context.Context, tenantID string) (*domain.TemplateSyncMetadata, error)
	Upsert(ctx context.Context, meta *domain.TemplateSyncMetadata) error
}

// TenantRegistrationRepository stores the external systems that own templates.
type TenantRegistrationRepository interface {
	GetByID(ctx context.Context, tenantID string) (*domain.TenantRegistration, error)
	GetByAPIKey(ctx context.Context, apiKey string) (*domain.TenantRegistration, error)
	ListActive(ctx context.Context) ([]domain.TenantRegistration, error)
	Upsert(ctx context.Context, reg *domain.TenantRegistration) error
}
