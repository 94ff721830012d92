package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"digidoc/internal/domain"
	"digidoc/internal/port"
)

const templateColumns = `tenant_id, template_id, document_type, vendor, format_name,
	template_data, field_mappings, structural_fingerprint, last_updated, last_synced_at, created_at`

type templateRepo struct {
	db *sqlx.DB
}

// NewTemplateRepo creates a SQL-backed TemplateRepository.
func NewTemplateRepo(db *sqlx.DB) port.TemplateRepository {
	return &templateRepo{db: db}
}

func (r *templateRepo) GetByID(ctx context.Context, tenantID, templateID string) (*domain.CachedTemplate, error) {
	var t domain.CachedTemplate
	query := r.db.Rebind(`SELECT ` + templateColumns + ` FROM cached_templates
		WHERE tenant_id = ? AND template_id = ?`)
	if err := r.db.GetContext(ctx, &t, query, tenantID, templateID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrTemplateNotFound
		}
		return nil, fmt.Errorf("templateRepo.GetByID: %w", err)
	}
	return &t, nil
}

func (r *templateRepo) List(ctx context.Context, filter domain.TemplateFilter) ([]domain.CachedTemplate, error) {
	conds := []string{"tenant_id = ?"}
	args := []any{filter.TenantID}
	if filter.DocumentType != "" {
		conds = append(conds, "document_type = ?")
		args = append(args, filter.DocumentType)
	}
	if filter.Vendor != "" {
		conds = append(conds, "vendor = ?")
		args = append(args, filter.Vendor)
	}
	if filter.FormatName != "" {
		conds = append(conds, "format_name = ?")
		args = append(args, filter.FormatName)
	}

	query := r.db.Rebind(`SELECT ` + templateColumns + ` FROM cached_templates WHERE ` +
		strings.Join(conds, " AND ") + ` ORDER BY created_at, template_id`)

	templates := []domain.CachedTemplate{}
	if err := r.db.SelectContext(ctx, &templates, query, args...); err != nil {
		return nil, fmt.Errorf("templateRepo.List: %w", err)
	}
	return templates, nil
}

func (r *templateRepo) Upsert(ctx context.Context, t *domain.CachedTemplate) error {
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.LastSyncedAt.IsZero() {
		t.LastSyncedAt = now
	}
	if t.TemplateData == nil {
		t.TemplateData = domain.JSONMap{}
	}
	if t.FieldMappings == nil {
		t.FieldMappings = domain.JSONMap{}
	}

	query := r.db.Rebind(`INSERT INTO cached_templates (` + templateColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, template_id) DO UPDATE SET
			document_type = excluded.document_type,
			vendor = excluded.vendor,
			format_name = excluded.format_name,
			template_data = excluded.template_data,
			field_mappings = excluded.field_mappings,
			structural_fingerprint = excluded.structural_fingerprint,
			last_updated = excluded.last_updated,
			last_synced_at = excluded.last_synced_at`)

	_, err := r.db.ExecContext(ctx, query,
		t.TenantID, t.TemplateID, t.DocumentType, t.Vendor, t.FormatName,
		t.TemplateData, t.FieldMappings, t.StructuralFingerprint, utcPtr(t.LastUpdated),
		t.LastSyncedAt.UTC(), t.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("templateRepo.Upsert: %w", err)
	}
	return nil
}

func (r *templateRepo) Delete(ctx context.Context, tenantID, templateID string) error {
	result, err := r.db.ExecContext(ctx,
		r.db.Rebind("DELETE FROM cached_templates WHERE tenant_id = ? AND template_id = ?"),
		tenantID, templateID)
	if err != nil {
		return fmt.Errorf("templateRepo.Delete: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrTemplateNotFound
	}
	return nil
}

func (r *templateRepo) DeleteByTenant(ctx context.Context, tenantID string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		r.db.Rebind("DELETE FROM cached_templates WHERE tenant_id = ?"), tenantID)
	if err != nil {
		return 0, fmt.Errorf("templateRepo.DeleteByTenant: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
