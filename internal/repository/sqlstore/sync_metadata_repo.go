package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"digidoc/internal/domain"
	"digidoc/internal/port"
)

type syncMetadataRepo struct {
	db *sqlx.DB
}

// NewSyncMetadataRepo creates a SQL-backed SyncMetadataRepository.
func NewSyncMetadataRepo(db *sqlx.DB) port.SyncMetadataRepository {
	return &syncMetadataRepo{db: db}
}

func (r *syncMetadataRepo) Get(ctx context.Context, tenantID string) (*domain.TemplateSyncMetadata, error) {
	var meta domain.TemplateSyncMetadata
	err := r.db.GetContext(ctx, &meta,
		r.db.Rebind("SELECT * FROM template_sync_metadata WHERE tenant_id = ?"), tenantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("syncMetadataRepo.Get: %w", err)
	}
	return &meta, nil
}

func (r *syncMetadataRepo) Upsert(ctx context.Context, meta *domain.TemplateSyncMetadata) error {
	meta.UpdatedAt = time.Now().UTC()
	query := r.db.Rebind(`INSERT INTO template_sync_metadata
		(tenant_id, last_sync_at, templates_synced, status, error, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id) DO UPDATE SET
			last_sync_at = excluded.last_sync_at,
			templates_synced = excluded.templates_synced,
			status = excluded.status,
			error = excluded.error,
			updated_at = excluded.updated_at`)
	_, err := r.db.ExecContext(ctx, query,
		meta.TenantID, utcPtr(meta.LastSyncAt), meta.TemplatesSynced, meta.Status, meta.Error, meta.UpdatedAt)
	if err != nil {
		return fmt.Errorf("syncMetadataRepo.Upsert: %w", err)
	}
	return nil
}
