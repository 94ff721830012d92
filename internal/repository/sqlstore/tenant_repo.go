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

type tenantRegistrationRepo struct {
	db *sqlx.DB
}

// NewTenantRegistrationRepo creates a SQL-backed TenantRegistrationRepository.
func NewTenantRegistrationRepo(db *sqlx.DB) port.TenantRegistrationRepository {
	return &tenantRegistrationRepo{db: db}
}

func (r *tenantRegistrationRepo) GetByID(ctx context.Context, tenantID string) (*domain.TenantRegistration, error) {
	return r.getOne(ctx, "tenantRegistrationRepo.GetByID",
		"SELECT * FROM tenant_registrations WHERE tenant_id = ?", tenantID)
}

func (r *tenantRegistrationRepo) GetByAPIKey(ctx context.Context, apiKey string) (*domain.TenantRegistration, error) {
	return r.getOne(ctx, "tenantRegistrationRepo.GetByAPIKey",
		"SELECT * FROM tenant_registrations WHERE api_key = ?", apiKey)
}

func (r *tenantRegistrationRepo) getOne(ctx context.Context, op, query string, arg any) (*domain.TenantRegistration, error) {
	var reg domain.TenantRegistration
	if err := r.db.GetContext(ctx, &reg, r.db.Rebind(query), arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &reg, nil
}

func (r *tenantRegistrationRepo) ListActive(ctx context.Context) ([]domain.TenantRegistration, error) {
	regs := []domain.TenantRegistration{}
	err := r.db.SelectContext(ctx, &regs, r.db.Rebind(
		"SELECT * FROM tenant_registrations WHERE is_active = ? ORDER BY tenant_id"), true)
	if err != nil {
		return nil, fmt.Errorf("tenantRegistrationRepo.ListActive: %w", err)
	}
	return regs, nil
}

func (r *tenantRegistrationRepo) Upsert(ctx context.Context, reg *domain.TenantRegistration) error {
	now := time.Now().UTC()
	if reg.CreatedAt.IsZero() {
		reg.CreatedAt = now
	}
	reg.UpdatedAt = now

	query := r.db.Rebind(`INSERT INTO tenant_registrations
		(tenant_id, name, api_endpoint, api_key, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id) DO UPDATE SET
			name = excluded.name,
			api_endpoint = excluded.api_endpoint,
			api_key = excluded.api_key,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at`)
	_, err := r.db.ExecContext(ctx, query,
		reg.TenantID, reg.Name, reg.APIEndpoint, reg.APIKey, reg.IsActive, reg.CreatedAt, reg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("tenantRegistrationRepo.Upsert: %w", err)
	}
	return nil
}
