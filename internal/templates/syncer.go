package templates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"digidoc/internal/domain"
	"digidoc/internal/logging"
	"digidoc/internal/port"
)

// TemplatesPath is appended to a tenant's API endpoint to list its templates.
const TemplatesPath = "/api/ocr/templates"

const maxSyncBody = 32 << 20

// RemoteTemplate is one template as published by a tenant system.
type RemoteTemplate struct {
	TemplateID            string              `json:"template_id"`
	DocumentType          string              `json:"document_type"`
	Vendor                string              `json:"vendor"`
	FormatName            string              `json:"format_name"`
	TemplateData          domain.JSONMap      `json:"template_data"`
	FieldMappings         domain.JSONMap      `json:"field_mappings"`
	StructuralFingerprint *domain.Fingerprint `json:"structural_fingerprint,omitempty"`
	LastUpdated           *time.Time          `json:"last_updated,omitempty"`
}

// ToCached converts the payload into a cache row for tenantID.
func (r RemoteTemplate) ToCached(tenantID string) *domain.CachedTemplate {
	return &domain.CachedTemplate{
		TemplateID:            r.TemplateID,
		TenantID:              tenantID,
		DocumentType:          r.DocumentType,
		Vendor:                r.Vendor,
		FormatName:            r.FormatName,
		TemplateData:          r.TemplateData,
		FieldMappings:         r.FieldMappings,
		StructuralFingerprint: r.StructuralFingerprint,
		LastUpdated:           r.LastUpdated,
	}
}

// SyncSummary reports a SyncAll run.
type SyncSummary struct {
	Tenants int               `json:"tenants"`
	Synced  int               `json:"templates_synced"`
	Failed  map[string]string `json:"failed,omitempty"`
}

// Syncer pulls templates from registered tenant systems into the cache.
type Syncer struct {
	cache   *Cache
	tenants port.TenantRegistrationRepository
	meta    port.SyncMetadataRepository
	client  *http.Client
	logger  *slog.Logger
}

// NewSyncer creates a Syncer. A nil client gets one with timeout.
func NewSyncer(cache *Cache, tenants port.TenantRegistrationRepository, meta port.SyncMetadataRepository,
	client *http.Client, timeout time.Duration, logger *slog.Logger) *Syncer {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &Syncer{
		cache:   cache,
		tenants: tenants,
		meta:    meta,
		client:  client,
		logger:  logging.OrDiscard(logger),
	}
}

// SyncTenantByID looks up the registration and syncs it.
func (s *Syncer) SyncTenantByID(ctx context.Context, tenantID string) (int, error) {
	reg, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return 0, fmt.Errorf("templates.Syncer.SyncTenantByID: %w", err)
	}
	if !reg.IsActive {
		return 0, fmt.Errorf("templates.Syncer.SyncTenantByID: %w: tenant %s is inactive", domain.ErrInvalidRequest, tenantID)
	}
	return s.SyncTenant(ctx, *reg)
}

// SyncTenant pulls the tenant's templates and upserts every one whose cached
// copy is stale. The outcome is recorded in the sync metadata either way.
func (s *Syncer) SyncTenant(ctx context.Context, reg domain.TenantRegistration) (int, error) {
	synced, err := s.pull(ctx, reg)

	now := time.Now().UTC()
	meta := &domain.TemplateSyncMetadata{
		TenantID:        reg.TenantID,
		LastSyncAt:      &now,
		TemplatesSynced: synced,
		Status:          domain.SyncStatusSuccess,
	}
	if err != nil {
		meta.Status = domain.SyncStatusFailed
		meta.Error = err.Error()
	}
	if merr := s.meta.Upsert(ctx, meta); merr != nil {
		s.logger.Error("templates.Syncer.SyncTenant: recording metadata",
			"tenant_id", reg.TenantID, "error", merr)
	}

	if err != nil {
		s.logger.Warn("templates.Syncer.SyncTenant: failed", "tenant_id", reg.TenantID, "error", err)
		return synced, fmt.Errorf("templates.Syncer.SyncTenant: %w: %w", domain.ErrTemplateSync, err)
	}
	s.logger.Info("templates.Syncer.SyncTenant: done", "tenant_id", reg.TenantID, "synced", synced)
	return synced, nil
}

// SyncAll syncs every active tenant. A failing tenant does not stop the run.
func (s *Syncer) SyncAll(ctx context.Context) (*SyncSummary, error) {
	regs, err := s.tenants.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("templates.Syncer.SyncAll: %w", err)
	}
	summary := &SyncSummary{Tenants: len(regs)}
	for _, reg := range regs {
		if err := ctx.Err(); err != nil {
			return summary, fmt.Errorf("templates.Syncer.SyncAll: %w", err)
		}
		n, err := s.SyncTenant(ctx, reg)
		summary.Synced += n
		if err != nil {
			if summary.Failed == nil {
				summary.Failed = make(map[string]string)
			}
			summary.Failed[reg.TenantID] = err.Error()
		}
	}
	return summary, nil
}

func (s *Syncer) pull(ctx context.Context, reg domain.TenantRegistration) (int, error) {
	if reg.APIEndpoint == "" {
		return 0, errors.New("tenant has no api endpoint")
	}
	endpoint := strings.TrimRight(reg.APIEndpoint, "/") + TemplatesPath + "?" +
		url.Values{"calling_app_id": {reg.TenantID}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if reg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+reg.APIKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("calling tenant API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSyncBody))
	if err != nil {
		return 0, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("tenant API error (status %d): %s", resp.StatusCode, truncate(string(body), 300))
	}

	var payload struct {
		Templates []RemoteTemplate `json:"templates"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0, fmt.Errorf("unmarshaling response: %w", err)
	}

	synced := 0
	for _, rt := range payload.Templates {
		if rt.TemplateID == "" {
			continue
		}
		stale, err := s.cache.IsStale(ctx, reg.TenantID, rt.TemplateID, rt.LastUpdated)
		if err != nil {
			return synced, err
		}
		if !stale {
			continue
		}
		if err := s.cache.Upsert(ctx, rt.ToCached(reg.TenantID)); err != nil {
			return synced, err
		}
		synced++
	}
	return synced, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
