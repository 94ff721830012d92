package handler

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"digidoc/internal/csvexport"
	"digidoc/internal/domain"
	"digidoc/internal/logging"
	"digidoc/internal/port"
	"digidoc/internal/service"
	"digidoc/internal/templates"
)

// TemplateHandler manages the calling tenant's cached templates.
type TemplateHandler struct {
	cache          *templates.Cache
	syncer         *templates.Syncer
	meta           port.SyncMetadataRepository
	learner        service.TemplateLearner
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewTemplateHandler creates a new TemplateHandler.
func NewTemplateHandler(
	cache *templates.Cache,
	syncer *templates.Syncer,
	meta port.SyncMetadataRepository,
	learner service.TemplateLearner,
	maxUploadMB int64,
	logger *slog.Logger,
) *TemplateHandler {
	return &TemplateHandler{
		cache:          cache,
		syncer:         syncer,
		meta:           meta,
		learner:        learner,
		maxUploadBytes: maxUploadMB << 20,
		logger:         logging.OrDiscard(logger),
	}
}

// List handles GET /api/v1/templates
// @Summary List cached templates
// @Produce json
// @Param document_type query string false "Filter by document type"
// @Param vendor query string false "Filter by vendor"
// @Param format_name query string false "Filter by format name"
// @Success 200 {object} APIResponse{data=[]domain.CachedTemplate}
// @Router /templates [get]
func (h *TemplateHandler) List(c *gin.Context) {
	tenantID, ok := tenantFromContext(c)
	if !ok {
		return
	}
	list, err := h.cache.ListByContext(c.Request.Context(), domain.TemplateFilter{
		TenantID:     tenantID,
		DocumentType: c.Query("document_type"),
		Vendor:       c.Query("vendor"),
		FormatName:   c.Query("format_name"),
	})
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}
	if list == nil {
		list = []domain.CachedTemplate{}
	}
	RespondList(c, list, len(list))
}

// Export handles GET /api/v1/templates/export
// @Summary Download the tenant's template catalog as CSV
// @Produce text/csv
// @Param document_type query string false "Filter by document type"
// @Success 200 {file} file
// @Router /templates/export [get]
func (h *TemplateHandler) Export(c *gin.Context) {
	tenantID, ok := tenantFromContext(c)
	if !ok {
		return
	}
	list, err := h.cache.ListByContext(c.Request.Context(), domain.TemplateFilter{
		TenantID:     tenantID,
		DocumentType: c.Query("document_type"),
		Vendor:       c.Query("vendor"),
		FormatName:   c.Query("format_name"),
	})
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}

	filename := csvexport.BuildFilename(tenantID, time.Now())
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Status(http.StatusOK)

	// Headers are committed from here on; failures can only be logged.
	if _, err := c.Writer.Write(csvexport.BOM); err != nil {
		h.logger.Error("handler.TemplateHandler.Export: write BOM", "error", err)
		return
	}
	w := csvexport.NewWriter(c.Writer)
	if err := w.WriteHeader(); err != nil {
		h.logger.Error("handler.TemplateHandler.Export: write header", "error", err)
		return
	}
	if err := w.WriteTemplates(list); err != nil {
		h.logger.Error("handler.TemplateHandler.Export: write rows", "error", err)
		return
	}
	w.Flush()
	if err := w.Error(); err != nil {
		h.logger.Error("handler.TemplateHandler.Export: flush", "error", err)
	}
}

// GetByID handles GET /api/v1/templates/:template_id
func (h *TemplateHandler) GetByID(c *gin.Context) {
	tenantID, ok := tenantFromContext(c)
	if !ok {
		return
	}
	tmpl, err := h.cache.GetByID(c.Request.Context(), tenantID, c.Param("template_id"))
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}
	RespondOK(c, tmpl)
}

// Upsert handles PUT /api/v1/templates/:template_id
// @Summary Create or replace a cached template
// @Accept json
// @Produce json
// @Param template_id path string true "Template ID"
// @Param body body templates.RemoteTemplate true "Template"
// @Success 200 {object} APIResponse{data=domain.CachedTemplate}
// @Failure 400 {object} APIResponse
// @Router /templates/{template_id} [put]
func (h *TemplateHandler) Upsert(c *gin.Context) {
	tenantID, ok := tenantFromContext(c)
	if !ok {
		return
	}
	var body templates.RemoteTemplate
	if err := c.ShouldBindJSON(&body); err != nil {
		HandleError(c, h.logger, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err))
		return
	}
	body.TemplateID = c.Param("template_id")

	tmpl := body.ToCached(tenantID)
	if err := h.cache.Upsert(c.Request.Context(), tmpl); err != nil {
		HandleError(c, h.logger, err)
		return
	}
	RespondOK(c, tmpl)
}

// Learn handles POST /api/v1/templates/:template_id/fingerprint
// @Summary Fingerprint a reference image and attach it to the template
// @Accept multipart/form-data
// @Produce json
// @Param template_id path string true "Template ID"
// @Param file formData file true "Reference image"
// @Success 200 {object} APIResponse{data=domain.CachedTemplate}
// @Failure 404 {object} APIResponse
// @Router /templates/{template_id}/fingerprint [post]
func (h *TemplateHandler) Learn(c *gin.Context) {
	tenantID, ok := tenantFromContext(c)
	if !ok {
		return
	}
	tmpl, err := h.cache.GetByID(c.Request.Context(), tenantID, c.Param("template_id"))
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		HandleError(c, h.logger, fmt.Errorf("%w: file field is required", domain.ErrInvalidRequest))
		return
	}
	defer func() { _ = file.Close() }()
	if h.maxUploadBytes > 0 && header.Size > h.maxUploadBytes {
		HandleError(c, h.logger, domain.ErrFileTooLarge)
		return
	}
	raw, err := io.ReadAll(file)
	if err != nil {
		HandleError(c, h.logger, fmt.Errorf("handler.TemplateHandler.Learn: %w", err))
		return
	}

	if err := h.learner.LearnTemplate(c.Request.Context(), tmpl, raw); err != nil {
		HandleError(c, h.logger, err)
		return
	}
	RespondOK(c, tmpl)
}

// Delete handles DELETE /api/v1/templates/:template_id
func (h *TemplateHandler) Delete(c *gin.Context) {
	tenantID, ok := tenantFromContext(c)
	if !ok {
		return
	}
	id := c.Param("template_id")
	if err := h.cache.Delete(c.Request.Context(), tenantID, id); err != nil {
		HandleError(c, h.logger, err)
		return
	}
	RespondOK(c, gin.H{"template_id": id, "deleted": true})
}

// Clear handles DELETE /api/v1/templates
// @Summary Remove every cached template of the tenant
// @Router /templates [delete]
func (h *TemplateHandler) Clear(c *gin.Context) {
	tenantID, ok := tenantFromContext(c)
	if !ok {
		return
	}
	n, err := h.cache.ClearTenant(c.Request.Context(), tenantID)
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}
	RespondOK(c, gin.H{"deleted": n})
}

// Sync handles POST /api/v1/templates/sync
// @Summary Pull the tenant's templates from its registered endpoint now
// @Produce json
// @Success 200 {object} APIResponse
// @Failure 502 {object} APIResponse
// @Router /templates/sync [post]
func (h *TemplateHandler) Sync(c *gin.Context) {
	tenantID, ok := tenantFromContext(c)
	if !ok {
		return
	}
	n, err := h.syncer.SyncTenantByID(c.Request.Context(), tenantID)
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}
	RespondOK(c, gin.H{"tenant_id": tenantID, "templates_synced": n})
}

// SyncStatus handles GET /api/v1/templates/sync
func (h *TemplateHandler) SyncStatus(c *gin.Context) {
	tenantID, ok := tenantFromContext(c)
	if !ok {
		return
	}
	meta, err := h.meta.Get(c.Request.Context(), tenantID)
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}
	RespondOK(c, meta)
}
