package handler

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"digidoc/internal/domain"
	"digidoc/internal/port"
	"digidoc/internal/queue"
	"digidoc/internal/service"
)

// QueueRequest is the JSON body for submitting a document that is already
// reachable by the workers.
type QueueRequest struct {
	DocumentID   string `json:"document_id"`
	DocumentType string `json:"document_type"`
	SourcePath   string `json:"source_path"`
	SourceKey    string `json:"source_key"`
}

// QueueResponse is returned when a document has been queued.
type QueueResponse struct {
	TaskID     string           `json:"task_id"`
	DocumentID string           `json:"document_id"`
	Status     domain.JobStatus `json:"status"`
	Message    string           `json:"message"`
}

// QueueHandler accepts documents for asynchronous processing.
type QueueHandler struct {
	adapter        *queue.Adapter
	uploads        port.UploadStore
	sourceRoot     string
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewQueueHandler creates a new QueueHandler. A JSON source_path must lie in
// the tenant's directory under sourceRoot. maxUploadMB of zero disables the
// size check.
func NewQueueHandler(adapter *queue.Adapter, uploads port.UploadStore, sourceRoot string, maxUploadMB int64, logger *slog.Logger) *QueueHandler {
	return &QueueHandler{
		adapter:        adapter,
		uploads:        uploads,
		sourceRoot:     sourceRoot,
		maxUploadBytes: maxUploadMB << 20,
		logger:         logger,
	}
}

// Process handles POST /api/v1/queue
// @Summary Queue a document for the full pipeline
// @Accept multipart/form-data,json
// @Produce json
// @Param file formData file false "Document image"
// @Param document_type formData string false "Document type used to narrow template matching"
// @Success 202 {object} APIResponse{data=QueueResponse}
// @Failure 400 {object} APIResponse
// @Failure 413 {object} APIResponse
// @Router /queue [post]
func (h *QueueHandler) Process(c *gin.Context) {
	h.submit(c, service.TaskProcessDocument)
}

// Preprocess handles POST /api/v1/queue/preprocess
// @Summary Queue a document for preprocessing only
// @Router /queue/preprocess [post]
func (h *QueueHandler) Preprocess(c *gin.Context) {
	h.submit(c, service.TaskPreprocessDocument)
}

func (h *QueueHandler) submit(c *gin.Context, taskName string) {
	tenantID, ok := tenantFromContext(c)
	if !ok {
		return
	}

	var (
		req service.ProcessRequest
		err error
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		req, err = h.fromUpload(c, tenantID)
	} else {
		req, err = h.fromJSON(c, tenantID)
	}
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}

	res, err := h.adapter.Enqueue(c.Request.Context(), taskName, req.Args())
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}
	RespondAccepted(c, QueueResponse{
		TaskID:     res.TaskID,
		DocumentID: req.DocumentID,
		Status:     res.Status,
		Message:    res.Message,
	})
}

func (h *QueueHandler) fromUpload(c *gin.Context, tenantID string) (service.ProcessRequest, error) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		return service.ProcessRequest{}, fmt.Errorf("%w: file field is required", domain.ErrInvalidRequest)
	}
	defer func() { _ = file.Close() }()

	if h.maxUploadBytes > 0 && header.Size > h.maxUploadBytes {
		return service.ProcessRequest{}, domain.ErrFileTooLarge
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(header.Filename), "."))
	if _, ok := domain.AllowedImageExtensions[ext]; !ok {
		return service.ProcessRequest{}, fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, ext)
	}

	req := service.ProcessRequest{
		DocumentID:   documentID(c.PostForm("document_id")),
		TenantID:     tenantID,
		DocumentType: c.PostForm("document_type"),
		Extension:    ext,
	}
	req.SourcePath, err = h.uploads.Save(c.Request.Context(), tenantID, req.DocumentID, ext, file)
	if err != nil {
		return service.ProcessRequest{}, fmt.Errorf("handler.QueueHandler.fromUpload: %w", err)
	}
	return req, nil
}

func (h *QueueHandler) fromJSON(c *gin.Context, tenantID string) (service.ProcessRequest, error) {
	var body QueueRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		return service.ProcessRequest{}, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
	if (body.SourcePath == "") == (body.SourceKey == "") {
		return service.ProcessRequest{}, fmt.Errorf("%w: exactly one of source_path or source_key is required", domain.ErrInvalidRequest)
	}
	if body.SourcePath != "" {
		path, err := tenantSourcePath(h.sourceRoot, tenantID, body.SourcePath)
		if err != nil {
			return service.ProcessRequest{}, err
		}
		body.SourcePath = path
	}
	return service.ProcessRequest{
		DocumentID:   documentID(body.DocumentID),
		TenantID:     tenantID,
		DocumentType: body.DocumentType,
		SourcePath:   body.SourcePath,
		SourceKey:    body.SourceKey,
	}, nil
}

func documentID(given string) string {
	if given = strings.TrimSpace(given); given != "" {
		return given
	}
	return uuid.NewString()
}

// Status handles GET /api/v1/status/:task_id
// @Summary Poll the state of a queued task
// @Produce json
// @Param task_id path string true "Task ID"
// @Success 200 {object} APIResponse{data=domain.JobStatusPayload}
// @Failure 404 {object} APIResponse
// @Router /status/{task_id} [get]
func (h *QueueHandler) Status(c *gin.Context) {
	payload, err := h.adapter.GetStatus(c.Request.Context(), c.Param("task_id"))
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}
	RespondOK(c, payload)
}
