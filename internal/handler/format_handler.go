package handler

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"digidoc/internal/domain"
	"digidoc/internal/extractor"
	"digidoc/internal/logging"
	"digidoc/internal/port"
)

// FormatDetectRequest is the JSON body of a format detection. Exactly one
// field is set.
type FormatDetectRequest struct {
	Text      string `json:"text"`
	ImagePath string `json:"image_path"`
}

// FormatDetectResponse reports the most confident format. Format and vendor
// are null when no extractor recognizes the text.
type FormatDetectResponse struct {
	FormatDetected *string `json:"format_detected"`
	Vendor         *string `json:"vendor"`
	Confidence     float64 `json:"confidence"`
	OCRTextLength  int     `json:"ocr_text_length"`
}

// FormatHandler runs format detection without extraction.
type FormatHandler struct {
	extractors     *extractor.Registry
	ocr            port.OCREngine
	sourceRoot     string
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewFormatHandler creates a new FormatHandler.
func NewFormatHandler(extractors *extractor.Registry, ocr port.OCREngine, sourceRoot string, maxUploadMB int64, logger *slog.Logger) *FormatHandler {
	return &FormatHandler{
		extractors:     extractors,
		ocr:            ocr,
		sourceRoot:     sourceRoot,
		maxUploadBytes: maxUploadMB << 20,
		logger:         logging.OrDiscard(logger),
	}
}

// Detect handles POST /api/v1/format/detect
// @Summary Detect the document format of OCR text or an image
// @Accept multipart/form-data,json
// @Produce json
// @Param file formData file false "Document image"
// @Param body body FormatDetectRequest false "OCR text or image path"
// @Success 200 {object} APIResponse{data=FormatDetectResponse}
// @Failure 400 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Router /format/detect [post]
func (h *FormatHandler) Detect(c *gin.Context) {
	tenantID, ok := tenantFromContext(c)
	if !ok {
		return
	}

	var (
		text string
		err  error
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		text, err = h.textFromUpload(c)
	} else {
		text, err = h.textFromJSON(c, tenantID)
	}
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}

	resp := FormatDetectResponse{OCRTextLength: len(text)}
	if ext, conf, found := h.extractors.Detect(text); found {
		format, vendor := ext.FormatID(), ext.Vendor()
		resp.FormatDetected, resp.Vendor, resp.Confidence = &format, &vendor, conf
	}
	RespondOK(c, resp)
}

func (h *FormatHandler) textFromJSON(c *gin.Context, tenantID string) (string, error) {
	var body FormatDetectRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
	switch {
	case body.Text != "" && body.ImagePath != "":
		return "", fmt.Errorf("%w: send either text or image_path", domain.ErrInvalidRequest)
	case body.Text != "":
		return body.Text, nil
	case body.ImagePath != "":
		path, err := tenantSourcePath(h.sourceRoot, tenantID, body.ImagePath)
		if err != nil {
			return "", err
		}
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return "", fmt.Errorf("handler.FormatHandler.textFromJSON: %w", domain.ErrNotFound)
			}
			return "", fmt.Errorf("handler.FormatHandler.textFromJSON: %w", err)
		}
		return h.recognize(c, path)
	default:
		return "", fmt.Errorf("%w: file, image_path or text is required", domain.ErrInvalidRequest)
	}
}

func (h *FormatHandler) textFromUpload(c *gin.Context) (string, error) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		return "", fmt.Errorf("%w: file field is required", domain.ErrInvalidRequest)
	}
	defer func() { _ = file.Close() }()

	if h.maxUploadBytes > 0 && header.Size > h.maxUploadBytes {
		return "", domain.ErrFileTooLarge
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(header.Filename), "."))
	if _, ok := domain.AllowedImageExtensions[ext]; !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, ext)
	}

	tmp, err := os.CreateTemp("", "digidoc-detect-*."+ext)
	if err != nil {
		return "", fmt.Errorf("handler.FormatHandler.textFromUpload: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := io.Copy(tmp, file); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("handler.FormatHandler.textFromUpload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("handler.FormatHandler.textFromUpload: %w", err)
	}
	return h.recognize(c, tmp.Name())
}

func (h *FormatHandler) recognize(c *gin.Context, path string) (string, error) {
	res, err := h.ocr.ProcessImage(c.Request.Context(), path)
	if err != nil || res == nil {
		return "", err
	}
	return res.Text, nil
}
