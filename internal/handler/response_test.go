package handler_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"digidoc/internal/domain"
	"digidoc/internal/handler"
)

func TestMapDomainError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{domain.ErrJobNotFound, http.StatusNotFound, "JOB_NOT_FOUND"},
		{fmt.Errorf("templates.Cache.GetByID: %w", domain.ErrTemplateNotFound), http.StatusNotFound, "TEMPLATE_NOT_FOUND"},
		{domain.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{domain.ErrUnauthorized, http.StatusUnauthorized, "UNAUTHORIZED"},
		{domain.ErrUnknownTask, http.StatusBadRequest, "UNKNOWN_TASK"},
		{domain.ErrUnsupportedFormat, http.StatusBadRequest, "UNSUPPORTED_FORMAT"},
		{domain.ErrFileTooLarge, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE"},
		{domain.ErrImageDecode, http.StatusUnprocessableEntity, "IMAGE_DECODE"},
		{domain.ErrOCRFailure, http.StatusBadGateway, "OCR_FAILED"},
		{domain.ErrInvalidRequest, http.StatusBadRequest, "INVALID_REQUEST"},
		{domain.ErrTemplateSync, http.StatusBadGateway, "TEMPLATE_SYNC_FAILED"},
		{domain.ErrQueueBackend, http.StatusServiceUnavailable, "QUEUE_UNAVAILABLE"},
		{errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		status, code, _ := handler.MapDomainError(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
		assert.Equal(t, tt.code, code, tt.err.Error())
	}
}

func TestMapDomainError_InvalidRequestKeepsDetail(t *testing.T) {
	_, _, msg := handler.MapDomainError(fmt.Errorf("%w: source_path is required", domain.ErrInvalidRequest))
	assert.Equal(t, "invalid request: source_path is required", msg)
}

func TestHandleError_HidesInternalDetail(t *testing.T) {
	c, w := newContext(http.MethodGet, "/x", nil, "")
	handler.HandleError(c, nil, errors.New("pq: connection reset"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection reset")
}
