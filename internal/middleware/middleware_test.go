package middleware_test

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"digidoc/internal/domain"
	"digidoc/internal/middleware"
	"digidoc/mocks"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func tenantEcho(c *gin.Context) {
	id, err := middleware.GetTenantID(c)
	if err != nil {
		c.String(http.StatusTeapot, "no tenant")
		return
	}
	c.String(http.StatusOK, id)
}

func TestAPIKey(t *testing.T) {
	tenants := new(mocks.MockTenantRegistrationRepo)
	tenants.On("GetByAPIKey", mock.Anything, "good").
		Return(&domain.TenantRegistration{TenantID: "tenant-a", IsActive: true}, nil)
	tenants.On("GetByAPIKey", mock.Anything, "paused").
		Return(&domain.TenantRegistration{TenantID: "tenant-b", IsActive: false}, nil)
	tenants.On("GetByAPIKey", mock.Anything, "unknown").Return(nil, domain.ErrNotFound)
	tenants.On("GetByAPIKey", mock.Anything, "broken").Return(nil, errors.New("db down"))

	r := gin.New()
	r.GET("/t", middleware.APIKey(tenants, nil), tenantEcho)

	tests := []struct {
		key    string
		status int
	}{
		{"", http.StatusUnauthorized},
		{"unknown", http.StatusUnauthorized},
		{"paused", http.StatusForbidden},
		{"broken", http.StatusInternalServerError},
		{"good", http.StatusOK},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/t", nil)
		if tt.key != "" {
			req.Header.Set(middleware.HeaderAPIKey, tt.key)
		}
		w := serve(r, req)
		assert.Equal(t, tt.status, w.Code, "key %q", tt.key)
		if tt.status == http.StatusOK {
			assert.Equal(t, "tenant-a", w.Body.String())
		} else {
			assert.Contains(t, w.Body.String(), `"success":false`)
		}
	}
}

func TestGetTenantID_Missing(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	_, err := middleware.GetTenantID(c)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(middleware.RequestID())
	r.GET("/t", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(middleware.ContextKeyRequestID)) })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/t", nil))
	generated := w.Header().Get("X-Request-ID")
	require.NotEmpty(t, generated)
	assert.Equal(t, generated, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/t", nil)
	req.Header.Set("X-Request-ID", "req-42")
	w = serve(r, req)
	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Logger(logger))
	r.GET("/t", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet, "/t", nil)
	req.Header.Set("X-Request-ID", "req-7")
	serve(r, req)

	out := buf.String()
	assert.Contains(t, out, `"request_id":"req-7"`)
	assert.Contains(t, out, `"status":204`)
	assert.Contains(t, out, `"path":"/t"`)
}

func TestRecovery(t *testing.T) {
	var buf bytes.Buffer
	r := gin.New()
	r.Use(middleware.Recovery(slog.New(slog.NewTextHandler(&buf, nil))))
	r.GET("/t", func(*gin.Context) { panic("kaboom") })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/t", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL_ERROR")
	assert.Contains(t, buf.String(), "kaboom")
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(middleware.CORS([]string{"https://app.example"}))
	r.GET("/t", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/t", nil)
	req.Header.Set("Origin", "https://app.example")
	w := serve(r, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), middleware.HeaderAPIKey)

	req = httptest.NewRequest(http.MethodGet, "/t", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = serve(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
