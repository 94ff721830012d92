package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"digidoc/internal/domain"
	"digidoc/internal/port"
)

const (
	ContextKeyTenantID  = "tenant_id"
	ContextKeyRequestID = "request_id"

	HeaderAPIKey = "X-API-Key"
)

// APIKey returns Gin middleware that resolves the X-API-Key header to an
// active tenant registration and injects the tenant id.
func APIKey(tenants port.TenantRegistrationRepository, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(HeaderAPIKey)
		if key == "" {
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing api key")
			return
		}

		reg, err := tenants.GetByAPIKey(c.Request.Context(), key)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid api key")
			return
		case err != nil:
			if logger != nil {
				logger.Error("middleware.APIKey: tenant lookup failed",
					"request_id", c.GetString(ContextKeyRequestID), "error", err)
			}
			abort(c, http.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred")
			return
		}
		if !reg.IsActive {
			abort(c, http.StatusForbidden, "TENANT_INACTIVE", "tenant is inactive")
			return
		}

		c.Set(ContextKeyTenantID, reg.TenantID)
		c.Next()
	}
}

// GetTenantID extracts the tenant ID from the Gin context.
func GetTenantID(c *gin.Context) (string, error) {
	val, exists := c.Get(ContextKeyTenantID)
	if !exists {
		return "", domain.ErrUnauthorized
	}
	id, ok := val.(string)
	if !ok || id == "" {
		return "", domain.ErrUnauthorized
	}
	return id, nil
}

func abort(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   gin.H{"code": code, "message": msg},
	})
}
