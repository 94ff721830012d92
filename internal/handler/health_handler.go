package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"digidoc/internal/port"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	db    *sqlx.DB
	queue port.QueueBackend
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(db *sqlx.DB, queue port.QueueBackend) *HealthHandler {
	return &HealthHandler{db: db, queue: queue}
}

// Liveness handles GET /healthz
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readiness handles GET /readyz
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.db.PingContext(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": "database not reachable"})
		return
	}
	if err := h.queue.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": "queue backend not reachable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "queue": h.queue.Name()})
}
