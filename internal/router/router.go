package router

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"digidoc/internal/handler"
	"digidoc/internal/middleware"
	"digidoc/internal/port"
)

// Handlers groups the HTTP handlers mounted by Setup.
type Handlers struct {
	Queue     *handler.QueueHandler
	Format    *handler.FormatHandler
	Templates *handler.TemplateHandler
	Artifacts *handler.ArtifactHandler
	Health    *handler.HealthHandler
}

// Setup configures the Gin engine with all routes and middleware.
func Setup(h Handlers, tenants port.TenantRegistrationRepository, corsOrigins []string, logger *slog.Logger) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	if len(corsOrigins) > 0 {
		r.Use(middleware.CORS(corsOrigins))
	}

	// Health checks
	r.GET("/healthz", h.Health.Liveness)
	r.GET("/readyz", h.Health.Readiness)

	// Everything under /api/v1 is scoped to the tenant owning the API key
	v1 := r.Group("/api/v1")
	v1.Use(middleware.APIKey(tenants, logger))

	v1.POST("/queue", h.Queue.Process)
	v1.POST("/queue/preprocess", h.Queue.Preprocess)
	v1.GET("/status/:task_id", h.Queue.Status)
	v1.POST("/format/detect", h.Format.Detect)

	tpl := v1.Group("/templates")
	tpl.GET("", h.Templates.List)
	tpl.DELETE("", h.Templates.Clear)
	tpl.POST("/sync", h.Templates.Sync)
	tpl.GET("/sync", h.Templates.SyncStatus)
	tpl.GET("/export", h.Templates.Export)
	tpl.GET("/:template_id", h.Templates.GetByID)
	tpl.PUT("/:template_id", h.Templates.Upsert)
	tpl.DELETE("/:template_id", h.Templates.Delete)
	tpl.POST("/:template_id/fingerprint", h.Templates.Learn)

	v1.GET("/documents/:document_id/artifacts/:name", h.Artifacts.Get)

	return r
}
