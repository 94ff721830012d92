// Package app wires the document pipeline, queue and HTTP surface from
// configuration. The server, worker and tool binaries share it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/robfig/cron/v3"

	"digidoc/internal/config"
	"digidoc/internal/extractor"
	"digidoc/internal/handler"
	"digidoc/internal/imaging"
	"digidoc/internal/logging"
	"digidoc/internal/ocr"
	"digidoc/internal/port"
	"digidoc/internal/queue"
	"digidoc/internal/repository/sqlstore"
	"digidoc/internal/router"
	"digidoc/internal/scoring"
	"digidoc/internal/service"
	"digidoc/internal/storage/local"
	s3storage "digidoc/internal/storage/s3"
	"digidoc/internal/templates"
)

// App holds the long-lived components of a process.
type App struct {
	Config    *config.Store
	Logger    *slog.Logger
	DB        *sqlx.DB
	Tenants   port.TenantRegistrationRepository
	SyncMeta  port.SyncMetadataRepository
	Cache     *templates.Cache
	Syncer    *templates.Syncer
	Artifacts port.ArtifactStore
	Mirror    *s3storage.Mirror
	Uploads   port.UploadStore
	OCR       port.OCREngine
	Formats   *extractor.Registry
	Processor *service.DocumentProcessor
	Tasks     *queue.TaskRegistry
	Backend   port.QueueBackend
	Queue     *queue.Adapter
}

// New connects to the database and queue backend and builds the pipeline.
// SQLite databases are migrated on open; PostgreSQL is migrated with
// cmd/migrate.
func New(ctx context.Context, cfgs *config.Store, logger *slog.Logger) (*App, error) {
	cfg := cfgs.Get()
	logger = logging.OrDiscard(logger)

	db, err := sqlstore.NewDB(&cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("app.New: %w", err)
	}
	if cfg.DB.Driver == "sqlite" {
		if err := sqlstore.Migrate(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("app.New: %w", err)
		}
	}

	a := &App{
		Config:   cfgs,
		Logger:   logger,
		DB:       db,
		Tenants:  sqlstore.NewTenantRegistrationRepo(db),
		SyncMeta: sqlstore.NewSyncMetadataRepo(db),
	}
	a.Cache = templates.NewCache(sqlstore.NewTemplateRepo(db), cfg.Templates.CacheTTL, logger)
	a.Syncer = templates.NewSyncer(a.Cache, a.Tenants, a.SyncMeta, nil, cfg.Templates.SyncTimeout, logger)

	objects, err := s3storage.NewBucket(ctx, &cfg.S3)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("app.New: %w", err)
	}
	a.Artifacts = local.NewArtifactStore(cfg.Paths.StorageBase)
	if cfg.Storage.S3Mirror {
		a.Mirror = s3storage.NewMirror(a.Artifacts, objects, logger)
		a.Artifacts = a.Mirror
	}
	a.Uploads = local.NewUploadStore(cfg.Paths.StorageBase)
	a.OCR = ocr.NewTesseractEngine(cfg.OCR, nil, logger)
	a.Formats = extractor.NewRegistry(extractor.NewReceiptExtractor())

	a.Processor = service.NewDocumentProcessor(
		cfgs,
		imaging.NewPreprocessor(logger),
		a.Cache,
		a.Formats,
		a.OCR,
		scoring.NewScorer(),
		a.Artifacts,
		objects,
		logger,
	)
	a.Tasks = queue.NewTaskRegistry()
	service.RegisterTasks(a.Tasks, a.Processor)

	a.Backend, err = queue.NewBackend(ctx, cfg.Queue, db, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("app.New: %w", err)
	}
	a.Queue = queue.NewAdapter(a.Backend, a.Tasks, logger)
	return a, nil
}

// Router builds the HTTP engine.
func (a *App) Router() *gin.Engine {
	cfg := a.Config.Get()
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	var linker handler.ArtifactLinker
	if a.Mirror != nil {
		linker = a.Mirror
	}
	return router.Setup(router.Handlers{
		Queue:     handler.NewQueueHandler(a.Queue, a.Uploads, cfg.Paths.StorageBase, cfg.Server.MaxUploadSize, a.Logger),
		Format:    handler.NewFormatHandler(a.Formats, a.OCR, cfg.Paths.StorageBase, cfg.Server.MaxUploadSize, a.Logger),
		Templates: handler.NewTemplateHandler(a.Cache, a.Syncer, a.SyncMeta, a.Processor, cfg.Server.MaxUploadSize, a.Logger),
		Artifacts: handler.NewArtifactHandler(a.Artifacts, linker, a.Logger),
		Health:    handler.NewHealthHandler(a.DB, a.Backend),
	}, a.Tenants, cfg.Server.CORSOrigins, a.Logger)
}

// Worker builds a queue worker for the configured backend.
func (a *App) Worker() *queue.Worker {
	q := a.Config.Get().Queue
	return queue.NewWorker(a.Backend, a.Tasks, queue.WorkerConfig{
		PollInterval: q.PollInterval,
		JobTimeout:   q.JobTimeout,
		Concurrency:  q.Concurrency,
	}, a.Logger)
}

// StartTemplateSync schedules SyncAll on the configured cron schedule and
// returns the running scheduler. An empty schedule disables it and returns
// nil.
func (a *App) StartTemplateSync() (*cron.Cron, error) {
	cfg := a.Config.Get().Templates
	if cfg.SyncSchedule == "" {
		a.Logger.Info("app.StartTemplateSync: disabled")
		return nil, nil
	}

	c := cron.New()
	_, err := c.AddFunc(cfg.SyncSchedule, func() {
		// Each tenant request is bounded by the syncer's client timeout.
		summary, err := a.Syncer.SyncAll(context.Background())
		if err != nil {
			a.Logger.Error("app.StartTemplateSync: run failed", "error", err)
			return
		}
		a.Logger.Info("app.StartTemplateSync: run done",
			"tenants", summary.Tenants,
			"synced", summary.Synced,
			"failed", len(summary.Failed))
	})
	if err != nil {
		return nil, fmt.Errorf("app.StartTemplateSync: invalid schedule %q: %w", cfg.SyncSchedule, err)
	}
	c.Start()
	a.Logger.Info("app.StartTemplateSync: scheduled", "schedule", cfg.SyncSchedule)
	return c, nil
}

// WatchReload reloads the configuration on SIGHUP until ctx is done. Jobs
// already running keep the snapshot they started with.
func (a *App) WatchReload(ctx context.Context) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if _, err := a.Config.Reload(); err != nil {
				a.Logger.Error("app.WatchReload: keeping previous configuration", "error", err)
				continue
			}
			a.Logger.Info("app.WatchReload: configuration reloaded")
		}
	}
}

// Close releases the queue backend and database.
func (a *App) Close() error {
	var errs []error
	if a.Backend != nil {
		errs = append(errs, a.Backend.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}
