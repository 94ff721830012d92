package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"digidoc/internal/config"
	"digidoc/internal/domain"
	"digidoc/internal/logging"
	"digidoc/internal/port"
	"digidoc/internal/repository/sqlstore"
)

// AdapterPostgres selects the table-backed backend.
const AdapterPostgres = sqlstore.QueueBackendName

// NewBackend builds the backend named by cfg.Adapter. db is only used by the
// postgres backend.
func NewBackend(ctx context.Context, cfg config.QueueConfig, db *sqlx.DB, logger *slog.Logger) (port.QueueBackend, error) {
	logger = logging.OrDiscard(logger)

	switch cfg.Adapter {
	case AdapterRedis:
		opts, err := redis.ParseURL(cfg.BackendURL)
		if err != nil {
			return nil, fmt.Errorf("queue.NewBackend: %w: parsing backend_url: %v", domain.ErrQueueBackend, err)
		}
		client := redis.NewClient(opts)

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("queue.NewBackend: %w: redis at %s: %v", domain.ErrQueueBackend, opts.Addr, err)
		}
		logger.Info("queue.NewBackend: using redis", "addr", opts.Addr, "queue", cfg.Name)
		return NewRedisBackend(client, cfg.Name), nil

	case AdapterPostgres:
		if db == nil {
			return nil, fmt.Errorf("queue.NewBackend: %w: postgres adapter needs a database", domain.ErrQueueBackend)
		}
		logger.Info("queue.NewBackend: using queue_jobs table", "driver", db.DriverName(), "queue", cfg.Name)
		return sqlstore.NewQueueJobRepo(db, cfg.Name), nil

	case AdapterMemory:
		logger.Warn("queue.NewBackend: using in-memory queue; jobs do not survive restarts", "queue", cfg.Name)
		return NewMemoryBackend(cfg.Name), nil

	default:
		return nil, fmt.Errorf("queue.NewBackend: %w: %q", domain.ErrQueueBackend, cfg.Adapter)
	}
}
