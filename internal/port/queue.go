package port

import (
	"context"
	"encoding/json"

	"digidoc/internal/domain"
)

// QueueBackend stores jobs and hands them to workers. Status transitions are
// owned by the backend.
type QueueBackend interface {
	Name() string
	// Push stores job. A job with ScheduledFor in the future is held until
	// then with status scheduled; otherwise it is queued.
	Push(ctx context.Context, job *domain.QueueJob) error
	Get(ctx context.Context, id string) (*domain.QueueJob, error)
	// Claim moves up to limit runnable jobs to started and returns them.
	Claim(ctx context.Context, limit int) ([]domain.QueueJob, error)
	Complete(ctx context.Context, id string, result json.RawMessage) error
	Fail(ctx context.Context, id string, reason string) error
	Ping(ctx context.Context) error
	Close() error
}

// TaskHandler executes one job's task. The returned value is stored as the
// job result.
type TaskHandler func(ctx context.Context, args map[string]any) (any, error)
