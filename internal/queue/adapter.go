package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"digidoc/internal/domain"
	"digidoc/internal/logging"
	"digidoc/internal/port"
)

// Adapter is the submission and polling side of the task queue.
type Adapter struct {
	backend port.QueueBackend
	tasks   *TaskRegistry
	logger  *slog.Logger
	now     func() time.Time
}

// NewAdapter creates an Adapter over backend. Task names are checked against
// tasks before anything is stored.
func NewAdapter(backend port.QueueBackend, tasks *TaskRegistry, logger *slog.Logger) *Adapter {
	return &Adapter{
		backend: backend,
		tasks:   tasks,
		logger:  logging.OrDiscard(logger),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Backend returns the configured backend.
func (a *Adapter) Backend() port.QueueBackend {
	return a.backend
}

// Enqueue submits a task for immediate execution.
func (a *Adapter) Enqueue(ctx context.Context, taskName string, args map[string]any) (domain.TaskResult, error) {
	return a.submit(ctx, "queue.Adapter.Enqueue", taskName, nil, args)
}

// EnqueueDelayed submits a task to run after delay. A non-positive delay
// behaves like Enqueue.
func (a *Adapter) EnqueueDelayed(ctx context.Context, taskName string, delay time.Duration, args map[string]any) (domain.TaskResult, error) {
	var at *time.Time
	if delay > 0 {
		t := a.now().Add(delay)
		at = &t
	}
	return a.submit(ctx, "queue.Adapter.EnqueueDelayed", taskName, at, args)
}

func (a *Adapter) submit(ctx context.Context, op, taskName string, at *time.Time, args map[string]any) (domain.TaskResult, error) {
	if _, ok := a.tasks.Lookup(taskName); !ok {
		return domain.TaskResult{}, fmt.Errorf("%s: %w: %q", op, domain.ErrUnknownTask, taskName)
	}

	job := &domain.QueueJob{
		ID:           uuid.NewString(),
		TaskName:     taskName,
		Args:         domain.JSONMap(args),
		ScheduledFor: at,
	}
	if err := a.backend.Push(ctx, job); err != nil {
		return domain.TaskResult{}, fmt.Errorf("%s: %w", op, err)
	}

	msg := "Task queued"
	meta := map[string]any{"task_name": taskName, "backend": a.backend.Name()}
	if job.Status == domain.JobStatusScheduled && job.ScheduledFor != nil {
		msg = "Task scheduled for " + job.ScheduledFor.Format(time.RFC3339)
		meta["scheduled_for"] = job.ScheduledFor.Format(time.RFC3339)
	}

	a.logger.Info(op+": submitted",
		"task_id", job.ID,
		"task_name", taskName,
		"status", job.Status,
		"backend", a.backend.Name())

	return domain.TaskResult{
		TaskID:   job.ID,
		Status:   job.Status,
		Message:  msg,
		Metadata: meta,
	}, nil
}

// GetStatus reports the backend's view of a job.
func (a *Adapter) GetStatus(ctx context.Context, taskID string) (domain.JobStatusPayload, error) {
	job, err := a.backend.Get(ctx, taskID)
	if err != nil {
		return domain.JobStatusPayload{}, fmt.Errorf("queue.Adapter.GetStatus: %w", err)
	}
	return job.StatusPayload(), nil
}
