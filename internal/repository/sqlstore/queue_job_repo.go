package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"

	"digidoc/internal/domain"
	"digidoc/internal/port"
)

// QueueBackendName is the adapter name of the table-backed queue.
const QueueBackendName = "postgres"

type queueJobRepo struct {
	db    *sqlx.DB
	queue string
	now   func() time.Time
}

// NewQueueJobRepo creates a QueueBackend over the queue_jobs table. Jobs are
// partitioned by queue name.
func NewQueueJobRepo(db *sqlx.DB, queue string) port.QueueBackend {
	return &queueJobRepo{db: db, queue: queue, now: func() time.Time { return time.Now().UTC() }}
}

func (r *queueJobRepo) Name() string { return QueueBackendName }

func (r *queueJobRepo) Push(ctx context.Context, job *domain.QueueJob) error {
	now := r.now()
	job.Queue = r.queue
	job.CreatedAt = now
	if job.Args == nil {
		job.Args = domain.JSONMap{}
	}
	if job.ScheduledFor != nil && job.ScheduledFor.After(now) {
		job.Status = domain.JobStatusScheduled
		job.EnqueuedAt = nil
	} else {
		job.Status = domain.JobStatusQueued
		job.EnqueuedAt = &now
	}

	query := r.db.Rebind(`INSERT INTO queue_jobs
		(id, queue, task_name, args, status, error, attempts, created_at, enqueued_at, scheduled_for)
		VALUES (?, ?, ?, ?, ?, '', 0, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, query,
		job.ID, job.Queue, job.TaskName, job.Args, job.Status, job.CreatedAt, job.EnqueuedAt, utcPtr(job.ScheduledFor))
	if err != nil {
		return fmt.Errorf("queueJobRepo.Push: %w", err)
	}
	return nil
}

func (r *queueJobRepo) Get(ctx context.Context, id string) (*domain.QueueJob, error) {
	var job domain.QueueJob
	err := r.db.GetContext(ctx, &job, r.db.Rebind("SELECT * FROM queue_jobs WHERE id = ?"), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("queueJobRepo.Get: %w", err)
	}
	return &job, nil
}

// Claim atomically moves up to limit runnable jobs to started. Postgres
// skips rows locked by concurrent claimers; sqlite serializes writers.
func (r *queueJobRepo) Claim(ctx context.Context, limit int) ([]domain.QueueJob, error) {
	if limit <= 0 {
		return nil, nil
	}
	lock := " FOR UPDATE SKIP LOCKED"
	if isSQLite(r.db) {
		lock = ""
	}
	now := r.now()
	query := r.db.Rebind(`UPDATE queue_jobs
		SET status = ?, started_at = ?, attempts = attempts + 1, enqueued_at = COALESCE(enqueued_at, ?)
		WHERE id IN (
			SELECT id FROM queue_jobs
			WHERE queue = ? AND (status = ? OR (status = ? AND scheduled_for <= ?))
			ORDER BY created_at
			LIMIT ?` + lock + `
		)
		RETURNING *`)

	jobs := []domain.QueueJob{}
	err := r.db.SelectContext(ctx, &jobs, query,
		domain.JobStatusStarted, now, now,
		r.queue, domain.JobStatusQueued, domain.JobStatusScheduled, now,
		limit)
	if err != nil {
		return nil, fmt.Errorf("queueJobRepo.Claim: %w", err)
	}
	sort.SliceStable(jobs, func(i, j int) bool { return jobs[i].CreatedAt.Before(jobs[j].CreatedAt) })
	return jobs, nil
}

func (r *queueJobRepo) Complete(ctx context.Context, id string, result json.RawMessage) error {
	return r.finish(ctx, "queueJobRepo.Complete", id, domain.JobStatusCompleted, domain.RawJSON(result), "")
}

func (r *queueJobRepo) Fail(ctx context.Context, id string, reason string) error {
	return r.finish(ctx, "queueJobRepo.Fail", id, domain.JobStatusFailed, nil, reason)
}

func (r *queueJobRepo) finish(ctx context.Context, op, id string, status domain.JobStatus, result domain.RawJSON, reason string) error {
	query := r.db.Rebind(`UPDATE queue_jobs SET status = ?, result = ?, error = ?, ended_at = ? WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, query, status, result, reason, r.now(), id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}

func (r *queueJobRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close is a no-op; the pool belongs to the caller.
func (r *queueJobRepo) Close() error { return nil }
