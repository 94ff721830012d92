package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"digidoc/internal/domain"
	"digidoc/internal/port"
)

// AdapterMemory selects the in-process backend.
const AdapterMemory = "memory"

// MemoryBackend keeps jobs in process memory. Jobs are lost on restart; it
// serves single-process deployments and tests.
type MemoryBackend struct {
	mu    sync.Mutex
	queue string
	jobs  map[string]*domain.QueueJob
	order []string
	now   func() time.Time
}

// NewMemoryBackend creates an empty in-process backend.
func NewMemoryBackend(queue string) *MemoryBackend {
	return &MemoryBackend{
		queue: queue,
		jobs:  make(map[string]*domain.QueueJob),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

var _ port.QueueBackend = (*MemoryBackend)(nil)

func (b *MemoryBackend) Name() string { return AdapterMemory }

func (b *MemoryBackend) Push(_ context.Context, job *domain.QueueJob) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.jobs[job.ID]; exists {
		return fmt.Errorf("queue.MemoryBackend.Push: duplicate job id %s", job.ID)
	}
	now := b.now()
	job.Queue = b.queue
	job.CreatedAt = now
	if job.Args == nil {
		job.Args = domain.JSONMap{}
	}
	if job.ScheduledFor != nil && job.ScheduledFor.After(now) {
		job.Status = domain.JobStatusScheduled
	} else {
		job.Status = domain.JobStatusQueued
		job.EnqueuedAt = &now
	}
	stored := *job
	b.jobs[job.ID] = &stored
	b.order = append(b.order, job.ID)
	return nil
}

func (b *MemoryBackend) Get(_ context.Context, id string) (*domain.QueueJob, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	job, ok := b.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	out := *job
	return &out, nil
}

func (b *MemoryBackend) Claim(_ context.Context, limit int) ([]domain.QueueJob, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	var claimed []domain.QueueJob
	for _, id := range b.order {
		if len(claimed) >= limit {
			break
		}
		job := b.jobs[id]
		runnable := job.Status == domain.JobStatusQueued ||
			(job.Status == domain.JobStatusScheduled && job.ScheduledFor != nil && !job.ScheduledFor.After(now))
		if !runnable {
			continue
		}
		if job.EnqueuedAt == nil {
			job.EnqueuedAt = &now
		}
		started := now
		job.Status = domain.JobStatusStarted
		job.StartedAt = &started
		job.Attempts++
		claimed = append(claimed, *job)
	}
	return claimed, nil
}

func (b *MemoryBackend) Complete(_ context.Context, id string, result json.RawMessage) error {
	return b.finish(id, domain.JobStatusCompleted, domain.RawJSON(result), "")
}

func (b *MemoryBackend) Fail(_ context.Context, id string, reason string) error {
	return b.finish(id, domain.JobStatusFailed, nil, reason)
}

func (b *MemoryBackend) finish(id string, status domain.JobStatus, result domain.RawJSON, reason string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	job, ok := b.jobs[id]
	if !ok {
		return domain.ErrJobNotFound
	}
	ended := b.now()
	job.Status = status
	job.Result = result
	job.Error = reason
	job.EndedAt = &ended
	return nil
}

func (b *MemoryBackend) Ping(context.Context) error { return nil }

func (b *MemoryBackend) Close() error { return nil }
