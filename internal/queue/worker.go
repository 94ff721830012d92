package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"digidoc/internal/domain"
	"digidoc/internal/logging"
	"digidoc/internal/port"
)

// TimeoutReason is the failure reason recorded for jobs that outlive the
// per-job timeout.
const TimeoutReason = "job exceeded timeout"

// finishTimeout bounds the status write after a job ends.
const finishTimeout = 10 * time.Second

// WorkerConfig holds settings for the queue worker.
type WorkerConfig struct {
	PollInterval time.Duration
	JobTimeout   time.Duration
	Concurrency  int
}

// Worker polls a backend for runnable jobs and dispatches them to task
// handlers.
type Worker struct {
	backend port.QueueBackend
	tasks   *TaskRegistry
	cfg     WorkerConfig
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// NewWorker creates a new Worker.
func NewWorker(backend port.QueueBackend, tasks *TaskRegistry, cfg WorkerConfig, logger *slog.Logger) *Worker {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	return &Worker{
		backend: backend,
		tasks:   tasks,
		cfg:     cfg,
		logger:  logging.OrDiscard(logger),
	}
}

// Start runs the polling loop until ctx is canceled. It blocks until all
// in-flight jobs have finished.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	sem := make(chan struct{}, w.cfg.Concurrency)

	w.logger.Info("queue.Worker: started",
		"backend", w.backend.Name(),
		"poll", w.cfg.PollInterval,
		"concurrency", w.cfg.Concurrency,
		"job_timeout", w.cfg.JobTimeout)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("queue.Worker: shutting down, waiting for in-flight jobs")
			w.wg.Wait()
			w.logger.Info("queue.Worker: shutdown complete")
			return
		case <-ticker.C:
			available := w.cfg.Concurrency - len(sem)
			if available <= 0 {
				continue
			}

			jobs, err := w.backend.Claim(ctx, available)
			if err != nil {
				if ctx.Err() != nil {
					continue
				}
				w.logger.Error("queue.Worker: claim failed", "error", err)
				continue
			}

			for i := range jobs {
				job := jobs[i]

				sem <- struct{}{}
				w.wg.Add(1)
				go func() {
					defer w.wg.Done()
					defer func() { <-sem }()

					// Detached from the poll context so in-flight jobs
					// complete during shutdown.
					w.execute(context.Background(), job)
				}()
			}
		}
	}
}

type outcome struct {
	value any
	err   error
}

// execute runs one claimed job and records its terminal status.
func (w *Worker) execute(parent context.Context, job domain.QueueJob) {
	log := w.logger.With("task_id", job.ID, "task_name", job.TaskName, "attempt", job.Attempts)
	start := time.Now()

	handler, ok := w.tasks.Lookup(job.TaskName)
	if !ok {
		w.fail(job.ID, fmt.Sprintf("%v: %s", domain.ErrUnknownTask, job.TaskName), log)
		return
	}

	ctx := parent
	if w.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, w.cfg.JobTimeout)
		defer cancel()
	}

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error("queue.Worker: task panicked", "panic", r, "stack", string(debug.Stack()))
				done <- outcome{err: fmt.Errorf("task panicked: %v", r)}
			}
		}()
		v, err := handler(ctx, map[string]any(job.Args))
		done <- outcome{value: v, err: err}
	}()

	log.Info("queue.Worker: job started")
	select {
	case <-ctx.Done():
		log.Warn("queue.Worker: job timed out", "timeout", w.cfg.JobTimeout)
		w.fail(job.ID, TimeoutReason, log)
	case out := <-done:
		if out.err != nil {
			w.fail(job.ID, out.err.Error(), log)
			return
		}
		result, err := json.Marshal(out.value)
		if err != nil {
			w.fail(job.ID, fmt.Sprintf("encoding result: %v", err), log)
			return
		}
		fctx, cancel := context.WithTimeout(context.Background(), finishTimeout)
		defer cancel()
		if err := w.backend.Complete(fctx, job.ID, result); err != nil {
			log.Error("queue.Worker: recording completion failed", "error", err)
			return
		}
		log.Info("queue.Worker: job completed", "duration_ms", time.Since(start).Milliseconds())
	}
}

func (w *Worker) fail(id, reason string, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), finishTimeout)
	defer cancel()
	if err := w.backend.Fail(ctx, id, reason); err != nil {
		log.Error("queue.Worker: recording failure failed", "error", err)
		return
	}
	log.Warn("queue.Worker: job failed", "reason", reason)
}
