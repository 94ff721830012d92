package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"digidoc/internal/domain"
	"digidoc/internal/port"
)

// AdapterRedis selects the redis backend.
const AdapterRedis = "redis"

// finishedTTL bounds how long terminal jobs stay pollable.
const finishedTTL = 7 * 24 * time.Hour

// RedisBackend stores each job in a hash, runnable job ids in a list and
// delayed job ids in a sorted set scored by their due time.
type RedisBackend struct {
	client *redis.Client
	queue  string
	now    func() time.Time
}

// NewRedisBackend creates a backend on client using keys under queue.
func NewRedisBackend(client *redis.Client, queue string) *RedisBackend {
	return &RedisBackend{client: client, queue: queue, now: func() time.Time { return time.Now().UTC() }}
}

var _ port.QueueBackend = (*RedisBackend)(nil)

func (b *RedisBackend) Name() string { return AdapterRedis }

func (b *RedisBackend) jobKey(id string) string { return "digidoc:" + b.queue + ":job:" + id }
func (b *RedisBackend) readyKey() string        { return "digidoc:" + b.queue + ":ready" }
func (b *RedisBackend) scheduledKey() string    { return "digidoc:" + b.queue + ":scheduled" }

func (b *RedisBackend) Push(ctx context.Context, job *domain.QueueJob) error {
	now := b.now()
	job.Queue = b.queue
	job.CreatedAt = now
	if job.Args == nil {
		job.Args = domain.JSONMap{}
	}
	delayed := job.ScheduledFor != nil && job.ScheduledFor.After(now)
	if delayed {
		job.Status = domain.JobStatusScheduled
	} else {
		job.Status = domain.JobStatusQueued
		job.EnqueuedAt = &now
	}

	fields, err := encodeJob(job)
	if err != nil {
		return fmt.Errorf("queue.RedisBackend.Push: %w", err)
	}
	_, err = b.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, b.jobKey(job.ID), fields)
		if delayed {
			p.ZAdd(ctx, b.scheduledKey(), redis.Z{Score: float64(job.ScheduledFor.UnixMilli()), Member: job.ID})
		} else {
			p.RPush(ctx, b.readyKey(), job.ID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("queue.RedisBackend.Push: %w", err)
	}
	return nil
}

func (b *RedisBackend) Get(ctx context.Context, id string) (*domain.QueueJob, error) {
	vals, err := b.client.HGetAll(ctx, b.jobKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("queue.RedisBackend.Get: %w", err)
	}
	if len(vals) == 0 {
		return nil, domain.ErrJobNotFound
	}
	job, err := decodeJob(vals)
	if err != nil {
		return nil, fmt.Errorf("queue.RedisBackend.Get: %w", err)
	}
	return job, nil
}

// claimScript moves due scheduled ids onto the ready list, then pops up to
// ARGV[3] ready ids and marks each job started. A popped id always has its
// hash marked started in the same step.
//
// KEYS: ready list, scheduled set. ARGV: job key prefix, now (unix ms),
// limit, now (RFC 3339), queued status, started status.
var claimScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[2], '-inf', ARGV[2])
for _, id in ipairs(due) do
	redis.call('ZREM', KEYS[2], id)
	redis.call('HSET', ARGV[1] .. id, 'status', ARGV[5], 'enqueued_at', ARGV[4])
	redis.call('RPUSH', KEYS[1], id)
end

local claimed = {}
local limit = tonumber(ARGV[3])
while #claimed < limit do
	local id = redis.call('LPOP', KEYS[1])
	if not id then
		break
	end
	local key = ARGV[1] .. id
	if redis.call('EXISTS', key) == 1 then
		redis.call('HSET', key, 'status', ARGV[6], 'started_at', ARGV[4])
		redis.call('HINCRBY', key, 'attempts', 1)
		claimed[#claimed + 1] = id
	end
end
return claimed
`)

// Claim promotes due scheduled jobs and claims up to limit ready jobs in a
// single script call. Ids whose hash has expired are dropped.
func (b *RedisBackend) Claim(ctx context.Context, limit int) ([]domain.QueueJob, error) {
	if limit <= 0 {
		return nil, nil
	}
	now := b.now()
	ids, err := claimScript.Run(ctx, b.client,
		[]string{b.readyKey(), b.scheduledKey()},
		b.jobKey(""),
		now.UnixMilli(),
		limit,
		formatTime(&now),
		string(domain.JobStatusQueued),
		string(domain.JobStatusStarted),
	).StringSlice()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("queue.RedisBackend.Claim: %w", err)
	}

	claimed := make([]domain.QueueJob, 0, len(ids))
	for _, id := range ids {
		job, err := b.Get(ctx, id)
		if err != nil {
			return claimed, fmt.Errorf("queue.RedisBackend.Claim: %w", err)
		}
		claimed = append(claimed, *job)
	}
	return claimed, nil
}

func (b *RedisBackend) Complete(ctx context.Context, id string, result json.RawMessage) error {
	return b.finish(ctx, "queue.RedisBackend.Complete", id, domain.JobStatusCompleted, string(result), "")
}

func (b *RedisBackend) Fail(ctx context.Context, id string, reason string) error {
	return b.finish(ctx, "queue.RedisBackend.Fail", id, domain.JobStatusFailed, "", reason)
}

func (b *RedisBackend) finish(ctx context.Context, op, id string, status domain.JobStatus, result, reason string) error {
	key := b.jobKey(id)
	n, err := b.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return domain.ErrJobNotFound
	}
	now := b.now()
	_, err = b.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key,
			"status", string(status),
			"result", result,
			"error", reason,
			"ended_at", formatTime(&now))
		p.Expire(ctx, key, finishedTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (b *RedisBackend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *RedisBackend) Close() error {
	return b.client.Close()
}

func encodeJob(job *domain.QueueJob) (map[string]any, error) {
	args, err := json.Marshal(job.Args)
	if err != nil {
		return nil, fmt.Errorf("encoding args: %w", err)
	}
	return map[string]any{
		"id":            job.ID,
		"queue":         job.Queue,
		"task_name":     job.TaskName,
		"args":          string(args),
		"status":        string(job.Status),
		"result":        string(job.Result),
		"error":         job.Error,
		"attempts":      job.Attempts,
		"created_at":    formatTime(&job.CreatedAt),
		"enqueued_at":   formatTime(job.EnqueuedAt),
		"scheduled_for": formatTime(job.ScheduledFor),
		"started_at":    formatTime(job.StartedAt),
		"ended_at":      formatTime(job.EndedAt),
	}, nil
}

func decodeJob(vals map[string]string) (*domain.QueueJob, error) {
	job := &domain.QueueJob{
		ID:       vals["id"],
		Queue:    vals["queue"],
		TaskName: vals["task_name"],
		Status:   domain.JobStatus(vals["status"]),
		Error:    vals["error"],
		Args:     domain.JSONMap{},
	}
	if raw := vals["args"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &job.Args); err != nil {
			return nil, fmt.Errorf("decoding args: %w", err)
		}
	}
	if raw := vals["result"]; raw != "" {
		job.Result = domain.RawJSON(raw)
	}
	if raw := vals["attempts"]; raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("decoding attempts: %w", err)
		}
		job.Attempts = n
	}

	created, err := parseTime(vals["created_at"])
	if err != nil {
		return nil, err
	}
	if created != nil {
		job.CreatedAt = *created
	}
	for field, dst := range map[string]**time.Time{
		"enqueued_at":   &job.EnqueuedAt,
		"scheduled_for": &job.ScheduledFor,
		"started_at":    &job.StartedAt,
		"ended_at":      &job.EndedAt,
	} {
		if *dst, err = parseTime(vals[field]); err != nil {
			return nil, err
		}
	}
	return job, nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, fmt.Errorf("decoding time %q: %w", s, err)
	}
	return &t, nil
}
