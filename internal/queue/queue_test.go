package queue_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"digidoc/internal/config"
	"digidoc/internal/domain"
	"digidoc/internal/port"
	"digidoc/internal/queue"
	"digidoc/internal/repository/sqlstore"
)

func echoTask(_ context.Context, args map[string]any) (any, error) {
	return map[string]any{"echo": args["value"]}, nil
}

func newRegistry() *queue.TaskRegistry {
	r := queue.NewTaskRegistry()
	r.Register("echo", echoTask)
	return r
}

func newRedisBackend(t *testing.T) (*queue.RedisBackend, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return queue.NewRedisBackend(client, "documents"), mr
}

func TestTaskRegistry(t *testing.T) {
	r := queue.NewTaskRegistry()
	r.Register("b", echoTask)
	r.Register("a", echoTask)

	_, ok := r.Lookup("a")
	assert.True(t, ok)
	_, ok = r.Lookup("missing")
	assert.False(t, ok)
	assert.Equal(t, []string{"a", "b"}, r.Names())
}

func TestAdapter_EnqueueUnknownTask(t *testing.T) {
	backend := queue.NewMemoryBackend("documents")
	a := queue.NewAdapter(backend, newRegistry(), nil)

	_, err := a.Enqueue(context.Background(), "nope", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnknownTask)

	jobs, err := backend.Claim(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestAdapter_EnqueueAndStatus(t *testing.T) {
	ctx := context.Background()
	a := queue.NewAdapter(queue.NewMemoryBackend("documents"), newRegistry(), nil)

	res, err := a.Enqueue(ctx, "echo", map[string]any{"value": "x"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.TaskID)
	assert.Equal(t, domain.JobStatusQueued, res.Status)
	assert.Equal(t, "memory", res.Metadata["backend"])

	st, err := a.GetStatus(ctx, res.TaskID)
	require.NoError(t, err)
	assert.Equal(t, res.TaskID, st.TaskID)
	assert.Equal(t, domain.JobStatusQueued, st.Status)
	assert.Nil(t, st.StartedAt)
	assert.Nil(t, st.EndedAt)
}

func TestAdapter_EnqueueDelayed(t *testing.T) {
	ctx := context.Background()
	a := queue.NewAdapter(queue.NewMemoryBackend("documents"), newRegistry(), nil)

	res, err := a.EnqueueDelayed(ctx, "echo", time.Hour, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusScheduled, res.Status)
	assert.Contains(t, res.Message, "scheduled")

	_, err = a.EnqueueDelayed(ctx, "unknown", time.Hour, nil)
	assert.ErrorIs(t, err, domain.ErrUnknownTask)
}

func TestAdapter_GetStatusUnknown(t *testing.T) {
	a := queue.NewAdapter(queue.NewMemoryBackend("documents"), newRegistry(), nil)
	_, err := a.GetStatus(context.Background(), "does-not-exist")
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
}

func TestNewBackend(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown adapter", func(t *testing.T) {
		_, err := queue.NewBackend(ctx, config.QueueConfig{Adapter: "rabbit"}, nil, nil)
		assert.ErrorIs(t, err, domain.ErrQueueBackend)
	})
	t.Run("memory", func(t *testing.T) {
		b, err := queue.NewBackend(ctx, config.QueueConfig{Adapter: "memory", Name: "q"}, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, "memory", b.Name())
	})
	t.Run("postgres without database", func(t *testing.T) {
		_, err := queue.NewBackend(ctx, config.QueueConfig{Adapter: "postgres"}, nil, nil)
		assert.ErrorIs(t, err, domain.ErrQueueBackend)
	})
	t.Run("postgres on sqlite", func(t *testing.T) {
		db, err := sqlstore.OpenSQLiteMemory()
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })

		b, err := queue.NewBackend(ctx, config.QueueConfig{Adapter: "postgres", Name: "q"}, db, nil)
		require.NoError(t, err)
		assert.Equal(t, "postgres", b.Name())
	})
	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		b, err := queue.NewBackend(ctx, config.QueueConfig{Adapter: "redis", BackendURL: "redis://" + mr.Addr() + "/0", Name: "q"}, nil, nil)
		require.NoError(t, err)
		t.Cleanup(func() { b.Close() })
		assert.Equal(t, "redis", b.Name())
		assert.NoError(t, b.Ping(ctx))
	})
	t.Run("redis bad url", func(t *testing.T) {
		_, err := queue.NewBackend(ctx, config.QueueConfig{Adapter: "redis", BackendURL: "http://nope"}, nil, nil)
		assert.ErrorIs(t, err, domain.ErrQueueBackend)
	})
}

// backendContract exercises the lifecycle every backend must honor.
func backendContract(t *testing.T, b port.QueueBackend) {
	ctx := context.Background()

	first := &domain.QueueJob{ID: "job-1", TaskName: "echo", Args: domain.JSONMap{"value": "a"}}
	second := &domain.QueueJob{ID: "job-2", TaskName: "echo"}
	require.NoError(t, b.Push(ctx, first))
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, b.Push(ctx, second))
	assert.Equal(t, domain.JobStatusQueued, first.Status)

	claimed, err := b.Claim(ctx, 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, "job-1", claimed[0].ID)
	assert.Equal(t, domain.JobStatusStarted, claimed[0].Status)
	assert.Equal(t, 1, claimed[0].Attempts)
	assert.NotNil(t, claimed[0].StartedAt)
	assert.Equal(t, "a", claimed[0].Args["value"])

	require.NoError(t, b.Complete(ctx, "job-1", json.RawMessage(`{"ok":true}`)))
	got, err := b.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, got.Status)
	assert.JSONEq(t, `{"ok":true}`, string(got.Result))
	assert.NotNil(t, got.EndedAt)

	claimed, err = b.Claim(ctx, 5)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	require.NoError(t, b.Fail(ctx, "job-2", "boom"))
	got, err = b.Get(ctx, "job-2")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, got.Status)
	assert.Equal(t, "boom", got.StatusPayload().Error)

	claimed, err = b.Claim(ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, claimed)

	_, err = b.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
	assert.ErrorIs(t, b.Complete(ctx, "missing", nil), domain.ErrJobNotFound)
	assert.ErrorIs(t, b.Fail(ctx, "missing", "x"), domain.ErrJobNotFound)
}

func scheduledContract(t *testing.T, b port.QueueBackend) {
	ctx := context.Background()

	later := time.Now().Add(time.Hour)
	soon := time.Now().Add(20 * time.Millisecond)
	require.NoError(t, b.Push(ctx, &domain.QueueJob{ID: "later", TaskName: "echo", ScheduledFor: &later}))
	require.NoError(t, b.Push(ctx, &domain.QueueJob{ID: "soon", TaskName: "echo", ScheduledFor: &soon}))

	got, err := b.Get(ctx, "soon")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusScheduled, got.Status)

	claimed, err := b.Claim(ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, claimed)

	time.Sleep(40 * time.Millisecond)
	claimed, err = b.Claim(ctx, 5)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, "soon", claimed[0].ID)
	assert.NotNil(t, claimed[0].EnqueuedAt)
}

func TestMemoryBackend(t *testing.T) {
	backendContract(t, queue.NewMemoryBackend("documents"))
}

func TestMemoryBackend_Scheduled(t *testing.T) {
	scheduledContract(t, queue.NewMemoryBackend("documents"))
}

func TestMemoryBackend_DuplicateID(t *testing.T) {
	b := queue.NewMemoryBackend("documents")
	require.NoError(t, b.Push(context.Background(), &domain.QueueJob{ID: "x", TaskName: "echo"}))
	assert.Error(t, b.Push(context.Background(), &domain.QueueJob{ID: "x", TaskName: "echo"}))
}

func TestRedisBackend(t *testing.T) {
	b, _ := newRedisBackend(t)
	backendContract(t, b)
}

func TestRedisBackend_Scheduled(t *testing.T) {
	b, _ := newRedisBackend(t)
	scheduledContract(t, b)
}

func TestRedisBackend_TerminalJobsExpire(t *testing.T) {
	b, mr := newRedisBackend(t)
	ctx := context.Background()

	require.NoError(t, b.Push(ctx, &domain.QueueJob{ID: "j", TaskName: "echo"}))
	_, err := b.Claim(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, b.Complete(ctx, "j", json.RawMessage(`1`)))

	assert.Greater(t, mr.TTL("digidoc:documents:job:j"), time.Duration(0))
	mr.FastForward(8 * 24 * time.Hour)
	_, err = b.Get(ctx, "j")
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
}

func TestRedisBackend_QueuesAreIsolated(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	ctx := context.Background()

	a := queue.NewRedisBackend(client, "a")
	b := queue.NewRedisBackend(client, "b")
	require.NoError(t, a.Push(ctx, &domain.QueueJob{ID: "only-a", TaskName: "echo"}))

	claimed, err := b.Claim(ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, claimed)

	claimed, err = a.Claim(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, claimed, 1)
}

func runWorker(t *testing.T, backend port.QueueBackend, tasks *queue.TaskRegistry, timeout time.Duration) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	w := queue.NewWorker(backend, tasks, queue.WorkerConfig{
		PollInterval: 5 * time.Millisecond,
		JobTimeout:   timeout,
		Concurrency:  2,
	}, nil)
	go func() {
		w.Start(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func waitTerminal(t *testing.T, a *queue.Adapter, id string) domain.JobStatusPayload {
	t.Helper()
	var st domain.JobStatusPayload
	require.Eventually(t, func() bool {
		var err error
		st, err = a.GetStatus(context.Background(), id)
		return err == nil && st.Status.IsTerminal()
	}, 2*time.Second, 5*time.Millisecond)
	return st
}

func TestWorker_RunsJobs(t *testing.T) {
	tasks := newRegistry()
	tasks.Register("fail", func(context.Context, map[string]any) (any, error) {
		return nil, errors.New("document unreadable")
	})
	tasks.Register("panic", func(context.Context, map[string]any) (any, error) {
		panic("nil image")
	})
	tasks.Register("slow", func(ctx context.Context, _ map[string]any) (any, error) {
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		return "late", nil
	})

	backend := queue.NewMemoryBackend("documents")
	a := queue.NewAdapter(backend, tasks, nil)
	runWorker(t, backend, tasks, 50*time.Millisecond)
	ctx := context.Background()

	ok, err := a.Enqueue(ctx, "echo", map[string]any{"value": "hi"})
	require.NoError(t, err)
	failing, err := a.Enqueue(ctx, "fail", nil)
	require.NoError(t, err)
	panicking, err := a.Enqueue(ctx, "panic", nil)
	require.NoError(t, err)
	slow, err := a.Enqueue(ctx, "slow", nil)
	require.NoError(t, err)

	st := waitTerminal(t, a, ok.TaskID)
	assert.Equal(t, domain.JobStatusCompleted, st.Status)
	assert.JSONEq(t, `{"echo":"hi"}`, string(st.Result))
	assert.NotNil(t, st.StartedAt)
	assert.NotNil(t, st.EndedAt)

	st = waitTerminal(t, a, failing.TaskID)
	assert.Equal(t, domain.JobStatusFailed, st.Status)
	assert.Equal(t, "document unreadable", st.Error)

	st = waitTerminal(t, a, panicking.TaskID)
	assert.Equal(t, domain.JobStatusFailed, st.Status)
	assert.Contains(t, st.Error, "nil image")

	st = waitTerminal(t, a, slow.TaskID)
	assert.Equal(t, domain.JobStatusFailed, st.Status)
	assert.Equal(t, queue.TimeoutReason, st.Error)
}

func TestWorker_UnregisteredTaskFails(t *testing.T) {
	backend := queue.NewMemoryBackend("documents")
	tasks := newRegistry()
	require.NoError(t, backend.Push(context.Background(), &domain.QueueJob{ID: "orphan", TaskName: "retired_task"}))

	runWorker(t, backend, tasks, time.Second)
	st := waitTerminal(t, queue.NewAdapter(backend, tasks, nil), "orphan")
	assert.Equal(t, domain.JobStatusFailed, st.Status)
	assert.Contains(t, st.Error, "retired_task")
}

func TestRedisBackend_ClaimMarksEveryPoppedJob(t *testing.T) {
	b, mr := newRedisBackend(t)
	ctx := context.Background()

	const jobs = 30
	for i := 0; i < jobs; i++ {
		require.NoError(t, b.Push(ctx, &domain.QueueJob{ID: fmt.Sprintf("job-%02d", i), TaskName: "echo"}))
	}

	var (
		mu   sync.Mutex
		seen = map[string]int{}
		g    errgroup.Group
	)
	for w := 0; w < 4; w++ {
		g.Go(func() error {
			for {
				claimed, err := b.Claim(ctx, 3)
				if err != nil {
					return err
				}
				if len(claimed) == 0 {
					return nil
				}
				mu.Lock()
				for _, j := range claimed {
					seen[j.ID]++
				}
				mu.Unlock()
			}
		})
	}
	require.NoError(t, g.Wait())

	assert.Len(t, seen, jobs)
	for id, n := range seen {
		assert.Equal(t, 1, n, id)
		assert.Equal(t, string(domain.JobStatusStarted), mr.HGet("digidoc:documents:job:"+id, "status"), id)
		assert.Equal(t, "1", mr.HGet("digidoc:documents:job:"+id, "attempts"), id)
	}
	assert.False(t, mr.Exists("digidoc:documents:ready"))
}

func TestRedisBackend_ClaimDropsExpiredIDs(t *testing.T) {
	b, mr := newRedisBackend(t)
	ctx := context.Background()

	require.NoError(t, b.Push(ctx, &domain.QueueJob{ID: "gone", TaskName: "echo"}))
	require.NoError(t, b.Push(ctx, &domain.QueueJob{ID: "kept", TaskName: "echo"}))
	mr.Del("digidoc:documents:job:gone")

	claimed, err := b.Claim(ctx, 5)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, "kept", claimed[0].ID)
	assert.False(t, mr.Exists("digidoc:documents:ready"))
}
