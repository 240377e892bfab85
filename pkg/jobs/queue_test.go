package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stopQueue(t *testing.T, q *Queue) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, q.Stop(ctx))
}

func TestQueueProcessesJobs(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]string{}
	done := make(chan struct{}, 2)

	q := NewQueue("test", func(_ context.Context, job Job) error {
		mu.Lock()
		seen[job.ID] = job.Kind
		mu.Unlock()
		done <- struct{}{}
		return nil
	}, Config{Workers: 2})
	q.Start(context.Background())
	defer stopQueue(t, q)

	require.NoError(t, q.Enqueue(Job{ID: "a", Kind: "export"}))
	require.NoError(t, q.Enqueue(Job{ID: "b", Kind: "export"}))
	waitN(t, done, 2)

	mu.Lock()
	assert.Equal(t, map[string]string{"a": "export", "b": "export"}, seen)
	mu.Unlock()
	assert.Eventually(t, func() bool { return q.Stats().Succeeded == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(2), q.Stats().Accepted)
}

func TestQueueRetriesThenGivesUp(t *testing.T) {
	attempts := make(chan int, 4)
	abandoned := make(chan Job, 1)

	q := NewQueue("test", func(_ context.Context, job Job) error {
		attempts <- job.Attempt
		return errors.New("boom")
	}, Config{
		Retries: 1,
		Backoff: 5 * time.Millisecond,
		GiveUp:  func(job Job, _ error) { abandoned <- job },
	})
	q.Start(context.Background())
	defer stopQueue(t, q)

	require.NoError(t, q.Enqueue(Job{ID: "x"}))

	select {
	case job := <-abandoned:
		assert.Equal(t, "x", job.ID)
		assert.Equal(t, 2, job.Attempt)
		assert.False(t, job.Queued.IsZero())
	case <-time.After(time.Second):
		t.Fatal("give-up handler not called")
	}
	assert.Equal(t, 0, <-attempts)
	assert.Equal(t, 1, <-attempts)
	stats := q.Stats()
	assert.Equal(t, int64(1), stats.Retried)
	assert.Equal(t, int64(1), stats.Failed)
	assert.Equal(t, int64(1), stats.Accepted)
}

func TestQueueBackoffDoubles(t *testing.T) {
	q := NewQueue("backoff", nil, Config{Backoff: 10 * time.Millisecond})
	assert.Equal(t, 10*time.Millisecond, q.delay(1))
	assert.Equal(t, 20*time.Millisecond, q.delay(2))
	assert.Equal(t, 40*time.Millisecond, q.delay(3))
}

func TestQueueEnqueueOutsideRun(t *testing.T) {
	q := NewQueue("idle", func(context.Context, Job) error { return nil }, Config{})
	require.ErrorIs(t, q.Enqueue(Job{ID: "a"}), ErrNotRunning)

	q.Start(context.Background())
	stopQueue(t, q)
	require.ErrorIs(t, q.Enqueue(Job{ID: "b"}), ErrNotRunning)
	assert.NoError(t, q.Stop(context.Background()))
}

func TestQueueFull(t *testing.T) {
	block := make(chan struct{})
	q := NewQueue("full", func(context.Context, Job) error {
		<-block
		return nil
	}, Config{Workers: 1, Capacity: 1})
	q.Start(context.Background())
	defer func() {
		close(block)
		stopQueue(t, q)
	}()

	require.NoError(t, q.Enqueue(Job{ID: "1"}))
	require.Eventually(t, func() bool { return q.Stats().Backlog == 0 }, time.Second, time.Millisecond)
	require.NoError(t, q.Enqueue(Job{ID: "2"}))
	require.ErrorIs(t, q.Enqueue(Job{ID: "3"}), ErrQueueFull)
}

func TestQueueStopDrainsBacklog(t *testing.T) {
	release := make(chan struct{})
	var mu sync.Mutex
	var ran []string

	q := NewQueue("drain", func(_ context.Context, job Job) error {
		<-release
		mu.Lock()
		ran = append(ran, job.ID)
		mu.Unlock()
		return nil
	}, Config{Workers: 1, Capacity: 4})
	q.Start(context.Background())

	for _, id := range []string{"1", "2", "3"} {
		require.NoError(t, q.Enqueue(Job{ID: id}))
	}
	close(release)
	stopQueue(t, q)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"1", "2", "3"}, ran)
	assert.Equal(t, int64(3), q.Stats().Succeeded)
}

func TestQueueStopDeadlineAbandonsRemaining(t *testing.T) {
	var mu sync.Mutex
	var abandoned []string
	started := make(chan struct{}, 1)

	q := NewQueue("slow", func(ctx context.Context, _ Job) error {
		started <- struct{}{}
		<-ctx.Done()
		return ctx.Err()
	}, Config{
		Workers:  1,
		Capacity: 4,
		GiveUp: func(job Job, _ error) {
			mu.Lock()
			abandoned = append(abandoned, job.ID)
			mu.Unlock()
		},
	})
	q.Start(context.Background())
	require.NoError(t, q.Enqueue(Job{ID: "busy"}))
	require.NoError(t, q.Enqueue(Job{ID: "waiting"}))
	waitN(t, started, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, q.Stop(ctx), context.DeadlineExceeded)

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{"busy", "waiting"}, abandoned)
}

func waitN(t *testing.T, ch <-chan struct{}, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatalf("timed out after %d of %d", i, n)
		}
	}
}
