// Package jobs runs background work on a bounded in-memory queue.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrQueueFull is returned by Enqueue when the backlog has no room.
	ErrQueueFull = errors.New("queue full")
	// ErrNotRunning is returned by Enqueue before Start and after Stop.
	ErrNotRunning = errors.New("queue not running")
)

// Job identifies one unit of work by the record it acts on.
type Job struct {
	ID      string
	Kind    string
	Attempt int
	Queued  time.Time
}

// Handler processes a job. A returned error schedules a retry.
type Handler func(context.Context, Job) error

// FailureHandler receives a job the queue gave up on, either because its
// retries ran out or because the queue shut down first.
type FailureHandler func(Job, error)

// Config tunes a Queue.
type Config struct {
	Workers  int
	Capacity int
	// Retries is how many times a failing job is re-run. Zero disables retries.
	Retries int
	// Backoff is the first retry delay; each further retry doubles it.
	Backoff time.Duration
	GiveUp  FailureHandler
	Logger  *zap.Logger
}

// Stats is a snapshot of queue counters.
type Stats struct {
	Accepted  int64
	Succeeded int64
	Failed    int64
	Retried   int64
	Backlog   int
}

type state int

const (
	idle state = iota
	running
	draining
)

// Queue feeds jobs to a fixed set of workers. Stop closes intake and lets the
// workers finish the backlog.
type Queue struct {
	name   string
	handle Handler
	cfg    Config
	log    *zap.SugaredLogger

	backlog chan Job

	mu     sync.RWMutex
	state  state
	runCtx context.Context
	cancel context.CancelFunc

	workers sync.WaitGroup
	pending sync.WaitGroup

	accepted  atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	retried   atomic.Int64
}

// NewQueue builds an idle queue named for its log lines.
func NewQueue(name string, handle Handler, cfg Config) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = cfg.Workers * 4
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Queue{
		name:    name,
		handle:  handle,
		cfg:     cfg,
		log:     cfg.Logger.Sugar().With("queue", name),
		backlog: make(chan Job, cfg.Capacity),
	}
}

// Start launches the workers. Handlers receive a context derived from ctx.
// Only the first call has an effect.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.state != idle {
		return
	}
	q.runCtx, q.cancel = context.WithCancel(ctx)
	q.state = running
	q.workers.Add(q.cfg.Workers)
	for i := 0; i < q.cfg.Workers; i++ {
		go q.work()
	}
	q.log.Infow("queue started", "workers", q.cfg.Workers, "capacity", q.cfg.Capacity)
}

// Stop refuses new jobs and waits for the backlog to drain. When ctx ends
// first the handler context is cancelled, the remaining jobs are handed to
// GiveUp and ctx.Err() is returned.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.state != running {
		q.mu.Unlock()
		return nil
	}
	q.state = draining
	close(q.backlog)
	q.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		q.workers.Wait()
		close(drained)
	}()

	var err error
	select {
	case <-drained:
	case <-ctx.Done():
		err = ctx.Err()
	}
	q.cancel()
	<-drained
	q.pending.Wait()
	q.log.Infow("queue stopped", "succeeded", q.succeeded.Load(), "failed", q.failed.Load())
	return err
}

// Enqueue adds job without blocking.
func (q *Queue) Enqueue(job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.state != running {
		return fmt.Errorf("%s: %w", q.name, ErrNotRunning)
	}
	if job.Queued.IsZero() {
		job.Queued = time.Now().UTC()
	}
	select {
	case q.backlog <- job:
	default:
		return fmt.Errorf("%s: %w", q.name, ErrQueueFull)
	}
	if job.Attempt == 0 {
		q.accepted.Add(1)
	}
	return nil
}

// Stats returns the current counters.
func (q *Queue) Stats() Stats {
	return Stats{
		Accepted:  q.accepted.Load(),
		Succeeded: q.succeeded.Load(),
		Failed:    q.failed.Load(),
		Retried:   q.retried.Load(),
		Backlog:   len(q.backlog),
	}
}

func (q *Queue) work() {
	defer q.workers.Done()
	for job := range q.backlog {
		if err := q.runCtx.Err(); err != nil {
			q.giveUp(job, err)
			continue
		}
		if err := q.handle(q.runCtx, job); err != nil {
			q.retry(job, err)
			continue
		}
		q.succeeded.Add(1)
	}
}

// delay doubles per attempt: Backoff, 2*Backoff, 4*Backoff...
func (q *Queue) delay(attempt int) time.Duration {
	return q.cfg.Backoff << (attempt - 1)
}

func (q *Queue) retry(job Job, cause error) {
	job.Attempt++
	if job.Attempt > q.cfg.Retries || q.runCtx.Err() != nil {
		q.giveUp(job, cause)
		return
	}
	q.retried.Add(1)
	wait := q.delay(job.Attempt)
	q.log.Warnw("job failed, retrying", "job_id", job.ID, "kind", job.Kind, "attempt", job.Attempt, "in", wait, "error", cause)

	q.pending.Add(1)
	go func() {
		defer q.pending.Done()
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-q.runCtx.Done():
			q.giveUp(job, cause)
		case <-timer.C:
			if err := q.Enqueue(job); err != nil {
				q.giveUp(job, fmt.Errorf("requeue: %w (last error: %v)", err, cause))
			}
		}
	}()
}

func (q *Queue) giveUp(job Job, cause error) {
	q.failed.Add(1)
	q.log.Errorw("job abandoned", "job_id", job.ID, "kind", job.Kind, "attempts", job.Attempt, "error", cause)
	if q.cfg.GiveUp != nil {
		q.cfg.GiveUp(job, cause)
	}
}
