// Package worker consumes persistence jobs and writes them to the store.
//
// Persistence failures never reach user-facing flows: each job is retried a
// bounded number of times with linear backoff, then dropped with a logged
// warning.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/planetforge/engine/internal/adapters/mq/queue"
	"github.com/planetforge/engine/internal/adapters/repository"
	"github.com/planetforge/engine/pkg/logger"
	"github.com/planetforge/engine/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultRetryCount     = 3
	defaultRetryBackoff   = 100 * time.Millisecond
	defaultStoreTimeout   = time.Second
	workerShutdownTimeout = 5 * time.Second
)

// Jobs defines how workers receive persistence jobs.
type Jobs interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// Worker drains the queue into the store until stopped.
type Worker struct {
	jobs  Jobs
	store repository.Store
	name  string

	retryCount   int
	retryBackoff time.Duration
	storeTimeout time.Duration

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// New creates a worker with configuration options.
func New(jobs Jobs, store repository.Store, opts ...Option) *Worker {
	w := &Worker{
		jobs:         jobs,
		store:        store,
		name:         "persist-worker",
		retryCount:   defaultRetryCount,
		retryBackoff: defaultRetryBackoff,
		storeTimeout: defaultStoreTimeout,
		shutdown:     make(chan struct{}),
		done:         make(chan struct{}),
		logger:       logger.Get().Named("persist-worker"),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Run starts the worker loop until ctx is canceled or the queue drains.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)

	jobChan := w.jobs.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobChan:
			if !ok {
				return
			}
			w.processJob(ctx, job)
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *Worker) Shutdown(ctx context.Context) error {
	close(w.shutdown)

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// processJob writes one job to the store, retrying with linear backoff.
func (w *Worker) processJob(ctx context.Context, job queue.Job) {
	start := time.Now()
	defer func() {
		metrics.RecordPersistLatency(float64(time.Since(start).Milliseconds()))
	}()

	var lastErr error
	for attempt := 0; attempt <= w.retryCount; attempt++ {
		if attempt > 0 {
			metrics.RecordPersistRetry()
			select {
			case <-time.After(time.Duration(attempt) * w.retryBackoff):
			case <-ctx.Done():
				return
			}
		}
		if lastErr = w.write(ctx, job); lastErr == nil {
			metrics.RecordPersistJob(string(job.Kind))
			return
		}
	}

	metrics.RecordPersistDrop()
	metrics.RecordErrorByComponent("persist-worker", string(job.Kind))
	w.logger.Warn(ctx, "dropping persistence job after retries",
		logger.String("kind", string(job.Kind)),
		logger.Int("attempts", w.retryCount+1),
		logger.Error(lastErr),
	)
}

func (w *Worker) write(ctx context.Context, job queue.Job) error {
	opCtx, cancel := context.WithTimeout(ctx, w.storeTimeout)
	defer cancel()

	switch job.Kind {
	case queue.JobSaveSession:
		return w.store.SaveSession(opCtx, *job.Summary)
	case queue.JobSavePlanet:
		return w.store.SavePlanet(opCtx, job.Planet)
	case queue.JobAppendEvent:
		return w.store.AppendEvent(opCtx, *job.Event)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownJobKind, job.Kind)
	}
}

// Pool manages multiple workers.
type Pool struct {
	workers []*Worker

	shutdown chan struct{}
	logger   logger.Logger
}

// NewPool creates a worker pool draining jobs into store.
func NewPool(workerCount int, jobs Jobs, store repository.Store, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	pool := &Pool{
		workers:  make([]*Worker, workerCount),
		shutdown: make(chan struct{}),
		logger:   logger.Get().Named("persist-pool"),
	}

	for i := 0; i < workerCount; i++ {
		named := append([]Option{WithName("persist-worker-" + strconv.Itoa(i))}, opts...)
		pool.workers[i] = New(jobs, store, named...)
	}

	metrics.UpdateWorkerCount(workerCount)
	return pool
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Drain waits for every worker to exit on its own, which happens once the
// queue has been closed and its remaining jobs consumed. Callers that want
// buffered jobs persisted must close the queue before calling Drain.
func (p *Pool) Drain(ctx context.Context) error {
	for _, w := range p.workers {
		select {
		case <-w.done:
		case <-ctx.Done():
			return fmt.Errorf("draining workers: %w", ctx.Err())
		}
	}
	return nil
}

// Stop stops all workers without waiting for queued jobs.
func (p *Pool) Stop() {
	close(p.shutdown)

	for _, w := range p.workers {
		select {
		case <-w.shutdown:
			// already signaled
		default:
			close(w.shutdown)
		}
	}
	for _, w := range p.workers {
		select {
		case <-w.done:
		case <-time.After(workerShutdownTimeout):
			p.logger.Warn(context.Background(), "worker shutdown timed out", logger.String("worker", w.name))
		}
	}
}
