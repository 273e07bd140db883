package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Job is a named unit of background work.
type Job struct {
	Name string
	Task func(ctx context.Context) error
}

// Pool runs jobs on a fixed number of workers. Job errors and panics are
// logged; they never reach the submitter.
type Pool struct {
	workers  int
	timeout  time.Duration
	jobQueue chan Job

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.RWMutex
	closed    bool
	waitGroup sync.WaitGroup
}

// NewPool creates a pool with the given number of workers and queue depth.
// Each job runs under timeout when it is positive.
func NewPool(workers, queueSize int, timeout time.Duration) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < workers {
		queueSize = workers
	}

	ctx, cancel := context.WithCancel(context.Background())
	pool := &Pool{
		workers:  workers,
		timeout:  timeout,
		jobQueue: make(chan Job, queueSize),
		ctx:      ctx,
		cancel:   cancel,
	}

	pool.waitGroup.Add(workers)
	for i := 0; i < workers; i++ {
		go pool.worker()
	}

	return pool
}

// worker processes jobs from the jobQueue.
func (p *Pool) worker() {
	defer p.waitGroup.Done()
	for job := range p.jobQueue {
		p.run(job)
	}
}

func (p *Pool) run(job Job) {
	logger := log.With().Str("job", job.Name).Logger()

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("Background job panicked")
		}
	}()

	ctx := p.ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	start := time.Now()
	if err := job.Task(ctx); err != nil {
		logger.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("Background job failed")
		return
	}
	logger.Debug().Dur("elapsed", time.Since(start)).Msg("Background job finished")
}

// Submit queues a job. It reports false if the pool is shut down or the
// queue is full.
func (p *Pool) Submit(name string, task func(ctx context.Context) error) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return false
	}

	select {
	case p.jobQueue <- Job{Name: name, Task: task}:
		return true
	default:
		log.Warn().Str("job", name).Msg("Worker queue full, dropping job")
		return false
	}
}

// Shutdown stops accepting jobs and waits for queued jobs to finish or for
// ctx to expire, after which running jobs are cancelled.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobQueue)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.waitGroup.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return ctx.Err()
	}
}
