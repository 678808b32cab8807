package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/edvin/backupvault/internal/metrics"
)

var (
	ErrQueueFull = errors.New("backup queue is full")
	ErrStopped   = errors.New("worker pool is stopped")
)

// Handler processes one job.
type Handler func(ctx context.Context, jobID string) error

// Pool runs jobs on a fixed number of goroutines fed by a bounded queue.
// Dispatch never blocks.
type Pool struct {
	logger  zerolog.Logger
	size    int
	queue   chan string
	wg      sync.WaitGroup
	mu      sync.RWMutex
	started bool
	stopped bool
}

func NewPool(logger zerolog.Logger, size, queueSize int) *Pool {
	if size < 1 {
		size = 1
	}
	if queueSize < size {
		queueSize = size
	}
	return &Pool{
		logger: logger.With().Str("component", "worker-pool").Logger(),
		size:   size,
		queue:  make(chan string, queueSize),
	}
}

// Start launches the workers. Jobs run with ctx; cancelling it is the only
// way to interrupt a job in flight.
func (p *Pool) Start(ctx context.Context, handle Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true

	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for id := range p.queue {
				metrics.DispatchQueueDepth.Set(float64(len(p.queue)))
				p.run(ctx, handle, id)
			}
		}()
	}
	p.logger.Info().Int("workers", p.size).Int("queue", cap(p.queue)).Msg("worker pool started")
}

// Dispatch queues jobID without waiting.
func (p *Pool) Dispatch(_ context.Context, jobID string) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrStopped
	}

	select {
	case p.queue <- jobID:
		metrics.DispatchQueueDepth.Set(float64(len(p.queue)))
		return nil
	default:
		return fmt.Errorf("dispatch %s: %w", jobID, ErrQueueFull)
	}
}

// Stop refuses new jobs and waits until queued and running jobs finish.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Info().Msg("worker pool stopped")
}

func (p *Pool) run(ctx context.Context, handle Handler, id string) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().Str("backup_id", id).Interface("panic", r).Msg("job handler panicked")
		}
	}()

	if err := handle(ctx, id); err != nil {
		p.logger.Error().Err(err).Str("backup_id", id).Msg("job handler returned error")
	}
}
