package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/reachyou/internal/domain/model"
	"github.com/okian/reachyou/pkg/logger"
	"github.com/okian/reachyou/pkg/metrics"
)

const defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()

// Applier stores a reading on its profile and refreshes derived state.
type Applier interface {
	ApplyReading(ctx context.Context, r model.Reading) error
}

// Queue defines how workers receive readings.
type Queue interface {
	Dequeue(ctx context.Context) <-chan model.Reading
}

// Worker processes readings until its source is drained or ctx is done.
type Worker interface {
	Run(ctx context.Context)
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue   Queue
	applier Applier
	name    string
	active  *atomic.Int64

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, applier Applier, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:   q,
		applier: applier,
		name:    "worker",
		active:  &atomic.Int64{},
		logger:  logger.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With(logger.String("worker", w.name))
	return w
}

// Run consumes readings until the queue channel closes or ctx is done.
func (w *InMemoryWorker) Run(ctx context.Context) {
	for r := range w.queue.Dequeue(ctx) {
		if err := w.process(ctx, r); err != nil {
			w.logger.Error(ctx, "error applying reading", logger.Error(err))
		}
	}
}

func (w *InMemoryWorker) process(ctx context.Context, r model.Reading) error {
	metrics.UpdateWorkerActiveCount(int(w.active.Add(1)))
	start := time.Now()
	defer func() {
		metrics.UpdateWorkerActiveCount(int(w.active.Add(-1)))
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if err := w.applier.ApplyReading(ctx, r); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "apply")
		return fmt.Errorf("apply reading %s for %s: %w", r.ReadingID, r.ProfileID, err)
	}
	metrics.RecordReading(metrics.ReadingApplied)
	w.logger.Debug(ctx, "reading applied",
		logger.String("reading_id", r.ReadingID),
		logger.String("profile_id", r.ProfileID),
	)
	return nil
}

// Pool runs a fixed set of workers over one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	active *atomic.Int64
	wg     sync.WaitGroup
	done   chan struct{}
	logger logger.Logger
}

// NewPool creates a worker pool. workerCount < 1 selects a CPU-based default.
func NewPool(workerCount int, q Queue, applier Applier, opts ...PoolOption) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		active:  &atomic.Int64{},
		done:    make(chan struct{}),
		logger:  logger.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}

	for i := 0; i < workerCount; i++ {
		w := NewInMemoryWorker(q, applier,
			WithName("worker-"+strconv.Itoa(i)),
			WithLogger(p.logger),
		)
		w.active = p.active
		p.workers[i] = w
	}

	metrics.UpdateWorkerCount(workerCount)
	metrics.UpdateWorkerActiveCount(0)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Active returns the number of workers applying a reading right now.
func (p *Pool) Active() int { return int(p.active.Load()) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	p.wg.Add(len(p.workers))
	for _, w := range p.workers {
		go func() {
			defer p.wg.Done()
			w.Run(ctx)
		}()
	}
	go func() {
		p.wg.Wait()
		close(p.done)
	}()
}

// Shutdown closes the queue when it supports closing and waits for the
// workers to drain it, or for ctx to expire.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		p.logger.Warn(ctx, "worker pool shutdown timed out")
		return fmt.Errorf("worker pool shutdown: %w", ctx.Err())
	}
}
