// Package worker applies queued observation windows to the session registry.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/enemy/internal/adapters/mq/queue"
	"github.com/okian/enemy/pkg/logger"
	"github.com/okian/enemy/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()
	poolShutdownTimeout     = 30 * time.Second
)

// Event is what workers read off the queue.
type Event = queue.Event

// Applier stores one observation window.
type Applier interface {
	Apply(ctx context.Context, obs Event) error
}

// ApplierFunc adapts a function to Applier.
type ApplierFunc func(ctx context.Context, obs Event) error

// Apply calls f.
func (f ApplierFunc) Apply(ctx context.Context, obs Event) error { return f(ctx, obs) } //nolint:gocritic // hugeParam

// Source defines how workers receive events.
type Source interface {
	Dequeue(ctx context.Context) <-chan Event
}

// Worker drains a Source into an Applier.
type Worker struct {
	source  Source
	applier Applier
	name    string
	logger  logger.Logger

	// shared with the pool
	active    *atomic.Int64
	processed *atomic.Int64
	failed    *atomic.Int64
}

// NewWorker creates a standalone worker.
func NewWorker(source Source, applier Applier, opts ...Option) *Worker {
	o := options{name: "worker", logger: logger.Discard()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Worker{
		source:    source,
		applier:   applier,
		name:      o.name,
		logger:    o.logger.Named(o.name),
		active:    new(atomic.Int64),
		processed: new(atomic.Int64),
		failed:    new(atomic.Int64),
	}
}

// Run applies events until the source channel closes or ctx is done.
func (w *Worker) Run(ctx context.Context) {
	events := w.source.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := w.process(ctx, event); err != nil {
				w.logger.Error(ctx, "error applying observation", logger.Error(err))
			}
		}
	}
}

func (w *Worker) process(ctx context.Context, event Event) error { //nolint:gocritic // hugeParam: Event must be passed by value for channel semantics
	w.active.Add(1)
	start := time.Now()
	defer func() {
		w.active.Add(-1)
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if err := w.applier.Apply(ctx, event); err != nil {
		w.failed.Add(1)
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "apply_error")
		return fmt.Errorf("apply observation %s for user %s: %w", event.ObservationID, event.UserID, err)
	}
	w.processed.Add(1)
	metrics.RecordObservationIngested()
	return nil
}

// Stats is a point-in-time view of a pool.
type Stats struct {
	Workers   int
	Active    int64
	Processed int64
	Failed    int64
}

// Pool manages multiple workers reading from the same source.
type Pool struct {
	workers []*Worker
	source  Source
	logger  logger.Logger

	active    atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64

	wg      sync.WaitGroup
	started atomic.Bool
}

// NewPool creates a pool. A workerCount below one uses a multiple of the CPU
// count.
func NewPool(workerCount int, source Source, applier Applier, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}
	o := options{name: "worker-pool", logger: logger.Discard()}
	for _, opt := range opts {
		opt(&o)
	}

	p := &Pool{
		workers: make([]*Worker, workerCount),
		source:  source,
		logger:  o.logger.Named(o.name),
	}
	for i := range p.workers {
		w := NewWorker(source, applier, WithName("worker-"+strconv.Itoa(i)), WithLogger(o.logger))
		w.active, w.processed, w.failed = &p.active, &p.processed, &p.failed
		p.workers[i] = w
	}

	metrics.UpdateWorkerCount(workerCount)
	p.reportActivity()
	return p
}

func (p *Pool) reportActivity() {
	active := int(p.active.Load())
	metrics.UpdateWorkerActiveCount(active)
	metrics.UpdateWorkerIdleCount(len(p.workers) - active)
}

// Start launches every worker. Calling Start twice is a no-op.
func (p *Pool) Start(ctx context.Context) {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			w.Run(ctx)
		}(w)
	}
}

// Stats returns the pool counters.
func (p *Pool) Stats() Stats {
	p.reportActivity()
	return Stats{
		Workers:   len(p.workers),
		Active:    p.active.Load(),
		Processed: p.processed.Load(),
		Failed:    p.failed.Load(),
	}
}

// Shutdown closes the source when it supports it and waits for the workers to
// drain it, bounded by ctx and poolShutdownTimeout.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.source.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	select {
	case <-done:
		p.reportActivity()
		return nil
	case <-shutdownCtx.Done():
		p.logger.Warn(ctx, "worker pool shutdown timed out", logger.Int("workers", len(p.workers)))
		return fmt.Errorf("shutdown timed out: %w", shutdownCtx.Err())
	}
}
