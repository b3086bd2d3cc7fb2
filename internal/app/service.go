// Package service wires the scoring core, session registry and ingestion
// pipeline into the operations exposed by the HTTP API.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/jonboulle/clockwork"
	eventqueue "github.com/okian/enemy/internal/adapters/mq/queue"
	workerpool "github.com/okian/enemy/internal/adapters/mq/worker"
	repository "github.com/okian/enemy/internal/adapters/repository"
	"github.com/okian/enemy/internal/catalog"
	"github.com/okian/enemy/internal/domain/bounds"
	"github.com/okian/enemy/internal/domain/dedupe"
	"github.com/okian/enemy/internal/domain/model"
	"github.com/okian/enemy/internal/domain/scoring"
	"github.com/okian/enemy/internal/domain/sky"
	"github.com/okian/enemy/pkg/logger"
	"github.com/okian/enemy/pkg/metrics"
)

// Default service configuration constants.
const (
	defaultQueueSize  = 10000
	defaultDedupeSize = 50000
	defaultShardCount = 32
)

// Service implements the API dependencies for the scoring system.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      repository.Store
	catalog    *catalog.Catalog
	calculator *bounds.Calculator
	current    atomic.Pointer[bounds.PopulationBounds]
	scorer     scoring.Scorer
	tracker    *sky.Tracker
	deduper    dedupe.Deduper
	queue      *eventqueue.InMemoryQueue
	pool       *workerpool.Pool

	// Configuration
	workerCount int
	queueSize   int
	dedupeSize  int
	shardCount  int
	skySteps    int
	adjuster    scoring.Adjuster
	clock       clockwork.Clock

	// State
	started bool
	stopped bool

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of ingestion workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum number of queued observations.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many observation ids are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithShardCount sets the lock shard count of the registry and sky tracker.
func WithShardCount(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.shardCount = n
		}
	}
}

// WithSkySteps sets how many successive changes cross the sky range.
func WithSkySteps(steps int) Option {
	return func(s *Service) {
		if steps > 0 {
			s.skySteps = steps
		}
	}
}

// WithAdjuster sets the bias adjustment strategy of the scorer.
func WithAdjuster(a scoring.Adjuster) Option {
	return func(s *Service) {
		if a != nil {
			s.adjuster = a
		}
	}
}

// WithCatalog sets the known conflicts.
func WithCatalog(c *catalog.Catalog) Option {
	return func(s *Service) {
		if c != nil {
			s.catalog = c
		}
	}
}

// WithStore replaces the in-memory session registry.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithClock sets the clock used for timestamps.
func WithClock(clock clockwork.Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service. Workers run only after Start.
func New(opts ...Option) (*Service, error) {
	s := &Service{
		workerCount: runtime.NumCPU(),
		queueSize:   defaultQueueSize,
		dedupeSize:  defaultDedupeSize,
		shardCount:  defaultShardCount,
		skySteps:    sky.DefaultSteps,
		adjuster:    scoring.NewGazeAdjuster(),
		clock:       clockwork.NewRealClock(),
		logger:      logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.catalog == nil {
		c, err := catalog.Default()
		if err != nil {
			return nil, fmt.Errorf("load default catalog: %w", err)
		}
		s.catalog = c
	}
	if s.store == nil {
		s.store = repository.NewRegistry(
			repository.WithShardCount(s.shardCount),
			repository.WithClock(s.clock),
		)
	}

	s.calculator = bounds.NewCalculator(bounds.WithClock(s.clock))
	s.scorer = scoring.NewBoundsScorer(scoring.WithAdjuster(s.adjuster))
	s.tracker = sky.NewTracker(
		sky.WithSteps(s.skySteps),
		sky.WithClock(s.clock),
		sky.WithShardCount(s.shardCount),
	)
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	s.pool = workerpool.NewPool(s.workerCount, s.queue,
		workerpool.ApplierFunc(s.store.Apply),
		workerpool.WithLogger(s.logger),
	)

	return s, nil
}

// Start launches the ingestion workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrStopped
	}
	if s.started {
		return nil
	}
	s.pool.Start(ctx)
	s.started = true

	s.logger.Info(ctx, "scoring service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queue_size", s.queueSize),
		logger.Int("dedupe_size", s.dedupeSize),
		logger.Int("conflicts", len(s.catalog.Conflicts())),
	)
	return nil
}

// Stop closes the queue and waits for queued observations to be applied. A
// stopped service cannot be started again.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping scoring service...")
	err := s.pool.Shutdown(ctx)
	s.started = false
	s.stopped = true
	if err != nil {
		return fmt.Errorf("stop workers: %w", err)
	}
	s.logger.Info(ctx, "scoring service stopped")
	return nil
}

// Catalog returns the known conflicts.
func (s *Service) Catalog() *catalog.Catalog { return s.catalog }

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()

	ctx := context.Background()
	users := s.store.Count(ctx)
	poolStats := s.pool.Stats()

	stats := map[string]interface{}{
		"started":           started,
		"worker_count":      poolStats.Workers,
		"queue_capacity":    s.queue.Capacity(),
		"queue_length":      s.queue.Len(),
		"dedupe_size":       s.deduper.Size(),
		"users":             users,
		"sky_slots":         s.tracker.Len(),
		"processed":         poolStats.Processed,
		"failed":            poolStats.Failed,
		"conflicts":         len(s.catalog.Conflicts()),
		"bounds_computed":   false,
		"bounds_generation": s.calculator.Generation(),
	}
	if b := s.current.Load(); b != nil {
		stats["bounds_computed"] = true
		stats["population_size"] = b.Size
	}

	metrics.UpdateUsersTotal(users)
	metrics.UpdateQueueSize(s.queue.Len())
	return stats
}

// Conflicts returns the catalog conflicts in order.
func (s *Service) Conflicts() []model.Conflict { return s.catalog.Conflicts() }
