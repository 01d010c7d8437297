// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"time"

	readingqueue "github.com/okian/reachyou/internal/adapters/mq/queue"
	workerpool "github.com/okian/reachyou/internal/adapters/mq/worker"
	"github.com/okian/reachyou/internal/adapters/repository"
	"github.com/okian/reachyou/internal/adapters/sensor"
	"github.com/okian/reachyou/internal/domain/compat"
	"github.com/okian/reachyou/internal/domain/dedupe"
	"github.com/okian/reachyou/internal/domain/matching"
	"github.com/okian/reachyou/pkg/logger"
	"github.com/okian/reachyou/pkg/metrics"
)

// Default service configuration.
const (
	defaultQueueSize       = 10_000
	defaultDedupeSize      = 100_000
	defaultMaxRankingLimit = 100
	defaultSensorMin       = 20 * time.Millisecond
	defaultSensorMax       = 60 * time.Millisecond
)

// Service implements the API dependencies for profiles, compatibility,
// fated matches, readings and the couple leaderboard.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      repository.Store
	couples    repository.CoupleStore
	deduper    dedupe.Deduper
	queue      readingqueue.Queue
	workerPool *workerpool.Pool
	sensor     sensor.Reader
	engine     *compat.Engine
	ranker     *matching.Ranker

	// Configuration
	workerCount     int
	queueSize       int
	dedupeSize      int
	matchCount      int
	maxRankingLimit int
	storeDriver     string
	sensorMin       time.Duration
	sensorMax       time.Duration

	started bool
	// cancel ends the background context of workers and the leaderboard.
	// It fires only after Stop has drained the queue.
	cancel context.CancelFunc
	now    func() time.Time
	logger  logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of reading workers and the parallelism
// of population recomputes.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the reading queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many reading ids are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithMatchCount sets how many fated matches are kept per profile.
func WithMatchCount(k int) Option {
	return func(s *Service) {
		if k > 0 {
			s.matchCount = k
		}
	}
}

// WithMaxRankingLimit caps the page size of the couple leaderboard.
func WithMaxRankingLimit(limit int) Option {
	return func(s *Service) {
		if limit > 0 {
			s.maxRankingLimit = limit
		}
	}
}

// WithStore sets the profile and match backend. The service closes it on
// Stop. Defaults to an in-memory store.
func WithStore(store repository.Store, driver string) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
			s.storeDriver = driver
		}
	}
}

// WithCoupleStore sets the leaderboard backend. The service closes it on
// Stop. Defaults to an in-memory treap.
func WithCoupleStore(cs repository.CoupleStore) Option {
	return func(s *Service) {
		if cs != nil {
			s.couples = cs
		}
	}
}

// WithSensor sets the reader used by Measure.
func WithSensor(r sensor.Reader) Option {
	return func(s *Service) {
		if r != nil {
			s.sensor = r
		}
	}
}

// WithSensorLatencyRange sets the latency of the default simulated sensor.
func WithSensorLatencyRange(minLatency, maxLatency time.Duration) Option {
	return func(s *Service) {
		if minLatency > 0 && maxLatency > minLatency {
			s.sensorMin = minLatency
			s.sensorMax = maxLatency
		}
	}
}

// WithEngine sets the compatibility engine used for every score.
func WithEngine(e *compat.Engine) Option {
	return func(s *Service) {
		if e != nil {
			s.engine = e
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
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

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:     runtime.NumCPU() * 2,
		queueSize:       defaultQueueSize,
		dedupeSize:      defaultDedupeSize,
		matchCount:      matching.DefaultK,
		maxRankingLimit: defaultMaxRankingLimit,
		sensorMin:       defaultSensorMin,
		sensorMax:       defaultSensorMax,
		engine:          compat.NewEngine(),
		now:             time.Now,
		logger:          logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ranker = matching.NewRanker(matching.WithEngine(s.engine))
	return s
}

// Start initializes and starts the service components. Workers run on a
// context detached from ctx, so cancelling ctx does not drop queued
// readings; Stop ends them after draining.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting reachyou service...")

	if s.store == nil {
		s.store = repository.NewMemoryStore()
		s.storeDriver = "memory"
	}
	if s.sensor == nil {
		s.sensor = sensor.NewSimulated(sensor.WithLatencyRange(s.sensorMin, s.sensorMax))
	}
	bg, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	if s.couples == nil {
		s.couples = repository.NewTreapStore(bg)
	}
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = readingqueue.NewInMemoryQueue(readingqueue.WithCapacity(s.queueSize))
	s.workerPool = workerpool.NewPool(s.workerCount, s.queue, s,
		workerpool.WithPoolLogger(s.logger.Named("worker")),
	)
	s.workerPool.Start(bg)

	if n, err := s.store.CountProfiles(ctx); err == nil {
		metrics.UpdateProfilesTotal(n)
	}

	s.started = true
	s.logger.Info(ctx, "reachyou service started",
		logger.String("store", s.storeDriver),
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Int("matchCount", s.matchCount),
	)
	return nil
}

// Stop drains queued readings, then closes the stores. ctx bounds the
// drain. A stopped service is not meant to be started again.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	pool, couples, store, cancel := s.workerPool, s.couples, s.store, s.cancel
	s.mu.Unlock()

	s.logger.Info(ctx, "stopping reachyou service...")

	// Workers apply buffered readings without the service lock.
	var errs []error
	if err := pool.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	// Ends workers still running after a timed-out drain.
	cancel()
	if err := couples.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := store.Close(); err != nil {
		errs = append(errs, err)
	}

	s.logger.Info(ctx, "reachyou service stopped")
	return errors.Join(errs...)
}

func (s *Service) ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

func (s *Service) timestamp() time.Time { return s.now().UTC() }

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
		"matchCount":  s.matchCount,
		"storeDriver": s.storeDriver,
	}

	if s.started {
		queueLen := s.queue.Len(ctx)
		stats["queueLength"] = queueLen
		stats["activeWorkers"] = s.workerPool.Active()
		stats["dedupeEntries"] = s.deduper.Size()
		stats["totalCouples"] = s.couples.Count(ctx)

		if n, err := s.store.CountProfiles(ctx); err == nil {
			stats["totalProfiles"] = n
			metrics.UpdateProfilesTotal(n)
		} else {
			s.logger.Warn(ctx, "failed to count profiles", logger.Error(err))
		}

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateWorkerCount(s.workerCount)
	}
	return stats
}
