// Package service wires the surgeon, the memory layer, the dossier queue and
// the worker pool into the engine used by the CLI and the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/okian/tabletriage/internal/adapters/mq/queue"
	"github.com/okian/tabletriage/internal/adapters/mq/worker"
	"github.com/okian/tabletriage/internal/adapters/repository"
	"github.com/okian/tabletriage/internal/config"
	"github.com/okian/tabletriage/internal/domain/gate"
	"github.com/okian/tabletriage/internal/domain/model"
	"github.com/okian/tabletriage/internal/domain/normalize"
	"github.com/okian/tabletriage/internal/domain/scoring"
	"github.com/okian/tabletriage/internal/memory"
	"github.com/okian/tabletriage/internal/surgeon"
	"github.com/okian/tabletriage/pkg/logger"
	"github.com/okian/tabletriage/pkg/metrics"
)

// ErrNotStarted is returned when dossiers are submitted before Start.
var ErrNotStarted = errors.New("service not started")

// Service triages batches of dossiers on a worker pool.
type Service struct {
	mu sync.RWMutex

	cfg        *config.Config
	learnOpts  []memory.Option
	runner     *surgeon.Runner
	learner    *memory.LearningContext
	jobs       *queue.InMemoryQueue
	review     repository.Store
	workerPool *worker.Pool
	cancel     context.CancelFunc

	started bool

	dossiers        atomic.Int64
	tablesProcessed atomic.Int64
	tablesSkipped   atomic.Int64

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithConfig sets the engine configuration.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg != nil {
			s.cfg = cfg
		}
	}
}

// WithLearningOptions passes options to the learning context built on Start.
func WithLearningOptions(opts ...memory.Option) Option {
	return func(s *Service) {
		s.learnOpts = append(s.learnOpts, opts...)
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

// New constructs a Service; nothing runs until Start.
func New(opts ...Option) *Service {
	s := &Service{cfg: config.New()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds the pipeline and starts the workers. Calling Start on a
// running service is a no-op.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if err := s.cfg.Validate(); err != nil {
		return err
	}

	s.logger.Info(ctx, "starting triage service...")

	sc := s.cfg.Surgeon
	sg := surgeon.New(
		surgeon.WithNormalizer(normalize.New(
			normalize.WithMinContentThreshold(sc.MinContentThreshold),
			normalize.WithMaxHeaderRows(sc.MaxHeaderRows),
			normalize.WithMaxHeaderLength(sc.MaxHeaderLength),
			normalize.WithMinDataRows(sc.MinDataRows),
		)),
		surgeon.WithGate(gate.New(gate.WithMinTabularity(sc.MinTabularity))),
		surgeon.WithScorer(scoring.New(
			scoring.WithBase(s.cfg.Scoring.Base),
			scoring.WithWeights(s.cfg.Scoring.Weights),
		)),
	)
	s.runner = surgeon.NewRunner(sg,
		surgeon.WithDedupe(sc.Dedupe),
		surgeon.WithDedupeSize(sc.DedupeSize),
	)

	s.learner = nil
	if s.cfg.Learning != nil {
		lc, err := memory.NewContext(ctx, *s.cfg.Learning, s.learnOpts...)
		if err != nil {
			return fmt.Errorf("learning context: %w", err)
		}
		s.learner = lc
	}

	s.review = repository.NewTreapStore(repository.WithMaxItems(s.cfg.Review.MaxItems))

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.jobs = queue.NewInMemoryQueue(queue.WithCapacity(s.cfg.QueueSize))
	s.workerPool = worker.NewPool(s.cfg.WorkerCount, s.jobs, &triageAdapter{s: s})
	s.workerPool.Start(runCtx)

	s.started = true
	s.logger.Info(ctx, "triage service started",
		logger.Int("workers", s.cfg.WorkerCount),
		logger.Int("queueSize", s.cfg.QueueSize),
		logger.Bool("learning", s.learner != nil),
	)
	return nil
}

// Stop drains the queue, stops the workers and closes the event log.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping triage service...")

	if err := s.workerPool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool shutdown", logger.Error(err))
	}
	s.cancel()
	if err := s.learner.Close(); err != nil {
		s.logger.Warn(ctx, "closing learning events", logger.Error(err))
	}

	s.started = false
	s.logger.Info(ctx, "triage service stopped")
}

// Process triages dossiers and returns their results in submission order.
func (s *Service) Process(ctx context.Context, dossiers []model.Dossier) ([]model.Result, error) {
	s.mu.RLock()
	if !s.started {
		s.mu.RUnlock()
		return nil, ErrNotStarted
	}
	jobs := s.jobs
	s.mu.RUnlock()

	replies := make([]<-chan model.Result, 0, len(dossiers))
	for _, d := range dossiers {
		job, reply := queue.NewJob(d)
		if err := jobs.Enqueue(ctx, job); err != nil {
			s.logger.Warn(ctx, "dossier rejected",
				logger.String("dossier", d.Name()),
				logger.Error(err))
			return nil, fmt.Errorf("submit %s: %w", d.Name(), err)
		}
		replies = append(replies, reply)
	}

	results := make([]model.Result, len(replies))
	for i, reply := range replies {
		select {
		case res := <-reply:
			results[i] = res
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return results, nil
}

// triage runs one dossier. A single worker shares the root learning context
// so bandit statistics compound across dossiers; several workers give each
// dossier a fork with its own bandit.
func (s *Service) triage(ctx context.Context, d model.Dossier) model.Result {
	var res model.Result
	switch {
	case s.learner == nil:
		res = s.runner.Run(ctx, d)
	case s.workerPool.Size() == 1:
		res = s.runner.RunWithLearner(ctx, d, s.learner)
	default:
		res = s.runner.RunWithLearner(ctx, d, s.learner.Fork())
	}
	for _, t := range res.Processed {
		if err := s.review.Put(ctx, repository.NewItem(res.Source, t)); err != nil {
			s.logger.Warn(ctx, "review queue rejected table",
				logger.String("dossier", d.Name()),
				logger.Int("table_index", t.TableIndex),
				logger.Error(err))
		}
	}
	s.dossiers.Add(1)
	s.tablesProcessed.Add(int64(res.ProcessedCount))
	s.tablesSkipped.Add(int64(res.SkippedCount))
	return res
}

// Review returns the n least confident tables seen since Start.
func (s *Service) Review(ctx context.Context, n int) ([]repository.Entry, error) {
	st, err := s.reviewStore()
	if err != nil {
		return nil, err
	}
	return st.Lowest(ctx, n)
}

// ReviewPosition returns the review entry of one table.
func (s *Service) ReviewPosition(ctx context.Context, source string, tableIndex int) (repository.Entry, error) {
	st, err := s.reviewStore()
	if err != nil {
		return repository.Entry{}, err
	}
	return st.Position(ctx, repository.ItemID(source, tableIndex))
}

func (s *Service) reviewStore() (repository.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.review == nil {
		return nil, ErrNotStarted
	}
	return s.review, nil
}

type triageAdapter struct {
	s *Service
}

func (a *triageAdapter) Triage(ctx context.Context, d model.Dossier) model.Result {
	return a.s.triage(ctx, d)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":         s.started,
		"workerCount":     s.cfg.WorkerCount,
		"queueSize":       s.cfg.QueueSize,
		"dossiers":        s.dossiers.Load(),
		"tablesProcessed": s.tablesProcessed.Load(),
		"tablesSkipped":   s.tablesSkipped.Load(),
		"learning":        s.learner != nil,
	}
	if s.started {
		queueLen := s.jobs.Len(context.Background())
		stats["queueLength"] = queueLen
		stats["reviewItems"] = s.review.Count(context.Background())
		metrics.UpdateQueueSize(queueLen)
	}
	if s.learner != nil {
		stats["runId"] = s.learner.RunID()
		stats["arms"] = s.learner.Arms()
	}
	return stats
}
