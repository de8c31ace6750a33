package surgeon

import (
	"context"
	"time"

	"github.com/okian/tabletriage/internal/domain/dedupe"
	"github.com/okian/tabletriage/internal/domain/model"
	"github.com/okian/tabletriage/pkg/logger"
	"github.com/okian/tabletriage/pkg/metrics"
)

// Runner walks the tables of one dossier in index order.
type Runner struct {
	surgeon    *Surgeon
	dedupe     bool
	dedupeSize int
	log        logger.Logger
}

// RunnerOption applies a configuration option to the Runner.
type RunnerOption func(*Runner)

// WithDedupe toggles duplicate detection.
func WithDedupe(enabled bool) RunnerOption {
	return func(r *Runner) { r.dedupe = enabled }
}

// WithDedupeSize bounds the per-dossier hash memory; zero is unbounded.
func WithDedupeSize(size int) RunnerOption {
	return func(r *Runner) {
		if size >= 0 {
			r.dedupeSize = size
		}
	}
}

// WithRunnerLogger sets a custom logger.
func WithRunnerLogger(l logger.Logger) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.log = l
		}
	}
}

// NewRunner creates a Runner over s with deduplication on.
func NewRunner(s *Surgeon, opts ...RunnerOption) *Runner {
	r := &Runner{surgeon: s, dedupe: true}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = logger.Get().Named("runner")
	}
	return r
}

// Run processes every table of d with the surgeon's own learner.
func (r *Runner) Run(ctx context.Context, d model.Dossier) model.Result {
	return r.run(ctx, r.surgeon, d)
}

// RunWithLearner processes d consulting l instead of the surgeon's learner.
func (r *Runner) RunWithLearner(ctx context.Context, d model.Dossier, l Learner) model.Result {
	return r.run(ctx, r.surgeon.UsingLearner(l), d)
}

func (r *Runner) run(ctx context.Context, s *Surgeon, d model.Dossier) model.Result {
	start := time.Now()
	res := model.Result{
		Source:    d.Source,
		Processed: []model.NormalizedTable{},
		Skipped:   []model.SkipRecord{},
	}
	if d.Filename != "" {
		fn := d.Filename
		res.Filename = &fn
	}

	var seen dedupe.Deduper
	if r.dedupe {
		seen = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(ringSize(r.dedupeSize, len(d.Tables))))
	}
	name := d.Name()
	for i, raw := range d.Tables {
		rec := s.ProcessTable(ctx, name, raw, i, seen)
		if rec.Processed != nil {
			res.Processed = append(res.Processed, *rec.Processed)
		} else if rec.Skipped != nil {
			res.Skipped = append(res.Skipped, *rec.Skipped)
		}
	}
	res.ProcessedCount = len(res.Processed)
	res.SkippedCount = len(res.Skipped)
	var distinct int64
	if seen != nil {
		distinct = seen.Size()
	}

	elapsed := time.Since(start)
	metrics.RecordDossierProcessed(float64(elapsed.Microseconds()) / 1000)
	r.log.Info(ctx, "dossier triaged",
		logger.String("dossier", name),
		logger.Int("tables", len(d.Tables)),
		logger.Int("processed", res.ProcessedCount),
		logger.Int("skipped", res.SkippedCount),
		logger.Int("distinctHashes", int(distinct)),
		logger.Any("duration", elapsed))
	return res
}

// ringSize caps the dedupe bound at the dossier's table count. A dossier
// never records more hashes than it has tables.
func ringSize(limit, tables int) int {
	if limit <= 0 || tables < limit {
		return tables
	}
	return limit
}
