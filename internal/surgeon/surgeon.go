// Package surgeon runs the per-table triage pipeline and walks dossiers.
//
// A raw table is classified, normalized, offered to the learner before the
// gate, gated, demoted, padded, hashed, deduplicated, scored and offered to
// the learner once more for cosmetic changes. Every table ends as exactly
// one processed or skip record.
package surgeon

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/okian/tabletriage/internal/domain/classify"
	"github.com/okian/tabletriage/internal/domain/dedupe"
	"github.com/okian/tabletriage/internal/domain/features"
	"github.com/okian/tabletriage/internal/domain/gate"
	"github.com/okian/tabletriage/internal/domain/model"
	"github.com/okian/tabletriage/internal/domain/normalize"
	"github.com/okian/tabletriage/internal/domain/scoring"
	"github.com/okian/tabletriage/internal/memory"
	"github.com/okian/tabletriage/pkg/logger"
	"github.com/okian/tabletriage/pkg/metrics"
)

// Learner is the memory layer as seen by the pipeline.
type Learner interface {
	Apply(ctx context.Context, t model.Table, dossier string, stage memory.Stage) (memory.Outcome, error)
}

// Record is the terminal outcome of one raw table; exactly one field is set.
type Record struct {
	Processed *model.NormalizedTable
	Skipped   *model.SkipRecord
}

// Surgeon holds the stateless pipeline stages and an optional learner.
type Surgeon struct {
	classifier *classify.Classifier
	normalizer *normalize.Normalizer
	gate       *gate.Gate
	scorer     *scoring.Scorer
	learner    Learner
	log        logger.Logger
}

// Option applies a configuration option to the Surgeon.
type Option func(*Surgeon)

// WithNormalizer replaces the default normalizer.
func WithNormalizer(n *normalize.Normalizer) Option {
	return func(s *Surgeon) {
		if n != nil {
			s.normalizer = n
		}
	}
}

// WithGate replaces the default gate.
func WithGate(g *gate.Gate) Option {
	return func(s *Surgeon) {
		if g != nil {
			s.gate = g
		}
	}
}

// WithScorer replaces the default confidence scorer.
func WithScorer(sc *scoring.Scorer) Option {
	return func(s *Surgeon) {
		if sc != nil {
			s.scorer = sc
		}
	}
}

// WithLearner enables the memory layer. Without it the pipeline runs in
// pass-through mode.
func WithLearner(l Learner) Option {
	return func(s *Surgeon) { s.learner = l }
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Surgeon) {
		if l != nil {
			s.log = l
		}
	}
}

// New creates a Surgeon with default stages.
func New(opts ...Option) *Surgeon {
	s := &Surgeon{
		classifier: classify.New(),
		normalizer: normalize.New(),
		gate:       gate.New(),
		scorer:     scoring.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Get().Named("surgeon")
	}
	return s
}

// UsingLearner returns a copy of s that consults l instead of its own learner.
func (s *Surgeon) UsingLearner(l Learner) *Surgeon {
	cp := *s
	cp.learner = l
	return &cp
}

// ProcessTable runs the pipeline for the raw table at index. seen may be nil
// to disable deduplication.
func (s *Surgeon) ProcessTable(ctx context.Context, dossier string, raw model.RawTable, index int, seen dedupe.Deduper) Record {
	start := time.Now()
	defer func() { metrics.RecordTableLatency(float64(time.Since(start).Microseconds()) / 1000) }()

	if len(raw.Rows) == 0 {
		return skip(raw.PageNumber, index, model.SkipEmptyTable)
	}

	typ := s.classifier.Classify(raw.Rows, raw.PageNumber)
	norm := s.normalizer.Normalize(raw, typ)
	tbl := model.Table{
		PageNumber: raw.PageNumber,
		TableIndex: index,
		Type:       norm.Type,
		Headers:    norm.Headers,
		Data:       norm.Data,
		Title:      norm.Title,
	}

	override := false
	if out, ok := s.consult(ctx, tbl, dossier, memory.StagePreGate); ok {
		tbl = out.Table
		override = out.AcceptOverride
	}

	v := s.gate.Accept(tbl.Data, tbl.Type, tbl.PageNumber)
	switch {
	case v.Override:
		metrics.RecordGateOverride("gate")
	case !v.Accepted && override:
		metrics.RecordGateOverride("memory")
	case !v.Accepted:
		s.log.Debug(ctx, "table rejected by gate",
			logger.String("page", tbl.Page()),
			logger.Int("table_index", index),
			logger.Float64("tabularity", v.Tabularity))
		return skip(raw.PageNumber, index, model.SkipNonValuable)
	}

	tbl.Type = classify.Demote(tbl.Type, tbl.PageNumber, features.AnchorStats(features.Flatten(tbl.Data, 0)))
	tbl = pad(tbl)

	hash := dedupe.ContentHash(dedupe.HashInput{
		Page:           tbl.PageNumber,
		Title:          tbl.Title,
		Headers:        tbl.Headers,
		RawHeaderParts: norm.RawHeaderParts,
		Rows:           tbl.Data,
	})
	if seen != nil && seen.SeenAndRecord(ctx, hash) {
		return skip(raw.PageNumber, index, model.SkipDuplicate)
	}

	conf := s.scorer.Score(scoring.Input{Headers: tbl.Headers, Data: tbl.Data}).Confidence

	if out, ok := s.consult(ctx, tbl, dossier, memory.StagePostGate); ok {
		tbl = pad(out.Table)
	}

	metrics.RecordTableProcessed(string(tbl.Type), conf)
	return Record{Processed: &model.NormalizedTable{
		PageNumber:  tbl.PageNumber,
		TableIndex:  index,
		TableType:   tbl.Type,
		Headers:     tbl.Headers,
		Data:        tbl.Data,
		TableTitle:  tbl.Title,
		ContentHash: hash,
		Confidence:  conf,
	}}
}

// consult asks the learner for a decision. On a fault the table is kept as
// is and ok is false.
func (s *Surgeon) consult(ctx context.Context, t model.Table, dossier string, stage memory.Stage) (memory.Outcome, bool) {
	if s.learner == nil {
		return memory.Outcome{}, false
	}
	out, err := s.learner.Apply(ctx, t, dossier, stage)
	if err != nil {
		kind := "unknown"
		var f *memory.Fault
		if errors.As(err, &f) {
			kind = string(f.Kind)
		}
		s.log.Warn(ctx, "memory layer fault, continuing with unmodified table",
			logger.String("dossier", dossier),
			logger.String("stage", string(stage)),
			logger.String("page", t.Page()),
			logger.Int("table_index", t.TableIndex),
			logger.String("kind", kind),
			logger.Error(err))
		metrics.RecordMemoryFault(kind)
		return memory.Outcome{}, false
	}
	return out, true
}

// pad drops rows with no text, widens headers with placeholders and
// right-pads every row so each row has exactly len(headers) cells.
func pad(t model.Table) model.Table {
	width := t.Width()
	headers := make([]string, width)
	copy(headers, t.Headers)
	for j := len(t.Headers); j < width; j++ {
		headers[j] = fmt.Sprintf("Column_%d", j)
	}
	rows := make([][]string, 0, len(t.Data))
	for _, r := range t.Data {
		if blankRow(r) {
			continue
		}
		row := make([]string, width)
		copy(row, r)
		rows = append(rows, row)
	}
	out := t
	out.Headers = headers
	out.Data = rows
	return out
}

func blankRow(r []string) bool {
	for _, c := range r {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func skip(page *int, index int, reason model.SkipReason) Record {
	metrics.RecordTableSkipped(string(reason))
	return Record{Skipped: &model.SkipRecord{PageNumber: page, TableIndex: index, Reason: reason}}
}
