// Package memory is the adaptive recipe layer consulted around the gate.
//
// A LearningContext computes a table signature, picks a family from the
// pattern store or from signature heuristics, lets an epsilon-greedy bandit
// order that family's recipes and keeps the best guard-passing result.
// Every failure is contained: Apply returns the input table together with a
// *Fault and the caller carries on as if learning were disabled.
package memory

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/tabletriage/internal/domain/features"
	"github.com/okian/tabletriage/internal/domain/model"
	"github.com/okian/tabletriage/pkg/logger"
	"github.com/okian/tabletriage/pkg/metrics"
)

// Stage is the gate point a decision is taken at.
type Stage string

const (
	StagePreGate  Stage = "pre_gate"
	StagePostGate Stage = "post_gate"
)

const (
	defaultExplorationRate = 0.15
	defaultPatternsPath    = "out/patterns/patterns.jsonl"
	defaultEventsPath      = "out/review/learning_events.jsonl"
	defaultMinGain         = 0.08
	defaultCandidateLimit  = 6

	patternTopK           = 3
	patternMatchThreshold = 0.5
	headerGainWeight      = 0.25
	periodGainWeight      = 0.1
	rewardAnchorWeight    = 0.6
	rewardKVWeight        = 0.4
	overrideMinAnchors    = 2
	overrideMinKV         = 3
)

// Config holds the learning settings.
type Config struct {
	Enabled         bool    `koanf:"enabled"`
	ExplorationRate float64 `koanf:"exploration_rate"`
	PatternsPath    string  `koanf:"patterns_path"`
	EventsPath      string  `koanf:"events_path"`
	MinGain         float64 `koanf:"min_gain"`
	CandidateLimit  int     `koanf:"candidate_limit"`
	// Seed fixes the bandit's random source; zero seeds from the clock.
	Seed int64 `koanf:"seed"`
}

// DefaultConfig returns the default learning settings.
func DefaultConfig() Config {
	return Config{
		Enabled:         true,
		ExplorationRate: defaultExplorationRate,
		PatternsPath:    defaultPatternsPath,
		EventsPath:      defaultEventsPath,
		MinGain:         defaultMinGain,
		CandidateLimit:  defaultCandidateLimit,
	}
}

// Validate checks ranges.
func (c Config) Validate() error {
	if c.ExplorationRate < 0 || c.ExplorationRate > 1 {
		return fmt.Errorf("%w: exploration_rate %v not in [0,1]", ErrInvalidConfig, c.ExplorationRate)
	}
	if c.CandidateLimit < 0 {
		return fmt.Errorf("%w: candidate_limit %d is negative", ErrInvalidConfig, c.CandidateLimit)
	}
	return nil
}

// Outcome is the result of one decision.
type Outcome struct {
	Table          model.Table
	Family         string
	Recipe         string
	Label          string
	AcceptOverride bool
	RewardProxy    float64
	// Signature is kept for lineage only.
	Signature   Signature
	SignatureID string
}

// Option configures a LearningContext.
type Option func(*LearningContext)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(lc *LearningContext) {
		if l != nil {
			lc.log = l
		}
	}
}

// WithRegistry replaces the recipe registry.
func WithRegistry(r *Registry) Option {
	return func(lc *LearningContext) {
		if r != nil {
			lc.registry = r
		}
	}
}

// WithEventSink routes events to sink instead of opening EventsPath.
// The sink is not closed by the context.
func WithEventSink(sink EventSink) Option {
	return func(lc *LearningContext) {
		lc.events = sink
		lc.eventsSet = true
	}
}

// WithPatterns uses the given patterns instead of reading PatternsPath.
func WithPatterns(p []Pattern) Option {
	return func(lc *LearningContext) {
		lc.patterns = p
		lc.patternsSet = true
	}
}

// WithClock sets the event timestamp source.
func WithClock(now func() time.Time) Option {
	return func(lc *LearningContext) {
		if now != nil {
			lc.now = now
		}
	}
}

// LearningContext carries the bandit, the loaded patterns and the event
// sink for one run. Its methods are safe for concurrent use, though tables
// of one dossier are expected to be applied in order.
type LearningContext struct {
	cfg      Config
	runID    string
	log      logger.Logger
	registry *Registry
	bandit   *Bandit
	now      func() time.Time

	patterns    []Pattern
	patternsSet bool
	events      EventSink
	eventsSet   bool
	ownsEvents  bool

	seedMu sync.Mutex
	seeds  *rand.Rand
}

// NewContext builds a LearningContext. The pattern store is read once here;
// an unreadable store or event log is logged and learning continues without it.
func NewContext(ctx context.Context, cfg Config, opts ...Option) (*LearningContext, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.CandidateLimit == 0 {
		cfg.CandidateLimit = defaultCandidateLimit
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	lc := &LearningContext{
		cfg:      cfg,
		runID:    uuid.NewString(),
		registry: NewRegistry(),
		now:      time.Now,
		seeds:    rand.New(rand.NewSource(seed)), //nolint:gosec // policy randomness, not security
	}
	for _, opt := range opts {
		opt(lc)
	}
	if lc.log == nil {
		lc.log = logger.Get().Named("memory")
	}
	lc.bandit = NewBandit(cfg.ExplorationRate, rand.New(rand.NewSource(lc.nextSeed()))) //nolint:gosec // policy randomness

	if !lc.patternsSet && cfg.PatternsPath != "" {
		p, err := LoadPatterns(ctx, cfg.PatternsPath, lc.log)
		if err != nil {
			lc.log.Warn(ctx, "pattern store unavailable, continuing without patterns", logger.Error(err))
			metrics.RecordMemoryFault(string(FaultPatterns))
		}
		lc.patterns = p
	}
	if !lc.eventsSet && cfg.Enabled && cfg.EventsPath != "" {
		el, err := NewEventLog(cfg.EventsPath)
		if err != nil {
			lc.log.Warn(ctx, "event log unavailable, continuing without events", logger.Error(err))
			metrics.RecordMemoryFault(string(FaultEvents))
		} else {
			lc.events = el
			lc.ownsEvents = true
		}
	}
	lc.log.Info(ctx, "learning context ready",
		logger.String("run_id", lc.runID),
		logger.Int("patterns", len(lc.patterns)),
		logger.Float64("exploration_rate", cfg.ExplorationRate))
	return lc, nil
}

// Fork returns a context with its own bandit sharing patterns and events.
func (lc *LearningContext) Fork() *LearningContext {
	child := &LearningContext{
		cfg:         lc.cfg,
		runID:       lc.runID,
		log:         lc.log,
		registry:    lc.registry,
		now:         lc.now,
		patterns:    lc.patterns,
		patternsSet: true,
		events:      lc.events,
		eventsSet:   true,
		seeds:       rand.New(rand.NewSource(lc.nextSeed())), //nolint:gosec // policy randomness
	}
	child.bandit = NewBandit(lc.cfg.ExplorationRate, rand.New(rand.NewSource(child.nextSeed()))) //nolint:gosec // policy randomness
	return child
}

// RunID identifies the run in events.
func (lc *LearningContext) RunID() string { return lc.runID }

// Arms snapshots the bandit state.
func (lc *LearningContext) Arms() map[string]map[string]Arm { return lc.bandit.Snapshot() }

// Close flushes and closes an event log opened by NewContext.
func (lc *LearningContext) Close() error {
	if lc == nil || !lc.ownsEvents || lc.events == nil {
		return nil
	}
	return lc.events.Close()
}

func (lc *LearningContext) nextSeed() int64 {
	lc.seedMu.Lock()
	defer lc.seedMu.Unlock()
	return lc.seeds.Int63()
}

// Apply runs one decision for t at stage. On a fault the returned outcome
// carries t unchanged.
func (lc *LearningContext) Apply(ctx context.Context, t model.Table, dossier string, stage Stage) (out Outcome, err error) {
	out = Outcome{Table: t, Label: OutcomeNeutral}
	if lc == nil || !lc.cfg.Enabled {
		return out, nil
	}
	defer func() {
		if r := recover(); r != nil {
			out = Outcome{Table: t, Label: OutcomeNeutral}
			err = &Fault{Kind: FaultPanic, Err: fmt.Errorf("%v", r)}
		}
	}()
	return lc.decide(ctx, t, dossier, stage)
}

func (lc *LearningContext) decide(ctx context.Context, t model.Table, dossier string, stage Stage) (Outcome, error) {
	base := Outcome{Table: t, Label: OutcomeNeutral}

	var sig Signature
	var sigID string
	if err := protect(FaultSignature, func() {
		sig = ComputeSignature(t)
		sigID = sig.ID()
	}); err != nil {
		return base, err
	}

	var (
		family     string
		candidates []string
		ops        []string
		params     map[string]Params
	)
	if err := protect(FaultPolicy, func() {
		family, candidates, ops, params = lc.selectFamily(sig, t)
		ops = lc.bandit.Choose(family, ops)
	}); err != nil {
		return base, err
	}
	ops = lc.admissible(ops, stage)

	// Every candidate starts from the best table so far and is scored
	// against the pre-transform objective. A hint may lift a flat result
	// but never masks a regression.
	preMetrics := objective(t)
	best, bestEff, chosen := t, 0.0, ""
	guardFailures := 0
	var tried []TriedRecipe

	for _, op := range ops {
		rc, _ := lc.registry.Get(op)
		var (
			next  model.Table
			hint  float64
			guard bool
		)
		if err := protect(FaultRecipe, func() {
			next, hint, guard = rc.Apply(best.Clone(), params[op])
		}); err != nil {
			return base, err
		}
		guard = guard && len(next.Headers) > 0 && len(next.Data) > 0
		if rc.Cosmetic || stage == StagePostGate {
			guard = guard && sameRows(best.Data, next.Data)
		}
		if !guard {
			guardFailures++
			lc.bandit.Update(family, op, hint, false, lc.cfg.MinGain)
			tried = append(tried, TriedRecipe{Op: op, Gain: round3(hint), GuardOK: false})
			continue
		}
		realized := realizedGain(preMetrics, objective(next))
		eff := math.Max(realized, hint)
		if realized < 0 {
			eff = realized
		}
		lc.bandit.Update(family, op, eff, true, lc.cfg.MinGain)
		tried = append(tried, TriedRecipe{Op: op, Gain: round3(eff), GuardOK: true})

		if eff > bestEff {
			best, bestEff, chosen = next, eff, op
		}
	}

	out := Outcome{
		Table:       t,
		Family:      family,
		Label:       OutcomeNeutral,
		Signature:   sig,
		SignatureID: sigID,
	}
	switch {
	case chosen != "" && bestEff >= lc.cfg.MinGain:
		out.Table, out.Recipe, out.Label = best, chosen, OutcomeWin
	case len(tried) > 0 && guardFailures == len(tried):
		out.Label = OutcomeFail
	}

	if stage == StagePreGate && t.Type == model.FrontPage && sig.TabularityProxy < lowTabularity &&
		(sig.AnchorCount >= overrideMinAnchors || sig.KVLabelCount >= overrideMinKV) {
		out.AcceptOverride = true
	}
	out.RewardProxy = round3(rewardProxy(t, out.Table))

	lc.record(ctx, LearningEvent{
		Timestamp:        lc.now().UTC(),
		RunID:            lc.runID,
		Dossier:          dossier,
		Page:             t.PageNumber,
		TableIndex:       t.TableIndex,
		Stage:            stage,
		TableType:        t.Type,
		SignatureID:      sigID,
		Signature:        sig,
		FamilyCandidates: candidates,
		Family:           family,
		RecipesTried:     tried,
		ChosenRecipe:     out.Recipe,
		PreMetrics:       preMetrics,
		PostMetrics:      objective(out.Table),
		GuardOK:          guardFailures == 0,
		Outcome:          out.Label,
		Before:           ShapeSnapshot{Headers: t.Headers, DataLen: len(t.Data)},
		After:            ShapeSnapshot{Headers: out.Table.Headers, DataLen: len(out.Table.Data)},
		RewardProxy:      out.RewardProxy,
		AcceptOverride:   out.AcceptOverride,
	})
	metrics.RecordMemoryDecision(string(stage), out.Label)
	return out, nil
}

// selectFamily prefers a matching pattern, then the front-page contact
// families, then the first structural hint.
func (lc *LearningContext) selectFamily(sig Signature, t model.Table) (string, []string, []string, map[string]Params) {
	hints := FamilyHints(sig)

	if matches := MatchPatterns(sig, lc.patterns, patternTopK); len(matches) > 0 && matches[0].Score >= patternMatchThreshold {
		candidates := make([]string, 0, len(matches))
		for _, m := range matches {
			candidates = append(candidates, m.Pattern.Family)
		}
		p := matches[0].Pattern
		recs := p.ActiveRecipes()
		if len(recs) == 0 {
			return p.Family, candidates, FamilyOps(p.Family), nil
		}
		ops := make([]string, 0, len(recs))
		params := make(map[string]Params, len(recs))
		for _, r := range recs {
			ops = append(ops, r.Op)
			params[r.Op] = r.Params
			lc.bandit.Seed(p.Family, r)
		}
		return p.Family, candidates, ops, params
	}

	if t.Type == model.FrontPage || hints[0] == FamilyContactSlab {
		cands := FrontContactCandidates(sig)
		if lc.bandit.Explore() {
			lc.bandit.Shuffle(len(cands), func(i, j int) { cands[i], cands[j] = cands[j], cands[i] })
		}
		names := make([]string, len(cands))
		for i, c := range cands {
			names[i] = c.Family
		}
		return names[0], names, FamilyOps(names[0]), nil
	}
	return hints[0], hints, FamilyOps(hints[0]), nil
}

// admissible drops unknown ops, keeps only cosmetic ones after the gate
// and applies the candidate limit.
func (lc *LearningContext) admissible(ops []string, stage Stage) []string {
	out := make([]string, 0, len(ops))
	for _, op := range ops {
		rc, ok := lc.registry.Get(op)
		if !ok || (stage == StagePostGate && !rc.Cosmetic) {
			continue
		}
		out = append(out, op)
		if len(out) == lc.cfg.CandidateLimit {
			break
		}
	}
	return out
}

func (lc *LearningContext) record(ctx context.Context, ev LearningEvent) {
	if lc.events == nil {
		return
	}
	if err := lc.events.Write(ctx, ev); err != nil {
		lc.log.Warn(ctx, "learning event dropped", logger.Error(err))
		metrics.RecordMemoryFault(string(FaultEvents))
	}
}

func objective(t model.Table) Metrics {
	m := Metrics{
		Tabularity:    round3(features.TabularityScore(t.Data)),
		NonEmptyRatio: round3(features.Density(t.Data)),
	}
	if len(t.Headers) > 0 {
		named := 0
		for _, h := range t.Headers {
			if !features.IsPlaceholderHeader(h) {
				named++
			}
			if features.HeaderHasPeriod(h) {
				m.PeriodHint = 1
			}
		}
		m.HeaderCompleteness = round3(float64(named) / float64(len(t.Headers)))
	}
	return m
}

func realizedGain(before, after Metrics) float64 {
	return (after.Tabularity - before.Tabularity) +
		headerGainWeight*(after.HeaderCompleteness-before.HeaderCompleteness) +
		periodGainWeight*(after.PeriodHint-before.PeriodHint)
}

// rewardProxy rewards recipes that surface anchors or key:value labels.
func rewardProxy(before, after model.Table) float64 {
	b := features.AnchorStats(features.Flatten(before.Data, signatureRows))
	a := features.AnchorStats(features.Flatten(after.Data, signatureRows))
	return rewardAnchorWeight*math.Max(0, float64(a.Count()-b.Count())) +
		rewardKVWeight*math.Max(0, float64(a.KV-b.KV))
}

func sameRows(a, b [][]string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if len(a[i]) != len(b[i]) {
			return false
		}
		for j := range a[i] {
			if a[i][j] != b[i][j] {
				return false
			}
		}
	}
	return true
}
