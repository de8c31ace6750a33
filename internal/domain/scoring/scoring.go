// Package scoring computes the confidence attached to every emitted table.
package scoring

import (
	"math"

	"github.com/okian/tabletriage/internal/domain/features"
)

// Feature names reported in Result.Features and accepted by WithWeights.
const (
	FeatureNumericDensity = "numeric_density"
	FeaturePeriodDetected = "period_detected"
)

// featureOrder fixes the summation order of the linear model.
var featureOrder = []string{FeatureNumericDensity, FeaturePeriodDetected}

const (
	defaultBase           = 0.15
	defaultNumericWeight  = 0.35
	defaultPeriodWeight   = 0.25
	numericColumnFraction = 0.5
)

// Option applies a configuration option to the Scorer.
type Option func(*Scorer)

// WithBase sets the base confidence every table starts with.
func WithBase(v float64) Option {
	return func(s *Scorer) {
		if v >= 0 && v <= 1 {
			s.base = v
		}
	}
}

// WithWeights overrides feature weights. Unknown names and non-positive
// weights are ignored.
func WithWeights(weights map[string]float64) Option {
	return func(s *Scorer) {
		for name, w := range weights {
			if _, ok := s.weights[name]; ok && w > 0 {
				s.weights[name] = w
			}
		}
	}
}

// Input is the emitted shape of a table.
type Input struct {
	Headers []string
	Data    [][]string
}

// Result is the clamped confidence and the raw feature values behind it.
type Result struct {
	Confidence float64
	Features   map[string]float64
}

// Scorer is a fixed linear model over shape features.
type Scorer struct {
	base    float64
	weights map[string]float64
}

// New creates a Scorer with the default weights.
func New(opts ...Option) *Scorer {
	s := &Scorer{
		base: defaultBase,
		weights: map[string]float64{
			FeatureNumericDensity: defaultNumericWeight,
			FeaturePeriodDetected: defaultPeriodWeight,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score returns confidence in [0,1] rounded to three decimals.
func (s *Scorer) Score(in Input) Result {
	f := map[string]float64{
		FeatureNumericDensity: numericDensity(in.Data),
		FeaturePeriodDetected: 0,
	}
	if periodDetected(in.Headers) {
		f[FeaturePeriodDetected] = 1
	}

	c := s.base
	for _, name := range featureOrder {
		c += s.weights[name] * f[name]
	}
	c = math.Max(0, math.Min(1, c))
	return Result{Confidence: math.Round(c*1000) / 1000, Features: f}
}

// numericDensity is the share of columns where at least half the rows hold numbers.
func numericDensity(data [][]string) float64 {
	if len(data) == 0 {
		return 0
	}
	cols := 0
	for _, r := range data {
		if len(r) > cols {
			cols = len(r)
		}
	}
	if cols == 0 {
		return 0
	}
	need := int(numericColumnFraction * float64(len(data)))
	if need < 1 {
		need = 1
	}
	numeric := 0
	for j := 0; j < cols; j++ {
		n := 0
		for _, r := range data {
			if j < len(r) && features.IsNumericCell(r[j]) {
				n++
			}
		}
		if n >= need {
			numeric++
		}
	}
	return float64(numeric) / float64(cols)
}

func periodDetected(headers []string) bool {
	for _, h := range headers {
		if features.HeaderHasPeriod(h) {
			return true
		}
	}
	return false
}
