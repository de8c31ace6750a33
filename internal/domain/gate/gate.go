// Package gate decides whether a normalized table is worth keeping.
package gate

import (
	"github.com/okian/tabletriage/internal/domain/features"
	"github.com/okian/tabletriage/internal/domain/model"
)

const defaultMinTabularity = 0.35

// Verdict is the gate outcome for one table.
type Verdict struct {
	Accepted   bool
	Tabularity float64
	// Override is set when a front page table passed on anchors or density
	// despite low tabularity.
	Override bool
}

// Gate applies the tabularity floor with a page-graded front page override.
type Gate struct {
	minTabularity float64
}

// Option applies a configuration option to the Gate.
type Option func(*Gate)

// WithMinTabularity sets the tabularity floor.
func WithMinTabularity(v float64) Option {
	return func(g *Gate) {
		if v >= 0 && v <= 1 {
			g.minTabularity = v
		}
	}
}

// New creates a Gate.
func New(opts ...Option) *Gate {
	g := &Gate{minTabularity: defaultMinTabularity}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Accept evaluates data of the given type found on page.
func (g *Gate) Accept(data [][]string, t model.TableType, page *int) Verdict {
	tab := features.TabularityScore(data)
	v := Verdict{Tabularity: tab}

	switch t {
	case model.FinancialStatement:
		v.Accepted = financialShape(data)
	case model.FrontPage:
		if tab >= g.minTabularity {
			v.Accepted = true
			return v
		}
		v.Accepted = frontOverride(data, page)
		v.Override = v.Accepted
	default:
		v.Accepted = tab >= g.minTabularity
	}
	return v
}

// financialShape requires at least two columns and a digit in the first row.
func financialShape(data [][]string) bool {
	if len(data) == 0 || len(data[0]) < 2 {
		return false
	}
	for _, c := range data[0] {
		if features.HasDigit(c) {
			return true
		}
	}
	return false
}

func frontOverride(data [][]string, page *int) bool {
	a := features.AnchorStats(features.Flatten(data, 0))
	anchors := a.Count()
	density := features.Density(data)

	switch {
	case page == nil || *page <= 2:
		return anchors >= 2 || density >= 0.70 || a.KV >= 3
	case *page == 3:
		return (anchors >= 3 && a.KV >= 2) || density >= 0.80
	default:
		return (anchors >= 3 && a.KV >= 3) || density >= 0.85
	}
}
