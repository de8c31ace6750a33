// Package classify assigns a raw table to one of the terminal table types.
package classify

import (
	"sort"
	"strings"

	"github.com/okian/tabletriage/internal/domain/features"
	"github.com/okian/tabletriage/internal/domain/model"
)

const (
	frontPageMaxPage = 2
	shapeSearchRows  = 4
)

// Classifier decides a table type once per table. It holds no state.
type Classifier struct{}

// New returns a Classifier.
func New() *Classifier { return &Classifier{} }

// Classify evaluates the decision rules in order and returns the first match.
func (c *Classifier) Classify(rows []model.RawRow, page *int) model.TableType {
	if page != nil && *page <= frontPageMaxPage {
		return model.FrontPage
	}

	text := strings.ToLower(features.NormalizeCell(flatten(rows)))
	if features.HasFinancialStatementTerm(text) {
		return model.FinancialStatement
	}
	if periodGrid(rows) {
		return model.FinancialStatement
	}

	a := features.AnchorStats(text)
	anchors := a.Count()
	switch {
	case page == nil:
		if anchors >= 2 && a.KV >= 2 {
			return model.FrontPage
		}
	case *page == 3:
		if (anchors >= 2 && a.KV >= 2) || a.Roles >= 3 {
			return model.FrontPage
		}
	default:
		if anchors >= 3 && a.KV >= 3 && a.Roles >= 1 {
			return model.FrontPage
		}
	}
	return model.Generic
}

// Demote relabels a weak late front-page table as generic. Acceptance is
// decided elsewhere; only the type changes.
func Demote(t model.TableType, page *int, signals features.Anchors) model.TableType {
	if t != model.FrontPage || page == nil || *page <= 3 {
		return t
	}
	if signals.Count() >= 3 && signals.KV >= 3 {
		return t
	}
	return model.Generic
}

// periodGrid detects a Particulars | FY21 | FY22 shape: a leading row with at
// least two period-marked value cells followed by a row with digits in two cells.
func periodGrid(rows []model.RawRow) bool {
	limit := shapeSearchRows
	if len(rows) < limit {
		limit = len(rows)
	}
	for i := 0; i < limit; i++ {
		cells := keyedCells(rows[i])
		if len(cells) < 3 {
			continue
		}
		marked := 0
		for _, c := range cells[1:] {
			if features.MatchesPeriodMarker(features.NormalizeCell(c)) {
				marked++
			}
		}
		if marked < 2 {
			continue
		}
		for _, later := range rows[i+1:] {
			digits := 0
			for _, c := range keyedCells(later) {
				if features.HasDigit(c) {
					digits++
				}
			}
			if digits >= 2 {
				return true
			}
		}
	}
	return false
}

func keyedCells(r model.RawRow) []string {
	if r.Kind != model.RowKeyed {
		return nil
	}
	keyed := make([]model.Field, 0, len(r.Fields))
	for _, f := range r.Fields {
		if f.Index >= 0 {
			keyed = append(keyed, f)
		}
	}
	sort.SliceStable(keyed, func(i, j int) bool { return keyed[i].Index < keyed[j].Index })
	out := make([]string, len(keyed))
	for i, f := range keyed {
		out[i] = f.Value
	}
	return out
}

func flatten(rows []model.RawRow) string {
	var b strings.Builder
	for _, r := range rows {
		for _, f := range r.Fields {
			b.WriteString(f.Value)
			b.WriteByte(' ')
		}
	}
	return b.String()
}
