package memory

import (
	"sort"
	"strings"
)

// Structural families derived from signature hints.
const (
	FamilyContactSlab = "contact_slab"
	FamilyPeriodGrid  = "period_grid"
	FamilyLedgerStub  = "ledger_stub"
	FamilyMicroTables = "micro_tables"
	FamilyGeneric     = "generic"
)

// Front-page contact families scored directly from anchors.
const (
	FamilyFrontContactSlim = "FRONT_CONTACT_SLIM"
	FamilyFrontContactKV   = "FRONT_CONTACT_KV"
)

const (
	matchJaccardWeight   = 0.5
	matchProximityWeight = 0.25
	matchHintWeight      = 0.25
	lowTabularity        = 0.35
)

// Match is a pattern ranked against a signature.
type Match struct {
	Pattern Pattern
	Score   float64
}

// Candidate is a scored family.
type Candidate struct {
	Family string  `json:"family"`
	Score  float64 `json:"score"`
}

// FamilyHints thresholds the structural sketch; the result is never empty.
func FamilyHints(sig Signature) []string {
	var hints []string
	if sig.ContactCues >= 1 && sig.ProtoGrid < 0.6 {
		hints = append(hints, FamilyContactSlab)
	}
	if sig.PeriodCues >= 2 && sig.ColCount >= 3 {
		hints = append(hints, FamilyPeriodGrid)
	}
	first := 0.0
	if len(sig.NumFrac) > 0 {
		first = sig.NumFrac[0]
	}
	if sig.RowLabelDensity > 0.5 && first < 0.4 {
		hints = append(hints, FamilyLedgerStub)
	}
	if sig.RowCount <= 3 && sig.ColCount <= 3 {
		hints = append(hints, FamilyMicroTables)
	}
	if len(hints) == 0 {
		return []string{FamilyGeneric}
	}
	return hints
}

// Jaccard is the set overlap of two minhash sketches.
func Jaccard(a, b []uint32) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[uint32]bool, len(a))
	for _, v := range a {
		set[v] = true
	}
	union := len(set)
	inter := 0
	seen := make(map[uint32]bool, len(b))
	for _, v := range b {
		if seen[v] {
			continue
		}
		seen[v] = true
		if set[v] {
			inter++
		} else {
			union++
		}
	}
	return float64(inter) / float64(union)
}

// MatchPatterns ranks patterns by minhash overlap, column proximity and
// hint agreement and returns the best k. Quarantined-only patterns still
// rank; their recipes are filtered when applied.
func MatchPatterns(sig Signature, patterns []Pattern, k int) []Match {
	hints := FamilyHints(sig)
	out := make([]Match, 0, len(patterns))
	for _, p := range patterns {
		score := matchJaccardWeight * Jaccard(sig.MinHash, p.Sketch.MinHash)
		score += matchProximityWeight * columnProximity(sig.ColCount, p.Sketch.ColCount)
		if containsFold(hints, p.Family) {
			score += matchHintWeight
		}
		out = append(out, Match{Pattern: p, Score: round3(score)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out
}

// columnProximity is 1 for equal column counts, falling to 0 as they diverge.
// A sketch without a column count is treated as equal.
func columnProximity(cols, sketchCols int) float64 {
	if sketchCols <= 0 {
		return 1
	}
	d := cols - sketchCols
	if d < 0 {
		d = -d
	}
	den := cols
	if den < 1 {
		den = 1
	}
	frac := float64(d) / float64(den)
	if frac > 1 {
		frac = 1
	}
	return 1 - frac
}

// FrontContactCandidates scores the two front-page contact families, best first.
func FrontContactCandidates(sig Signature) []Candidate {
	slim := 0.35*float64(sig.AnchorCount) + 0.25*float64(sig.LexHits) +
		0.15*boolf(sig.PageBand == pageBandFront) + 0.15*boolf(sig.KVLabelCount >= 1)
	kv := 0.30*float64(sig.AnchorCount) + 0.35*boolf(sig.KVLabelCount >= 3) +
		0.15*boolf(sig.PageBand == pageBandFront || sig.PageBand == pageBandMid) +
		0.10*boolf(sig.TabularityProxy < lowTabularity)
	out := []Candidate{
		{Family: FamilyFrontContactSlim, Score: round3(slim)},
		{Family: FamilyFrontContactKV, Score: round3(kv)},
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

func containsFold(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

func boolf(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
