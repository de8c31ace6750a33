package memory

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/okian/tabletriage/internal/domain/features"
	"github.com/okian/tabletriage/internal/domain/model"
	"github.com/okian/tabletriage/internal/domain/normalize"
)

// Recipe op names.
const (
	OpSingleColCompose   = "singlecol_compose"
	OpKVPairExtractor    = "kv_pair_extractor"
	OpPromoteFrontFields = "promote_front_fields"
	OpDropEmptyCols      = "drop_empty_cols"
	OpSemanticPromote    = "semantic_promote"
	OpPeriodCompose      = "period_compose"
	OpRowLabelGuard      = "row_label_guard"
)

const (
	contactBlockHeader    = "Contact Block"
	defaultDropThreshold  = 0.30
	singleColHint         = 0.10
	kvPairHint            = 0.05
	kvPairHintCap         = 0.20
	promoteFrontHint      = 0.05
	semanticPromoteHint   = 0.12
	periodComposeHint     = 0.02
	rowLabelGuardHint     = 0.01
	semanticPromoteMinCol = 3
)

var kvPairRe = regexp.MustCompile(`([A-Za-z][A-Za-z\s]{1,30}):\s*([^\n;|]+)`)

// ApplyFunc transforms a table. It returns the new table, a gain estimate
// and whether the recipe's guard held. Unchanged tables carry a zero hint.
type ApplyFunc func(t model.Table, p Params) (model.Table, float64, bool)

// Recipe is a named transform. Cosmetic recipes only touch headers and
// are the only ones allowed after the gate.
type Recipe struct {
	Name     string
	Cosmetic bool
	Apply    ApplyFunc
}

// Registry maps op names to recipes.
type Registry struct {
	recipes map[string]Recipe
}

// NewRegistry returns the built-in recipes.
func NewRegistry() *Registry {
	r := &Registry{recipes: make(map[string]Recipe)}
	r.Register(Recipe{Name: OpSingleColCompose, Apply: singleColCompose})
	r.Register(Recipe{Name: OpKVPairExtractor, Apply: kvPairExtractor})
	r.Register(Recipe{Name: OpPromoteFrontFields, Cosmetic: true, Apply: promoteFrontFields})
	r.Register(Recipe{Name: OpDropEmptyCols, Apply: dropEmptyCols})
	r.Register(Recipe{Name: OpSemanticPromote, Apply: semanticPromote})
	r.Register(Recipe{Name: OpPeriodCompose, Apply: periodCompose})
	r.Register(Recipe{Name: OpRowLabelGuard, Apply: rowLabelGuard})
	return r
}

// Register adds or replaces a recipe.
func (r *Registry) Register(rc Recipe) { r.recipes[rc.Name] = rc }

// Get looks up a recipe.
func (r *Registry) Get(name string) (Recipe, bool) {
	rc, ok := r.recipes[name]
	return rc, ok
}

var familyDefaults = map[string][]string{
	FamilyFrontContactSlim: {OpSingleColCompose, OpPromoteFrontFields},
	FamilyFrontContactKV:   {OpSingleColCompose, OpKVPairExtractor, OpPromoteFrontFields},
	FamilyContactSlab:      {OpSemanticPromote, OpRowLabelGuard},
	FamilyPeriodGrid:       {OpPeriodCompose, OpRowLabelGuard},
	FamilyLedgerStub:       {OpRowLabelGuard},
	FamilyMicroTables:      {OpSemanticPromote},
	FamilyGeneric:          {OpRowLabelGuard},
}

// FamilyOps returns the default op list of family.
func FamilyOps(family string) []string {
	if ops, ok := familyDefaults[family]; ok {
		return append([]string(nil), ops...)
	}
	return []string{OpRowLabelGuard}
}

func singleColCompose(t model.Table, _ Params) (model.Table, float64, bool) {
	if len(t.Headers) == 1 && t.Headers[0] == contactBlockHeader {
		return t, 0, true
	}
	var rows [][]string
	for _, r := range t.Data {
		text := features.NormalizeCell(strings.Join(r, " "))
		if text != "" {
			rows = append(rows, []string{text})
		}
	}
	hint := 0.0
	if t.Width() > 1 && features.TabularityScore(t.Data) < lowTabularity {
		hint = singleColHint
	}
	out := t.WithHeaders([]string{contactBlockHeader}).WithData(rows)
	return out, hint, len(rows) > 0
}

func kvPairExtractor(t model.Table, _ Params) (model.Table, float64, bool) {
	text := features.Flatten(t.Data, signatureRows)
	title := cases.Title(language.English)
	var labels, values []string
	seen := make(map[string]bool)
	for _, m := range kvPairRe.FindAllStringSubmatch(text, -1) {
		label := title.String(features.NormalizeCell(m[1]))
		if seen[label] {
			continue
		}
		seen[label] = true
		labels = append(labels, label)
		values = append(values, features.NormalizeCell(m[2]))
	}
	if len(labels) < 2 {
		return t, 0, false
	}
	hint := kvPairHint * float64(len(labels))
	if hint > kvPairHintCap {
		hint = kvPairHintCap
	}
	return t.WithHeaders(labels).WithData([][]string{values}), hint, true
}

// promoteFrontFields renames placeholder headers after the contact fields
// mentioned in the data. Data is left as is.
func promoteFrontFields(t model.Table, _ Params) (model.Table, float64, bool) {
	for _, h := range t.Headers {
		if !features.IsPlaceholderHeader(h) {
			return t, 0, false
		}
	}
	labels := features.FrontFieldLabels(strings.ToLower(features.Flatten(t.Data, signatureRows)))
	if len(labels) == 0 {
		return t, 0, true
	}
	n := 1
	if len(t.Data) > 0 && len(t.Data[0]) > 1 {
		n = len(t.Data[0])
	}
	headers := append([]string(nil), labels...)
	for i := 0; len(headers) < n; i++ {
		headers = append(headers, fmt.Sprintf("Field_%d", i))
	}
	return t.WithHeaders(headers[:n]), promoteFrontHint, true
}

func dropEmptyCols(t model.Table, p Params) (model.Table, float64, bool) {
	thr := p.Float("threshold", defaultDropThreshold)
	if len(t.Data) == 0 {
		return t, 0, true
	}
	width := t.Width()
	var keep []int
	for j := 0; j < width; j++ {
		filled := 0
		for _, r := range t.Data {
			if j < len(r) && features.Populated(r[j]) {
				filled++
			}
		}
		if float64(filled)/float64(len(t.Data)) >= thr {
			keep = append(keep, j)
		}
	}
	if len(keep) == 0 || len(keep) == width {
		return t, 0, true
	}
	headers := make([]string, len(keep))
	rows := make([][]string, len(t.Data))
	for k, j := range keep {
		if j < len(t.Headers) {
			headers[k] = t.Headers[j]
		} else {
			headers[k] = fmt.Sprintf("Column_%d", k)
		}
	}
	for i, r := range t.Data {
		row := make([]string, len(keep))
		for k, j := range keep {
			if j < len(r) {
				row[k] = r[j]
			}
		}
		rows[i] = row
	}
	return t.WithHeaders(headers).WithData(rows), 0, true
}

// semanticPromote lifts a dense first row to headers.
func semanticPromote(t model.Table, _ Params) (model.Table, float64, bool) {
	if len(t.Data) == 0 {
		return t, 0, true
	}
	first := t.Data[0]
	nonEmpty := 0
	for _, c := range first {
		if strings.TrimSpace(c) != "" {
			nonEmpty++
		}
	}
	need := len(t.Headers)
	if need < semanticPromoteMinCol {
		need = semanticPromoteMinCol
	}
	if nonEmpty < need {
		return t, 0, true
	}
	headers := make([]string, len(first))
	for j, c := range first {
		headers[j] = strings.TrimSpace(c)
	}
	out := t.WithHeaders(headers).WithData(t.Data[1:])
	return out, semanticPromoteHint, out.Width() >= 2
}

// periodCompose replaces placeholder headers by the leading period band.
func periodCompose(t model.Table, _ Params) (model.Table, float64, bool) {
	for _, h := range t.Headers {
		if !features.IsPlaceholderHeader(h) {
			return t, 0, true
		}
	}
	headers, _, band, ok := normalize.ComposePeriodHeaders(t.Data, 1)
	if !ok {
		return t, 0, true
	}
	return t.WithHeaders(headers).WithData(t.Data[band:]), periodComposeHint, true
}

// rowLabelGuard demotes a header row that is really a band of accounting
// row labels back into the data.
func rowLabelGuard(t model.Table, _ Params) (model.Table, float64, bool) {
	if !features.LooksLikeRowLabelBand(t.Headers) {
		return t, 0, true
	}
	headers := make([]string, len(t.Headers))
	for j := range headers {
		headers[j] = fmt.Sprintf("Column_%d", j)
	}
	rows := append([][]string{append([]string(nil), t.Headers...)}, t.Data...)
	return t.WithHeaders(headers).WithData(rows), rowLabelGuardHint, true
}
