// Package normalize reshapes a classified raw table into headers and data rows.
//
// A table takes one of two paths. Schema-agnostic salvage collapses rows
// without usable col_<N> cells into a single text column. The structured
// path keeps populated columns, detects or composes headers, optionally
// unfolds multi-line front-page rows and promotes compact contact labels.
package normalize

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/okian/tabletriage/internal/domain/features"
	"github.com/okian/tabletriage/internal/domain/model"
)

const (
	defaultMinContent      = 0.30
	defaultMaxHeaderRows   = 4
	defaultMaxHeaderLength = 100
	defaultMinDataRows     = 1

	salvageMinChars   = 40
	salvageBlobRows   = 6
	definitionMinBlob = 120
	periodSearchRows  = 4
	splitMaxRows      = 10
	splitMaxPage      = 3
	ellipsis          = "..."
)

// Outcome is the normalized shape of one raw table.
type Outcome struct {
	Type           model.TableType
	Headers        []string
	Data           [][]string
	RawHeaderParts [][]string
	Title          *string
	Salvaged       bool
	// Cols is the number of columns the structured path kept.
	Cols int
}

// Normalizer turns raw rows into headers and data.
type Normalizer struct {
	minContent      float64
	maxHeaderRows   int
	maxHeaderLength int
	minDataRows     int
}

// New creates a Normalizer with configuration options.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{
		minContent:      defaultMinContent,
		maxHeaderRows:   defaultMaxHeaderRows,
		maxHeaderLength: defaultMaxHeaderLength,
		minDataRows:     defaultMinDataRows,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize runs salvage or the structured path. The salvage path may
// upgrade the table type to FRONT_PAGE.
func (n *Normalizer) Normalize(raw model.RawTable, t model.TableType) Outcome {
	if out, ok := n.salvage(raw, t); ok {
		return out
	}
	return n.structured(raw, t)
}

func (n *Normalizer) salvage(raw model.RawTable, t model.TableType) (Outcome, bool) {
	populated := 0
	for _, row := range raw.Rows {
		for _, f := range row.Fields {
			if f.Index >= 0 && features.Populated(f.Value) {
				populated++
			}
		}
	}
	noKeys := len(raw.ColumnIndices()) == 0
	if !noKeys && populated > 1 && !(raw.HasFreeFormFields() && populated == 0) {
		return Outcome{}, false
	}

	var rows [][]string
	for _, r := range raw.Rows {
		text := features.NormalizeCell(r.Text())
		if utf8.RuneCountInString(text) >= salvageMinChars {
			rows = append(rows, []string{text})
		}
	}
	if len(rows) == 0 {
		return Outcome{}, false
	}

	blob := strings.ToLower(features.Flatten(rows, salvageBlobRows))
	out := Outcome{Type: t, Data: rows, Salvaged: true, Cols: 1}
	switch {
	case features.LooksLikeContactText(blob) && salvagePageGate(raw.PageNumber, features.AnchorStats(blob)):
		out.Type = model.FrontPage
		out.Headers = []string{"Contact Block"}
	case raw.Rows[0].HasField("term") && raw.Rows[0].HasField("description") && utf8.RuneCountInString(blob) >= definitionMinBlob:
		out.Headers = []string{"Definition"}
	default:
		out.Headers = []string{"Text"}
	}
	return out, true
}

func salvagePageGate(page *int, a features.Anchors) bool {
	switch {
	case page == nil || *page <= 2:
		return true
	case *page == 3:
		return a.Count() >= 2 && a.KV >= 2
	default:
		return a.Count() >= 3 && a.KV >= 3
	}
}

func (n *Normalizer) structured(raw model.RawTable, t model.TableType) Outcome {
	var (
		headers []string
		parts   [][]string
		body    [][]string
		width   int
	)
	if cols := raw.ColumnIndices(); len(cols) == 0 {
		for _, r := range raw.Rows {
			body = append(body, []string{r.Text()})
		}
		h := placeholder(0)
		headers, parts, width = []string{h}, [][]string{{h}}, 1
	} else {
		grid := make([][]string, len(raw.Rows))
		for i, r := range raw.Rows {
			cells := make([]string, len(cols))
			for j, c := range cols {
				cells[j] = r.Cell(c)
			}
			grid[i] = cells
		}
		grid = project(grid, n.keptColumns(grid, t))
		width = len(grid[0])

		var used map[int]bool
		headers, parts, used = n.headers(grid, t)
		body = make([][]string, 0, len(grid))
		for i, r := range grid {
			if !used[i] {
				body = append(body, r)
			}
		}
	}

	split := t == model.FrontPage &&
		(raw.PageNumber == nil || *raw.PageNumber <= splitMaxPage) &&
		len(body) < splitMaxRows
	data := splitRows(body, split)

	if t == model.FrontPage && allPlaceholders(headers) {
		headers, data = PromoteFrontFields(headers, data)
	}
	return Outcome{Type: t, Headers: headers, Data: data, RawHeaderParts: parts, Cols: width}
}

// keptColumns drops near-empty columns unless the table is a front page.
func (n *Normalizer) keptColumns(grid [][]string, t model.TableType) []int {
	width := len(grid[0])
	all := make([]int, width)
	for j := range all {
		all[j] = j
	}
	if t == model.FrontPage {
		return all
	}
	var kept []int
	for j := 0; j < width; j++ {
		filled := 0
		for _, r := range grid {
			if features.Populated(r[j]) {
				filled++
			}
		}
		if float64(filled)/float64(len(grid)) >= n.minContent {
			kept = append(kept, j)
		}
	}
	if len(kept) == 0 {
		return all
	}
	return kept
}

func (n *Normalizer) headers(grid [][]string, t model.TableType) ([]string, [][]string, map[int]bool) {
	width := len(grid[0])
	used := make(map[int]bool)
	display := make([]string, width)
	parts := make([][]string, width)

	if rows := n.detectHeaderRows(grid, t); len(rows) > 0 {
		for j := 0; j < width; j++ {
			for _, i := range rows {
				if v := features.NormalizeCell(grid[i][j]); v != "" {
					parts[j] = append(parts[j], v)
				}
			}
			display[j] = strings.Join(parts[j], " ")
			if display[j] == "" {
				display[j] = placeholder(j)
			}
		}
		for _, i := range rows {
			used[i] = true
		}
	} else if composed, composedParts, band, ok := ComposePeriodHeaders(grid, n.minDataRows); ok {
		copy(display, composed)
		copy(parts, composedParts)
		for i := 0; i < band; i++ {
			used[i] = true
		}
	} else {
		for j := 0; j < width; j++ {
			display[j] = placeholder(j)
			parts[j] = []string{display[j]}
		}
	}

	for j, h := range display {
		display[j] = n.truncate(h)
	}
	return display, parts, used
}

// detectHeaderRows returns a contiguous prefix of header-like rows.
// Rows without lexicon hits only qualify as the very first row of a
// non-front-page table, and at least minDataRows rows stay data.
func (n *Normalizer) detectHeaderRows(grid [][]string, t model.TableType) []int {
	var out []int
	limit := n.maxHeaderRows
	if room := len(grid) - n.minDataRows; room < limit {
		limit = room
	}
	for i := 0; i < limit; i++ {
		row := grid[i]
		if features.LooksLikeRowLabelBand(row) {
			break
		}
		h := features.ScoreHeaderRow(row)
		if !h.Qualifies() {
			break
		}
		if h.Hits == 0 && (t == model.FrontPage || i > 0) {
			break
		}
		out = append(out, i)
	}
	return out
}

// ComposePeriodHeaders bands the leading non-data rows (at most four) per
// column and accepts the result when at least max(2, width/3) columns carry
// a period marker. Columns without a marker get Column_i; their band text
// is kept in parts. At least minDataRows rows must remain after the band.
func ComposePeriodHeaders(grid [][]string, minDataRows int) (headers []string, parts [][]string, band int, ok bool) {
	for band < len(grid) && band < periodSearchRows && !features.IsDataRow(grid[band]) {
		band++
	}
	if band == 0 || len(grid)-band < minDataRows {
		return nil, nil, 0, false
	}

	width := 0
	for _, r := range grid {
		if len(r) > width {
			width = len(r)
		}
	}
	headers = make([]string, width)
	parts = make([][]string, width)
	hits := 0
	for j := 0; j < width; j++ {
		for i := 0; i < band; i++ {
			if j >= len(grid[i]) {
				continue
			}
			if v := features.NormalizeCell(grid[i][j]); v != "" {
				parts[j] = append(parts[j], v)
			}
		}
		headers[j] = placeholder(j)
		if text := strings.Join(parts[j], " "); features.MatchesPeriodMarker(text) {
			headers[j] = text
			hits++
		}
	}
	need := width / 3
	if need < 2 {
		need = 2
	}
	if hits < need {
		return nil, nil, 0, false
	}
	return headers, parts, band, true
}

func (n *Normalizer) truncate(h string) string {
	if utf8.RuneCountInString(h) <= n.maxHeaderLength {
		return h
	}
	r := []rune(h)
	return string(r[:n.maxHeaderLength-len(ellipsis)]) + ellipsis
}

// PromoteFrontFields turns a first data row that names two or more contact
// fields into headers. The row is consumed; unmatched slots become Field_i.
func PromoteFrontFields(headers []string, data [][]string) ([]string, [][]string) {
	if len(data) == 0 {
		return headers, data
	}
	labels := features.FrontFieldLabels(strings.ToLower(strings.Join(data[0], " ")))
	if len(labels) < 2 || len(labels) > len(headers) {
		return headers, data
	}
	out := append([]string(nil), labels...)
	for i := 0; len(out) < len(headers); i++ {
		out = append(out, fmt.Sprintf("Field_%d", i))
	}
	return out, data[1:]
}

func splitRows(body [][]string, allow bool) [][]string {
	out := make([][]string, 0, len(body))
	for _, r := range body {
		if !allow || !hasNewline(r) {
			out = append(out, normalizeRow(r))
			continue
		}
		lines := make([][]string, len(r))
		depth := 0
		for j, c := range r {
			lines[j] = strings.Split(c, "\n")
			if len(lines[j]) > depth {
				depth = len(lines[j])
			}
		}
		for k := 0; k < depth; k++ {
			row := make([]string, len(r))
			for j := range r {
				if k < len(lines[j]) {
					row[j] = features.NormalizeCell(lines[j][k])
				}
			}
			out = append(out, row)
		}
	}
	return out
}

func project(grid [][]string, kept []int) [][]string {
	out := make([][]string, len(grid))
	for i, r := range grid {
		row := make([]string, len(kept))
		for k, j := range kept {
			row[k] = r[j]
		}
		out[i] = row
	}
	return out
}

func normalizeRow(r []string) []string {
	out := make([]string, len(r))
	for j, c := range r {
		out[j] = features.NormalizeCell(c)
	}
	return out
}

func hasNewline(r []string) bool {
	for _, c := range r {
		if strings.Contains(c, "\n") {
			return true
		}
	}
	return false
}

func allPlaceholders(headers []string) bool {
	for _, h := range headers {
		if !strings.HasPrefix(h, "Column_") {
			return false
		}
	}
	return len(headers) > 0
}

func placeholder(j int) string { return fmt.Sprintf("Column_%d", j) }
