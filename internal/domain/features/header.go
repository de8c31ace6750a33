package features

import (
	"regexp"
	"strings"
)

var headerHints = []string{
	"total", "amount", "year", "period", "march", "december", "fy", "q1", "q2", "q3", "q4", "half year", "h1", "h2",
	"as on", "as at", "as of", "revenue", "assets", "liabilities", "equity", "cash flow", "profit", "loss",
	"income", "expenses", "notes", "particulars", "sr. no.", "details", "description", "metric", "₹ in crore", "₹ in lakh",
}

var rowLabelTokens = []string{"assets", "liabilities", "equity", "income", "expenses", "particulars", "notes"}

var (
	headerYearRe    = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)
	headerMonthRe   = regexp.MustCompile(`^(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)`)
	numericTokenRe  = regexp.MustCompile(`^[\d,.%₹-]+$`)
	numericSignalRe = regexp.MustCompile(`[\d,.%₹-]`)
	letterRe        = regexp.MustCompile(`[A-Za-z]`)
)

// HeaderScore is the salience breakdown of a candidate header row.
type HeaderScore struct {
	Score float64
	Hits  int
	// NumericRatio is the share of numeric-looking cells among numeric and lettered cells.
	NumericRatio float64
}

// Qualifies applies the header threshold: score >= 0.5 and numeric ratio < 0.25.
func (h HeaderScore) Qualifies() bool {
	return h.Score >= 0.5 && h.NumericRatio < 0.25
}

// ScoreHeaderRow rewards lexicon and period hits and penalises label-less rows.
func ScoreHeaderRow(cells []string) HeaderScore {
	hits, labels, numerics := 0, 0, 0
	unique := make(map[string]struct{})
	numericCells, letterCells := 0, 0

	for _, c := range cells {
		s := NormalizeCell(c)
		if numericSignalRe.MatchString(s) {
			numericCells++
		}
		if letterRe.MatchString(s) {
			letterCells++
		}
		if s == "" {
			continue
		}
		sl := strings.ToLower(s)
		if ContainsAny(sl, headerHints) {
			hits += 2
		}
		if headerYearRe.MatchString(sl) || headerMonthRe.MatchString(sl) {
			hits++
		}
		for _, tok := range strings.Fields(s) {
			switch {
			case IsAlphaToken(tok):
				labels++
				unique[strings.ToLower(tok)] = struct{}{}
			case numericTokenRe.MatchString(tok):
				numerics++
			}
		}
	}

	ratio := 0.0
	if labels+numerics > 0 {
		ratio = float64(labels) / float64(labels+numerics)
	}
	score := float64(hits) + 0.5*ratio
	if hits == 0 && len(unique) <= 1 {
		score -= 0.1
	}

	nr := 0.0
	if numericCells+letterCells > 0 {
		nr = float64(numericCells) / float64(numericCells+letterCells)
	}
	return HeaderScore{Score: score, Hits: hits, NumericRatio: nr}
}

// LooksLikeRowLabelBand reports a row whose long first cell lists accounting
// line items while the remaining cells are nearly empty.
func LooksLikeRowLabelBand(cells []string) bool {
	if len(cells) == 0 {
		return false
	}
	left := NormalizeCell(cells[0])
	var other strings.Builder
	for j := 1; j < len(cells) && j < 6; j++ {
		if j > 1 {
			other.WriteByte(' ')
		}
		other.WriteString(NormalizeCell(cells[j]))
	}
	if len([]rune(left)) <= 20 || len([]rune(other.String())) >= 10 {
		return false
	}
	return CountTerms(strings.ToLower(left), rowLabelTokens) >= 2
}

// IsDataRow reports a row dominated by numeric cells.
func IsDataRow(cells []string) bool {
	filled, num := 0, 0
	for _, c := range cells {
		v := NormalizeCell(c)
		if v == "" {
			continue
		}
		filled++
		if IsNumericCell(v) {
			num++
		}
	}
	return num > 0 && num*2 >= filled
}

var frontFieldMap = []struct {
	re    *regexp.Regexp
	label string
}{
	{regexp.MustCompile(`(?i)\bregistrar(\s+to\s+the)?\s+(issue|offer)\b`), "Registrar"},
	{regexp.MustCompile(`(?i)\b(lead\s+manager|merchant\s+banker|brlm)\b`), "Lead Manager"},
	{regexp.MustCompile(`(?i)\b(contact\s+person|compliance\s+officer|company\s+secretary)\b`), "Contact"},
	{regexp.MustCompile(`(?i)\bemail|e-?mail\b`), "Email"},
	{regexp.MustCompile(`(?i)\bwebsite|web\s*site|url\b`), "Website"},
	{regexp.MustCompile(`(?i)\btelephone|tel|phone|fax\b`), "Telephone"},
}

// FrontFieldLabels maps contact text to the canonical front-page field labels it mentions.
func FrontFieldLabels(text string) []string {
	var out []string
	for _, f := range frontFieldMap {
		if f.re.MatchString(text) {
			out = append(out, f.label)
		}
	}
	return out
}

var placeholderRe = regexp.MustCompile(`^(Column|Field)_\d+$`)

// IsPlaceholderHeader reports synthesized or empty header names.
func IsPlaceholderHeader(h string) bool {
	return strings.TrimSpace(h) == "" || placeholderRe.MatchString(h)
}
