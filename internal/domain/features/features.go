// Package features holds the pure feature extractors shared by the classifier,
// normalizer, gate and memory layer.
package features

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	numericRe    = regexp.MustCompile(`^[0-9,.\-()%₹]+$`)
	digitRe      = regexp.MustCompile(`\d`)
)

// NormalizeCell folds compatibility characters, collapses whitespace runs and trims.
func NormalizeCell(s string) string {
	if s == "" {
		return ""
	}
	s = norm.NFKC.String(s)
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// IsNumericCell reports whether a cell consists only of digits and numeric punctuation.
func IsNumericCell(s string) bool {
	return numericRe.MatchString(strings.TrimSpace(s))
}

// HasDigit reports whether s contains any decimal digit.
func HasDigit(s string) bool { return digitRe.MatchString(s) }

// Populated reports whether a cell carries content ("-" counts as empty).
func Populated(s string) bool {
	v := NormalizeCell(s)
	return v != "" && v != "-"
}

// TabularityScore measures how column-consistent a grid is, in [0,1].
//
// Column purity is max(numeric share, non-numeric share) over the column's
// non-empty cells; an empty column scores 0. The score is
// 0.7*mean(purity) + 0.3*width_guard where width_guard is 1 when there are
// at least two columns and one of them is purer than 0.7.
func TabularityScore(rows [][]string) float64 {
	if len(rows) == 0 {
		return 0
	}
	cols := 0
	for _, r := range rows {
		if len(r) > cols {
			cols = len(r)
		}
	}
	if cols <= 1 {
		return 0
	}

	var sum float64
	strong := false
	for j := 0; j < cols; j++ {
		total, num := 0, 0
		for _, r := range rows {
			if j >= len(r) {
				continue
			}
			v := NormalizeCell(r[j])
			if v == "" {
				continue
			}
			total++
			if IsNumericCell(v) {
				num++
			}
		}
		if total == 0 {
			continue
		}
		frac := float64(num) / float64(total)
		purity := frac
		if 1-frac > purity {
			purity = 1 - frac
		}
		if purity > 0.7 {
			strong = true
		}
		sum += purity
	}

	width := 0.0
	if strong {
		width = 1
	}
	return 0.7*(sum/float64(cols)) + 0.3*width
}

// Density is the non-empty cell fraction over all cells.
func Density(rows [][]string) float64 {
	total, filled := 0, 0
	for _, r := range rows {
		for _, c := range r {
			total++
			if strings.TrimSpace(c) != "" {
				filled++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(filled) / float64(total)
}

// Flatten joins the first limit rows into one text blob (limit <= 0 means all rows).
func Flatten(rows [][]string, limit int) string {
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	parts := make([]string, 0, len(rows))
	for _, r := range rows {
		parts = append(parts, strings.Join(r, " "))
	}
	return strings.Join(parts, " ")
}

// IsAlphaToken reports whether every rune of tok is a letter.
func IsAlphaToken(tok string) bool {
	if tok == "" {
		return false
	}
	for _, r := range tok {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

// ContainsAny reports whether lower contains any of the terms as a substring.
func ContainsAny(lower string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}

// CountTerms counts how many of the terms occur in lower.
func CountTerms(lower string, terms []string) int {
	n := 0
	for _, t := range terms {
		if strings.Contains(lower, t) {
			n++
		}
	}
	return n
}
