// Package model contains domain models passed between layers.
package model

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// TableType is the terminal state of the classifier.
type TableType string

const (
	FrontPage          TableType = "FRONT_PAGE"
	FinancialStatement TableType = "FINANCIAL_STATEMENT"
	Generic            TableType = "GENERIC"
)

// Valid reports whether t is one of the known table types.
func (t TableType) Valid() bool {
	switch t {
	case FrontPage, FinancialStatement, Generic:
		return true
	}
	return false
}

// UnmarshalJSON rejects unknown table types.
func (t *TableType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if !TableType(s).Valid() {
		return fmt.Errorf("unknown table type %q", s)
	}
	*t = TableType(s)
	return nil
}

// SkipReason explains why a raw table produced no processed record.
type SkipReason string

const (
	SkipEmptyTable  SkipReason = "empty_table"
	SkipNonValuable SkipReason = "skipped_non_valuable"
	SkipDuplicate   SkipReason = "duplicate"
)

// Table is an immutable snapshot of a table between pipeline stages.
// Stages never modify a received Table; they return a new one.
type Table struct {
	PageNumber *int
	TableIndex int
	Type       TableType
	Headers    []string
	Data       [][]string
	Title      *string
}

// Clone returns a deep copy.
func (t Table) Clone() Table {
	out := t
	out.Headers = append([]string(nil), t.Headers...)
	out.Data = CloneRows(t.Data)
	if t.PageNumber != nil {
		p := *t.PageNumber
		out.PageNumber = &p
	}
	if t.Title != nil {
		s := *t.Title
		out.Title = &s
	}
	return out
}

// WithHeaders returns a copy carrying the given headers.
func (t Table) WithHeaders(h []string) Table {
	out := t.Clone()
	out.Headers = append([]string(nil), h...)
	return out
}

// WithData returns a copy carrying the given rows.
func (t Table) WithData(rows [][]string) Table {
	out := t.Clone()
	out.Data = CloneRows(rows)
	return out
}

// Width is the widest of the header row and every data row.
func (t Table) Width() int {
	w := len(t.Headers)
	for _, r := range t.Data {
		if len(r) > w {
			w = len(r)
		}
	}
	return w
}

// Page renders the page number for logs, "-" when unknown.
func (t Table) Page() string {
	if t.PageNumber == nil {
		return "-"
	}
	return strconv.Itoa(*t.PageNumber)
}

// CloneRows deep-copies a grid.
func CloneRows(rows [][]string) [][]string {
	if rows == nil {
		return nil
	}
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}

// NormalizedTable is the processed record emitted for an accepted table.
type NormalizedTable struct {
	PageNumber  *int       `json:"page_number"`
	TableIndex  int        `json:"table_index"`
	TableType   TableType  `json:"table_type"`
	Headers     []string   `json:"headers"`
	Data        [][]string `json:"data"`
	TableTitle  *string    `json:"table_title"`
	ContentHash string     `json:"content_hash"`
	Confidence  float64    `json:"confidence"`
}

// SkipRecord is the terminal record for a rejected table.
type SkipRecord struct {
	PageNumber *int       `json:"page_number"`
	TableIndex int        `json:"table_index"`
	Reason     SkipReason `json:"reason"`
}

// IntPtr is a convenience for optional page numbers.
func IntPtr(v int) *int { return &v }
