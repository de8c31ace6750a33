package model

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/buger/jsonparser"
)

// RowKind tags how a raw row addresses its cells.
type RowKind int

const (
	// RowFreeForm rows carry arbitrary field names and no col_<N> keys.
	RowFreeForm RowKind = iota
	// RowKeyed rows carry at least one col_<N> key.
	RowKeyed
)

const ignoredFieldPrefix = "IGNORE_WHEN_COPYING"

// Field is one cell of a raw row in document order.
// Index is N for col_<N> keys and -1 for free-form keys.
type Field struct {
	Name  string
	Index int
	Value string
}

// RawRow is a row object from the legacy dump, resolved once at ingestion.
type RawRow struct {
	Kind   RowKind
	Fields []Field
}

// RawTable is one extracted table as delivered by the upstream extractor.
type RawTable struct {
	PageNumber *int
	Rows       []RawRow
}

// UnmarshalJSON decodes a table keeping the key order of every row.
func (t *RawTable) UnmarshalJSON(data []byte) error {
	*t = RawTable{}
	if v, dt, _, err := jsonparser.Get(data, "page_number"); err == nil {
		t.PageNumber = parsePage(v, dt)
	}

	var rowErr error
	_, err := jsonparser.ArrayEach(data, func(value []byte, dt jsonparser.ValueType, _ int, _ error) {
		if rowErr != nil {
			return
		}
		row, err := decodeRow(value, dt)
		if err != nil {
			rowErr = err
			return
		}
		t.Rows = append(t.Rows, row)
	}, "table_data")
	if err != nil && !errors.Is(err, jsonparser.KeyPathNotFoundError) {
		return fmt.Errorf("decode table_data: %w", err)
	}
	return rowErr
}

// UnmarshalJSON decodes a single row object.
func (r *RawRow) UnmarshalJSON(data []byte) error {
	_, dt, _, err := jsonparser.Get(data)
	if err != nil {
		return fmt.Errorf("decode row: %w", err)
	}
	row, err := decodeRow(data, dt)
	if err != nil {
		return err
	}
	*r = row
	return nil
}

// NewKeyedRow builds a keyed row from cells laid out as col_0..col_N.
func NewKeyedRow(cells ...string) RawRow {
	row := RawRow{Kind: RowKeyed}
	for i, c := range cells {
		row.Fields = append(row.Fields, Field{Name: "col_" + strconv.Itoa(i), Index: i, Value: c})
	}
	return row
}

// NewFreeFormRow builds a free-form row from name/value pairs.
func NewFreeFormRow(pairs ...string) RawRow {
	row := RawRow{Kind: RowFreeForm}
	for i := 0; i+1 < len(pairs); i += 2 {
		row.Fields = append(row.Fields, Field{Name: pairs[i], Index: -1, Value: pairs[i+1]})
	}
	return row
}

// Cell returns the value stored under col_<index>.
func (r RawRow) Cell(index int) string {
	for _, f := range r.Fields {
		if f.Index == index {
			return f.Value
		}
	}
	return ""
}

// HasField reports whether a field with the given name exists (case-insensitive).
func (r RawRow) HasField(name string) bool {
	for _, f := range r.Fields {
		if strings.EqualFold(f.Name, name) {
			return true
		}
	}
	return false
}

// Text joins all non-empty values in document order, skipping copy markers.
func (r RawRow) Text() string {
	parts := make([]string, 0, len(r.Fields))
	for _, f := range r.Fields {
		if strings.HasPrefix(f.Name, ignoredFieldPrefix) {
			continue
		}
		if v := strings.TrimSpace(f.Value); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " ")
}

// ColumnIndices returns the distinct col_<N> indices used anywhere in the table, ascending.
func (t RawTable) ColumnIndices() []int {
	seen := make(map[int]struct{})
	for _, row := range t.Rows {
		for _, f := range row.Fields {
			if f.Index >= 0 {
				seen[f.Index] = struct{}{}
			}
		}
	}
	out := make([]int, 0, len(seen))
	for i := range seen {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// HasFreeFormFields reports whether any row carries a non col_<N> key.
func (t RawTable) HasFreeFormFields() bool {
	for _, row := range t.Rows {
		for _, f := range row.Fields {
			if f.Index < 0 {
				return true
			}
		}
	}
	return false
}

// AllValues returns every cell value in document order.
func (t RawTable) AllValues() []string {
	var out []string
	for _, row := range t.Rows {
		for _, f := range row.Fields {
			out = append(out, f.Value)
		}
	}
	return out
}

func decodeRow(value []byte, dt jsonparser.ValueType) (RawRow, error) {
	row := RawRow{Kind: RowFreeForm}
	switch dt {
	case jsonparser.Object:
		err := jsonparser.ObjectEach(value, func(key, v []byte, vt jsonparser.ValueType, _ int) error {
			name, err := jsonparser.ParseString(key)
			if err != nil {
				return fmt.Errorf("decode row key: %w", err)
			}
			cell, err := cellText(v, vt)
			if err != nil {
				return err
			}
			idx := columnIndex(name)
			if idx >= 0 {
				row.Kind = RowKeyed
			}
			row.Fields = append(row.Fields, Field{Name: name, Index: idx, Value: cell})
			return nil
		})
		if err != nil {
			return RawRow{}, fmt.Errorf("decode row: %w", err)
		}
	case jsonparser.Array:
		// list rows have no keys; every element is a free-form cell
		var cellErr error
		_, err := jsonparser.ArrayEach(value, func(v []byte, vt jsonparser.ValueType, _ int, _ error) {
			if cellErr != nil {
				return
			}
			cell, err := cellText(v, vt)
			if err != nil {
				cellErr = err
				return
			}
			row.Fields = append(row.Fields, Field{Index: -1, Value: cell})
		})
		if err != nil {
			return RawRow{}, fmt.Errorf("decode row: %w", err)
		}
		if cellErr != nil {
			return RawRow{}, cellErr
		}
	case jsonparser.Null:
	default:
		cell, err := cellText(value, dt)
		if err != nil {
			return RawRow{}, err
		}
		row.Fields = append(row.Fields, Field{Index: -1, Value: cell})
	}
	return row, nil
}

func cellText(v []byte, vt jsonparser.ValueType) (string, error) {
	switch vt {
	case jsonparser.String:
		s, err := jsonparser.ParseString(v)
		if err != nil {
			return "", fmt.Errorf("decode cell: %w", err)
		}
		return s, nil
	case jsonparser.Null:
		return "", nil
	default:
		return string(v), nil
	}
}

func columnIndex(name string) int {
	if len(name) < 5 || !strings.EqualFold(name[:4], "col_") {
		return -1
	}
	n, err := strconv.Atoi(name[4:])
	if err != nil || n < 0 {
		return -1
	}
	return n
}

func parsePage(v []byte, dt jsonparser.ValueType) *int {
	var raw string
	switch dt {
	case jsonparser.Number:
		raw = string(v)
	case jsonparser.String:
		s, err := jsonparser.ParseString(v)
		if err != nil {
			return nil
		}
		raw = strings.TrimSpace(s)
	default:
		return nil
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return &n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		n := int(f)
		return &n
	}
	return nil
}
