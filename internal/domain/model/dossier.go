package model

import (
	"errors"
	"fmt"

	"github.com/buger/jsonparser"
)

// Dossier is one source document's full raw table set.
type Dossier struct {
	Source   string
	Filename string
	Tables   []RawTable
}

// Name identifies the dossier in logs and learning events.
func (d Dossier) Name() string {
	if d.Filename != "" {
		return d.Filename
	}
	if d.Source != "" {
		return d.Source
	}
	return "unknown"
}

// Result is the "preproc" document written for one dossier.
type Result struct {
	Source         string            `json:"source"`
	Filename       *string           `json:"filename"`
	ProcessedCount int               `json:"processed_count"`
	SkippedCount   int               `json:"skipped_count"`
	Processed      []NormalizedTable `json:"processed"`
	Skipped        []SkipRecord      `json:"skipped"`
}

// ParseDossiers decodes a legacy document keyed by document identifier.
// Every top-level key becomes one dossier, in document order.
func ParseDossiers(data []byte) ([]Dossier, error) {
	var out []Dossier
	err := jsonparser.ObjectEach(data, func(key, value []byte, dt jsonparser.ValueType, _ int) error {
		source, err := jsonparser.ParseString(key)
		if err != nil {
			return fmt.Errorf("decode source key: %w", err)
		}
		if dt != jsonparser.Object {
			return fmt.Errorf("dossier %q: expected object", source)
		}
		d := Dossier{Source: source}
		if fn, err := jsonparser.GetString(value, "filename"); err == nil {
			d.Filename = fn
		}
		var tableErr error
		_, err = jsonparser.ArrayEach(value, func(tv []byte, tdt jsonparser.ValueType, _ int, _ error) {
			if tableErr != nil {
				return
			}
			var t RawTable
			if tdt == jsonparser.Object {
				if err := t.UnmarshalJSON(tv); err != nil {
					tableErr = fmt.Errorf("dossier %q table %d: %w", source, len(d.Tables), err)
					return
				}
			}
			d.Tables = append(d.Tables, t)
		}, "tables")
		if err != nil && !errors.Is(err, jsonparser.KeyPathNotFoundError) {
			return fmt.Errorf("dossier %q: decode tables: %w", source, err)
		}
		if tableErr != nil {
			return tableErr
		}
		out = append(out, d)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
