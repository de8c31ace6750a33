package surgeon

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/okian/tabletriage/internal/domain/model"
)

// ErrParseInput is returned for an unreadable or malformed input document.
var ErrParseInput = errors.New("parse input")

// ParseInput decodes a legacy document. Every top-level key is one dossier,
// in document order, and row keys keep their order.
func ParseInput(r io.Reader) ([]model.Dossier, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: read: %w", ErrParseInput, err)
	}
	ds, err := model.ParseDossiers(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParseInput, err)
	}
	return ds, nil
}

// WriteResult writes res as an indented preproc document.
func WriteResult(w io.Writer, res model.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("write result %s: %w", res.Source, err)
	}
	return nil
}
