// Package repository holds the review queue: emitted tables ordered by
// confidence so the weakest normalizations are audited first.
package repository

import (
	"context"
	"strconv"

	"github.com/okian/tabletriage/internal/domain/model"
)

// Item is one emitted table as tracked for review.
type Item struct {
	ID          string          `json:"id"`
	Source      string          `json:"source"`
	TableIndex  int             `json:"table_index"`
	PageNumber  *int            `json:"page_number"`
	TableType   model.TableType `json:"table_type"`
	Headers     []string        `json:"headers"`
	ContentHash string          `json:"content_hash"`
	Confidence  float64         `json:"confidence"`
}

// Entry is an Item with its 1-based position in review order.
type Entry struct {
	Rank int `json:"rank"`
	Item
}

// ItemID identifies a table by dossier and index.
func ItemID(source string, tableIndex int) string {
	return source + "#" + strconv.Itoa(tableIndex)
}

// NewItem builds the review item of a processed table.
func NewItem(source string, t model.NormalizedTable) Item {
	return Item{
		ID:          ItemID(source, t.TableIndex),
		Source:      source,
		TableIndex:  t.TableIndex,
		PageNumber:  t.PageNumber,
		TableType:   t.TableType,
		Headers:     append([]string(nil), t.Headers...),
		ContentHash: t.ContentHash,
		Confidence:  t.Confidence,
	}
}

// Store keeps items ordered by confidence ascending, then id ascending.
type Store interface {
	// Put inserts or replaces the item with the same id.
	Put(ctx context.Context, it Item) error

	// Lowest returns the first n entries in review order.
	Lowest(ctx context.Context, n int) ([]Entry, error)

	// Position returns the entry for id or ErrNotFound.
	Position(ctx context.Context, id string) (Entry, error)

	// Count returns the number of tracked items.
	Count(ctx context.Context) int
}
