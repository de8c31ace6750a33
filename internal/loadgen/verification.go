package loadgen

import (
	"context"
	"fmt"
	"net/url"

	"github.com/okian/tabletriage/internal/adapters/repository"
	"github.com/okian/tabletriage/pkg/logger"
)

// verifyReview fetches the lowest-confidence entries and checks that ranks
// are consecutive from 1 and confidences never decrease.
func verifyReview(ctx context.Context, cfg Config, stats *Stats) error {
	client := newHTTPClient(cfg.Timeout)
	var entries []repository.Entry
	endpoint := fmt.Sprintf("%s/review?limit=%d", cfg.BaseURL, cfg.ReviewLimit)
	if err := client.getJSON(ctx, endpoint, &entries); err != nil {
		return fmt.Errorf("fetch review queue: %w", err)
	}
	stats.ReviewEntries = len(entries)
	if err := checkReviewOrder(entries); err != nil {
		return err
	}

	if len(entries) > 0 {
		e := entries[0]
		var got repository.Entry
		endpoint = fmt.Sprintf("%s/review/%s/%d", cfg.BaseURL, url.PathEscape(e.Source), e.TableIndex)
		if err := client.getJSON(ctx, endpoint, &got); err != nil {
			return fmt.Errorf("fetch review entry %s: %w", e.ID, err)
		}
		if got.ID != e.ID || got.Rank != e.Rank {
			return fmt.Errorf("%w: entry %s has rank %d, list says %d", ErrReviewOrder, e.ID, got.Rank, e.Rank)
		}
		logger.Get().Info(ctx, "lowest confidence table",
			logger.String("id", e.ID),
			logger.String("tableType", string(e.TableType)),
			logger.Float64("confidence", e.Confidence))
	}
	return nil
}

func checkReviewOrder(entries []repository.Entry) error {
	for i, e := range entries {
		if e.Rank != i+1 {
			return fmt.Errorf("%w: entry %d has rank %d", ErrReviewOrder, i, e.Rank)
		}
		if i > 0 && e.Confidence < entries[i-1].Confidence {
			return fmt.Errorf("%w: %s (%.3f) after %s (%.3f)", ErrReviewOrder,
				e.ID, e.Confidence, entries[i-1].ID, entries[i-1].Confidence)
		}
	}
	return nil
}
