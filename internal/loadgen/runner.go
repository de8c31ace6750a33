package loadgen

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/okian/tabletriage/pkg/logger"
)

// Run generates synthetic dossiers, submits them to a running API and
// verifies the review queue it builds.
func Run(ctx context.Context, cfg Config) (*Stats, error) {
	if cfg.Dossiers < 1 || cfg.Tables < 0 || cfg.ReviewLimit < 1 {
		return nil, fmt.Errorf("%w: dossiers=%d tables=%d review-limit=%d",
			ErrInvalidInput, cfg.Dossiers, cfg.Tables, cfg.ReviewLimit)
	}
	log := logger.Get().Named("loadgen")
	stats := &Stats{StartTime: time.Now()}

	log.Info(ctx, "starting load run",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("dossiers", cfg.Dossiers),
		logger.Int("tables", cfg.Tables),
		logger.Int("batchSize", cfg.BatchSize),
		logger.Int("workers", cfg.Workers),
		logger.String("timeout", cfg.Timeout.String()))

	if err := checkServiceHealth(ctx, cfg); err != nil {
		return nil, err
	}

	ds, tables := generateDossiers(cfg, rand.New(rand.NewSource(cfg.Seed)))
	stats.DossiersGenerated = len(ds)
	stats.TablesGenerated = tables

	submitBatches(ctx, cfg, batches(cfg, ds), stats)
	if err := ctx.Err(); err != nil {
		return stats, fmt.Errorf("load run interrupted: %w", err)
	}

	if err := verifyReview(ctx, cfg, stats); err != nil {
		return stats, fmt.Errorf("review verification failed: %w", err)
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)
	return stats, nil
}

func checkServiceHealth(ctx context.Context, cfg Config) error {
	resp, err := newHTTPClient(cfg.Timeout).Get(ctx, cfg.BaseURL+"/healthz")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}
	_, _ = readResponseBody(resp)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnhealthy, resp.StatusCode)
	}
	return nil
}

func displayFinalStats(ctx context.Context, stats *Stats) {
	var successRate, dossiersPerSecond float64
	if stats.BatchesSubmitted > 0 {
		successRate = float64(stats.BatchesSuccessful) / float64(stats.BatchesSubmitted) * PercentageMultiplier
	}
	if stats.Duration > 0 {
		dossiersPerSecond = float64(stats.DossiersReturned) / stats.Duration.Seconds()
	}
	logger.Get().Info(ctx, "final statistics",
		logger.Int("dossiersGenerated", stats.DossiersGenerated),
		logger.Int("tablesGenerated", stats.TablesGenerated),
		logger.Int("batchesSubmitted", stats.BatchesSubmitted),
		logger.Int("batchesRejected", stats.BatchesRejected),
		logger.Int("batchesFailed", stats.BatchesFailed),
		logger.Int("tablesProcessed", stats.TablesProcessed),
		logger.Int("tablesSkipped", stats.TablesSkipped),
		logger.Int("reviewEntries", stats.ReviewEntries),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("successRate", successRate),
		logger.Float64("dossiersPerSecond", dossiersPerSecond))
}
