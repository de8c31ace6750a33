package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/tabletriage/internal/domain/model"
	"github.com/okian/tabletriage/pkg/logger"
)

// HTTPClient wraps http.Client with a per-request timeout.
type HTTPClient struct {
	client *http.Client
}

func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{client: &http.Client{Timeout: timeout}}
}

// Get performs a GET request.
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return c.client.Do(req)
}

// Post performs a POST request with a JSON body.
func (c *HTTPClient) Post(ctx context.Context, url string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.client.Do(req)
}

// getJSON fetches url and decodes a 200 response into v.
func (c *HTTPClient) getJSON(ctx context.Context, url string, v any) error {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return err
	}
	body, err := readResponseBody(resp)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d: %s", url, resp.StatusCode, bytes.TrimSpace(body))
	}
	return json.Unmarshal(body, v)
}

func readResponseBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

type batchOutcome int

const (
	batchOK batchOutcome = iota
	batchRejected
	batchFailed
)

// submitBatches posts every batch through a pool of cfg.Workers submitters.
func submitBatches(ctx context.Context, cfg Config, all []map[string]wireDossier, stats *Stats) {
	log := logger.Get().Named("loadgen")
	client := newHTTPClient(cfg.Timeout)
	url := cfg.BaseURL + "/dossiers"

	var (
		submitted, ok, rejected, failed atomic.Int64
		returned, processed, skipped    atomic.Int64
	)

	work := make(chan map[string]wireDossier, cfg.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup
	for range max(cfg.Workers, 1) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for b := range work {
				if ctx.Err() != nil {
					continue
				}
				results, outcome, err := submitBatch(ctx, client, url, b)
				submitted.Add(1)
				switch outcome {
				case batchOK:
					ok.Add(1)
				case batchRejected:
					rejected.Add(1)
				default:
					failed.Add(1)
					log.Warn(ctx, "batch failed", logger.Error(err))
				}
				returned.Add(int64(len(results)))
				for _, r := range results {
					processed.Add(int64(r.ProcessedCount))
					skipped.Add(int64(r.SkippedCount))
				}
			}
		}()
	}

	go func() {
		defer close(work)
		for _, b := range all {
			select {
			case <-ctx.Done():
				return
			case work <- b:
			}
		}
	}()
	wg.Wait()

	stats.BatchesSubmitted = int(submitted.Load())
	stats.BatchesSuccessful = int(ok.Load())
	stats.BatchesRejected = int(rejected.Load())
	stats.BatchesFailed = int(failed.Load())
	stats.DossiersReturned = int(returned.Load())
	stats.TablesProcessed = int(processed.Load())
	stats.TablesSkipped = int(skipped.Load())

	log.Info(ctx, "batch submission completed",
		logger.Int("successful", stats.BatchesSuccessful),
		logger.Int("rejected", stats.BatchesRejected),
		logger.Int("failed", stats.BatchesFailed))
}

func submitBatch(ctx context.Context, client *HTTPClient, url string, b map[string]wireDossier) ([]model.Result, batchOutcome, error) {
	resp, err := client.Post(ctx, url, b)
	if err != nil {
		return nil, batchFailed, err
	}
	body, err := readResponseBody(resp)
	if err != nil {
		return nil, batchFailed, err
	}
	switch resp.StatusCode {
	case http.StatusOK:
		var results []model.Result
		if err := json.Unmarshal(body, &results); err != nil {
			return nil, batchFailed, fmt.Errorf("decode results: %w", err)
		}
		if len(results) != len(b) {
			return results, batchFailed, fmt.Errorf("%w: sent %d dossiers, got %d results", ErrMismatch, len(b), len(results))
		}
		return results, batchOK, nil
	case http.StatusTooManyRequests:
		return nil, batchRejected, nil
	default:
		return nil, batchFailed, fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
}
