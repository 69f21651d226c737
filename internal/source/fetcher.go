// Package source reads case records from the upstream CPS list endpoints and
// reconciles the per-source results into one canonical batch.
package source

import (
	"context"
	"fmt"
	"time"

	"opmelink-api/internal/metrics"
	"opmelink-api/internal/model"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const listPath = "/cps/list-cps"

// maxErrorBody caps how much of an upstream error body ends up in a failure.
const maxErrorBody = 256

// FetcherConfig configures the upstream client.
type FetcherConfig struct {
	BaseURL     string
	Timeout     time.Duration // per source
	RetryCount  int
	Concurrency int
}

// Fetcher issues independent, concurrently executed source queries.
type Fetcher struct {
	client      *resty.Client
	timeout     time.Duration
	concurrency int
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

// FetchResult holds per-source batches in the order the sources were supplied.
type FetchResult struct {
	Batches  [][]model.CaseRecord
	Failures []model.SourceFailure
}

// Records flattens the successful batches, preserving source order.
func (r FetchResult) Records() []model.CaseRecord {
	n := 0
	for _, b := range r.Batches {
		n += len(b)
	}
	out := make([]model.CaseRecord, 0, n)
	for _, b := range r.Batches {
		out = append(out, b...)
	}
	return out
}

// NewFetcher creates a Fetcher.
func NewFetcher(cfg FetcherConfig, m *metrics.Metrics, logger *zap.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Accept", "application/json")

	return &Fetcher{
		client:      client,
		timeout:     cfg.Timeout,
		concurrency: cfg.Concurrency,
		metrics:     m,
		logger:      logger.Named("fetcher"),
	}
}

// Fetch runs every query in parallel and waits for all of them to settle.
// A failing source never cancels the others. Only when every source fails is an
// error (*model.TotalFetchFailure) returned.
func (f *Fetcher) Fetch(ctx context.Context, queries []SourceQuery) (FetchResult, error) {
	batches := make([][]model.CaseRecord, len(queries))
	errs := make([]error, len(queries))

	var g errgroup.Group
	g.SetLimit(f.concurrency)
	for i, q := range queries {
		g.Go(func() error {
			batches[i], errs[i] = f.FetchOne(ctx, q)
			return nil
		})
	}
	_ = g.Wait()

	result := FetchResult{Batches: make([][]model.CaseRecord, 0, len(queries))}
	for i, q := range queries {
		if errs[i] != nil {
			result.Failures = append(result.Failures, model.SourceFailure{Source: q.ID, Err: errs[i]})
			continue
		}
		result.Batches = append(result.Batches, batches[i])
	}

	if len(queries) > 0 && len(result.Failures) == len(queries) {
		return result, &model.TotalFetchFailure{Failures: result.Failures}
	}
	return result, nil
}

// FetchOne runs a single query under its own timeout.
func (f *Fetcher) FetchOne(ctx context.Context, q SourceQuery) ([]model.CaseRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	start := time.Now()
	records, err := f.get(ctx, q)
	f.metrics.SourceFetched(q.ID, time.Since(start), err)

	if err != nil {
		f.logger.Warn("source fetch failed",
			zap.String("source", q.ID),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return nil, err
	}
	return records, nil
}

func (f *Fetcher) get(ctx context.Context, q SourceQuery) ([]model.CaseRecord, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParams(q.params()).
		Get(listPath)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if !resp.IsSuccess() {
		body := resp.String()
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return nil, fmt.Errorf("upstream status %d: %s", resp.StatusCode(), body)
	}

	records, skipped, err := decodeRecords(resp.Body())
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		f.logger.Warn("skipped upstream entries without a case id",
			zap.String("source", q.ID),
			zap.Int("skipped", skipped),
		)
	}

	f.logger.Debug("source fetched",
		zap.String("source", q.ID),
		zap.Int("records", len(records)),
	)
	return records, nil
}
