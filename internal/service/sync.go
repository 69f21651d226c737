package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"opmelink-api/internal/metrics"
	"opmelink-api/internal/model"
	"opmelink-api/internal/repository"
	"opmelink-api/internal/source"
	"opmelink-api/pkg/uid"

	"go.uber.org/zap"
)

// SyncConfig lists the upstream partitions a sync reads.
type SyncConfig struct {
	BusinessUnits []string
	CatchAllGroup string
}

// SyncResult is the outcome of a completed sync.
type SyncResult struct {
	RunID    string                `json:"run_id"`
	Synced   int                   `json:"synced_count"`
	Failures []model.SourceFailure `json:"failures"`
}

// SyncService pulls case records from every source, reconciles them and
// upserts the canonical batch.
type SyncService struct {
	fetcher CaseFetcher
	records *RecordService
	runs    repository.SyncRunRepository
	config  SyncConfig
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewSyncService creates a sync service. runs may be nil.
func NewSyncService(fetcher CaseFetcher, records *RecordService, runs repository.SyncRunRepository, cfg SyncConfig, m *metrics.Metrics, logger *zap.Logger) *SyncService {
	return &SyncService{
		fetcher: fetcher,
		records: records,
		runs:    runs,
		config:  cfg,
		metrics: m,
		logger:  logger.Named("sync"),
	}
}

// Sync reads [startDate, endDate] from every configured source and stores the
// reconciled records under ownerID. Individual source failures are reported in
// the result. If every source fails nothing is stored and the
// *model.TotalFetchFailure is returned.
func (s *SyncService) Sync(ctx context.Context, ownerID, startDate, endDate string) (*SyncResult, error) {
	if _, _, err := source.ParseDateRange(startDate, endDate); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidInput, err)
	}

	run := &model.SyncRun{
		ID:        uid.New(),
		OwnerID:   ownerID,
		StartDate: startDate,
		EndDate:   endDate,
		StartedAt: time.Now().UTC(),
	}

	queries := source.SyncQueries(startDate, endDate, s.config.BusinessUnits, s.config.CatchAllGroup)
	fetched, err := s.fetcher.Fetch(ctx, queries)
	run.Failures = failureSources(fetched.Failures)
	if err != nil {
		s.finish(run, model.SyncStatusFailed, err)
		return nil, err
	}

	records := source.Reconcile(fetched.Records())
	synced, err := s.records.UpsertAll(ctx, ownerID, records)
	if err != nil {
		s.finish(run, model.SyncStatusFailed, err)
		return nil, err
	}

	run.Synced = synced
	status := model.SyncStatusSuccess
	if len(fetched.Failures) > 0 {
		status = model.SyncStatusPartial
	}
	s.finish(run, status, nil)

	failures := fetched.Failures
	if failures == nil {
		failures = []model.SourceFailure{}
	}
	return &SyncResult{RunID: run.ID, Synced: synced, Failures: failures}, nil
}

// FetchUnit reads one business unit for the interactive lookup. The records
// are returned as decoded, without touching the store.
func (s *SyncService) FetchUnit(ctx context.Context, startDate, endDate, businessUnit string) ([]model.CaseRecord, error) {
	if _, _, err := source.ParseDateRange(startDate, endDate); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidInput, err)
	}
	if businessUnit == "" {
		return nil, fmt.Errorf("%w: business_unit is required", model.ErrInvalidInput)
	}

	fetched, err := s.fetcher.Fetch(ctx, []source.SourceQuery{source.UnitQuery(startDate, endDate, businessUnit)})
	if err != nil {
		return nil, err
	}
	return fetched.Records(), nil
}

// ListRuns returns the most recent sync runs, newest first.
func (s *SyncService) ListRuns(ctx context.Context, limit int) ([]model.SyncRun, error) {
	if s.runs == nil {
		return []model.SyncRun{}, nil
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.runs.ListSyncRuns(ctx, limit)
}

func (s *SyncService) finish(run *model.SyncRun, status string, err error) {
	run.Status = status
	run.FinishedAt = time.Now().UTC()
	if err != nil {
		run.Error = err.Error()
	}

	s.metrics.SyncRun(status, run.Synced)

	fields := []zap.Field{
		zap.String("run_id", run.ID),
		zap.String("owner_id", run.OwnerID),
		zap.String("start_date", run.StartDate),
		zap.String("end_date", run.EndDate),
		zap.String("status", status),
		zap.Int("synced", run.Synced),
		zap.Strings("failed_sources", run.Failures),
		zap.Duration("elapsed", run.FinishedAt.Sub(run.StartedAt)),
	}
	var total *model.TotalFetchFailure
	switch {
	case errors.As(err, &total):
		s.logger.Error("sync failed: no source answered", fields...)
	case err != nil:
		s.logger.Error("sync failed", append(fields, zap.Error(err))...)
	default:
		s.logger.Info("sync finished", fields...)
	}

	if s.runs == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.runs.InsertSyncRun(ctx, run); err != nil {
		s.logger.Warn("sync run not recorded", zap.String("run_id", run.ID), zap.Error(err))
	}
}

func failureSources(failures []model.SourceFailure) []string {
	if len(failures) == 0 {
		return nil
	}
	out := make([]string, len(failures))
	for i, f := range failures {
		out[i] = f.Source
	}
	return out
}
