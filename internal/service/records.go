package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"opmelink-api/internal/model"
	"opmelink-api/internal/repository"
	"opmelink-api/internal/source"

	"go.uber.org/zap"
)

// CaseFetcher is the upstream side of the record store.
// *source.Fetcher implements it.
type CaseFetcher interface {
	Fetch(ctx context.Context, queries []source.SourceQuery) (source.FetchResult, error)
}

// FetchFunc fetches one case from upstream. It returns an error matching
// model.ErrNotFound when no source has the case.
type FetchFunc func(ctx context.Context, caseID int64) (*model.CaseRecord, error)

// RecordService is the local, idempotent store of case records.
type RecordService struct {
	repo   repository.CaseRecordRepository
	logger *zap.Logger
}

// NewRecordService creates a new record service.
func NewRecordService(repo repository.CaseRecordRepository, logger *zap.Logger) *RecordService {
	return &RecordService{repo: repo, logger: logger.Named("records")}
}

// UpsertAll stores records under ownerID, replacing existing rows with the same case id.
// Running it twice with the same input leaves the same state.
func (s *RecordService) UpsertAll(ctx context.Context, ownerID string, records []model.CaseRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	owned := make([]model.CaseRecord, len(records))
	for i, r := range records {
		r.OwnerID = ownerID
		owned[i] = r
	}
	return s.repo.UpsertCaseRecords(ctx, ownerID, owned)
}

// Get returns a stored record or a NotFoundError.
func (s *RecordService) Get(ctx context.Context, ownerID string, caseID int64) (*model.CaseRecord, error) {
	return s.repo.GetCaseRecord(ctx, ownerID, caseID)
}

// Query lists stored records whose source timestamp is in r, optionally for one business unit.
func (s *RecordService) Query(ctx context.Context, ownerID string, r model.DateRange, businessUnit string) ([]model.CaseRecord, error) {
	return s.repo.QueryCaseRecords(ctx, ownerID, r, businessUnit)
}

// GetOrFetch serves the record from the store, falling back to fetch on a miss.
// A fetched record is stored before being returned. Absence upstream is not
// remembered, so a later call fetches again.
func (s *RecordService) GetOrFetch(ctx context.Context, ownerID string, caseID int64, fetch FetchFunc) (*model.CaseRecord, error) {
	rec, err := s.repo.GetCaseRecord(ctx, ownerID, caseID)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, model.ErrNotFound) || fetch == nil {
		return nil, err
	}

	fetched, err := fetch(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if fetched == nil {
		return nil, &model.NotFoundError{Kind: model.KindCase, Key: fmt.Sprint(caseID)}
	}

	fetched.OwnerID = ownerID
	if _, err := s.repo.UpsertCaseRecords(ctx, ownerID, []model.CaseRecord{*fetched}); err != nil {
		return nil, err
	}

	s.logger.Info("case fetched on demand", zap.String("owner_id", ownerID), zap.Int64("case_id", caseID))
	return fetched, nil
}

// LookupConfig describes the window scanned by LookupFetchFunc.
type LookupConfig struct {
	BusinessUnits []string
	CatchAllGroup string
	Window        time.Duration
	Now           func() time.Time
}

// LookupFetchFunc builds the interactive single-case fetch: it reads every
// configured source over the lookup window and picks caseID out of the
// reconciled batch.
func LookupFetchFunc(fetcher CaseFetcher, cfg LookupConfig) FetchFunc {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Window <= 0 {
		cfg.Window = 7 * 24 * time.Hour
	}

	return func(ctx context.Context, caseID int64) (*model.CaseRecord, error) {
		now := cfg.Now()
		queries := source.SyncQueries(
			source.FormatDate(now.Add(-cfg.Window)),
			source.FormatDate(now),
			cfg.BusinessUnits,
			cfg.CatchAllGroup,
		)

		result, err := fetcher.Fetch(ctx, queries)
		if err != nil {
			return nil, err
		}

		for _, rec := range source.Reconcile(result.Records()) {
			if rec.CaseID == caseID {
				r := rec
				return &r, nil
			}
		}
		return nil, &model.NotFoundError{Kind: model.KindCase, Key: fmt.Sprint(caseID)}
	}
}
