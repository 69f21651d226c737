package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"opmelink-api/internal/model"
	"opmelink-api/internal/source"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// upstreamByUnit answers list-cps keyed by business_unit, or type_group for the catch-all.
func upstreamByUnit(t *testing.T, bodies map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Query().Get("business_unit")
		if key == "" {
			key = r.URL.Query().Get("type_group")
		}
		body, ok := bodies[key]
		if !ok {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

type memoryRuns struct {
	runs []model.SyncRun
}

func (m *memoryRuns) InsertSyncRun(_ context.Context, run *model.SyncRun) error {
	m.runs = append(m.runs, *run)
	return nil
}

func (m *memoryRuns) ListSyncRuns(_ context.Context, limit int) ([]model.SyncRun, error) {
	if limit > len(m.runs) {
		limit = len(m.runs)
	}
	return m.runs[:limit], nil
}

func (m *memoryRuns) Close() error { return nil }

func newTestSync(t *testing.T, url string, units []string, catchAll string) (*SyncService, *RecordService, *memoryRuns) {
	t.Helper()
	fetcher := source.NewFetcher(source.FetcherConfig{BaseURL: url, Timeout: 2 * time.Second}, nil, zap.NewNop())
	records := NewRecordService(newTestStore(t), zap.NewNop())
	runs := &memoryRuns{}
	svc := NewSyncService(fetcher, records, runs, SyncConfig{BusinessUnits: units, CatchAllGroup: catchAll}, nil, zap.NewNop())
	return svc, records, runs
}

func TestSyncService_PartialFetchTolerance(t *testing.T) {
	srv := upstreamByUnit(t, map[string]string{
		"43": `[{"CPS": 1, "PATIENT": "Ana", "AGREEMENT": "Unimed", "UNIDADENEGOCIO": "43", "CREATED_AT": "2024-05-01 10:00:00"}]`,
		"47": `[{"CPS": "2", "PATIENT": "Bia", "AGREEMENT": "SUS", "UNIDADENEGOCIO": 47, "CREATED_AT": "2024-05-01T11:00:00"}]`,
	})
	svc, records, runs := newTestSync(t, srv.URL, []string{"43", "47", "48"}, "")
	ctx := context.Background()

	res, err := svc.Sync(ctx, "o1", "2024-05-01", "2024-05-01")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Synced)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "unit-48", res.Failures[0].Source)

	stored, err := records.Query(ctx, "o1", model.DateRange{}, "")
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "Ana", stored[0].PatientName)
	assert.Equal(t, "47", stored[1].BusinessUnit)

	require.Len(t, runs.runs, 1)
	assert.Equal(t, model.SyncStatusPartial, runs.runs[0].Status)
	assert.Equal(t, []string{"unit-48"}, runs.runs[0].Failures)
}

func TestSyncService_LaterSourceWins(t *testing.T) {
	srv := upstreamByUnit(t, map[string]string{
		"43":         `[{"CPS": 1, "PATIENT": "From unit", "AGREEMENT": "Unimed", "UNIDADENEGOCIO": "43"}]`,
		"ENDOSCOPIA": `[{"CPS": 1, "PATIENT": "From group", "AGREEMENT": "Amil", "UNIDADENEGOCIO": "99"}]`,
	})
	svc, records, _ := newTestSync(t, srv.URL, []string{"43"}, "ENDOSCOPIA")
	ctx := context.Background()

	res, err := svc.Sync(ctx, "o1", "2024-05-01", "2024-05-02")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Synced)
	assert.Empty(t, res.Failures)

	rec, err := records.Get(ctx, "o1", 1)
	require.NoError(t, err)
	assert.Equal(t, "From group", rec.PatientName)
	assert.Equal(t, "Amil", rec.InsurancePlan)
}

func TestSyncService_IsIdempotent(t *testing.T) {
	srv := upstreamByUnit(t, map[string]string{
		"43": `[{"CPS": 1, "PATIENT": "Ana", "AGREEMENT": "Unimed", "CREATED_AT": "2024-05-01 10:00:00"},
		        {"CPS": 2, "PATIENT": "Bia", "AGREEMENT": "SUS", "CREATED_AT": "2024-05-01 11:00:00"}]`,
	})
	svc, records, _ := newTestSync(t, srv.URL, []string{"43"}, "")
	ctx := context.Background()

	_, err := svc.Sync(ctx, "o1", "2024-05-01", "2024-05-01")
	require.NoError(t, err)
	first, err := records.Query(ctx, "o1", model.DateRange{}, "")
	require.NoError(t, err)

	_, err = svc.Sync(ctx, "o1", "2024-05-01", "2024-05-01")
	require.NoError(t, err)
	second, err := records.Query(ctx, "o1", model.DateRange{}, "")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestSyncService_TotalFailureStoresNothing(t *testing.T) {
	srv := upstreamByUnit(t, map[string]string{})
	svc, records, runs := newTestSync(t, srv.URL, []string{"43", "47"}, "ENDOSCOPIA")
	ctx := context.Background()

	_, err := svc.Sync(ctx, "o1", "2024-05-01", "2024-05-01")
	var total *model.TotalFetchFailure
	require.True(t, errors.As(err, &total))
	assert.Len(t, total.Failures, 3)

	stored, err := records.Query(ctx, "o1", model.DateRange{}, "")
	require.NoError(t, err)
	assert.Empty(t, stored)

	require.Len(t, runs.runs, 1)
	assert.Equal(t, model.SyncStatusFailed, runs.runs[0].Status)
	assert.NotEmpty(t, runs.runs[0].Error)
}

func TestSyncService_RejectsBadDates(t *testing.T) {
	svc, _, runs := newTestSync(t, "http://127.0.0.1:0", []string{"43"}, "")

	_, err := svc.Sync(context.Background(), "o1", "2024-05-02", "2024-05-01")
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	_, err = svc.Sync(context.Background(), "o1", "yesterday", "2024-05-01")
	assert.ErrorIs(t, err, model.ErrInvalidInput)
	assert.Empty(t, runs.runs)
}

func TestSyncService_FetchUnit(t *testing.T) {
	srv := upstreamByUnit(t, map[string]string{
		"47": `[{"CPS": 9, "PATIENT": "Caio", "AGREEMENT": "SUS"}]`,
	})
	svc, records, _ := newTestSync(t, srv.URL, []string{"43"}, "")
	ctx := context.Background()

	got, err := svc.FetchUnit(ctx, "2024-05-01", "2024-05-01", "47")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(9), got[0].CaseID)

	_, err = records.Get(ctx, "o1", 9)
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = svc.FetchUnit(ctx, "2024-05-01", "2024-05-01", "48")
	assert.IsType(t, &model.TotalFetchFailure{}, err)

	_, err = svc.FetchUnit(ctx, "2024-05-01", "2024-05-01", "")
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestSyncService_ListRunsWithoutHistory(t *testing.T) {
	svc := NewSyncService(nil, nil, nil, SyncConfig{}, nil, zap.NewNop())

	runs, err := svc.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}
