package repository

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"opmelink-api/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_UpsertCaseRecordsIsIdempotent(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()
	ts := time.Date(2024, 5, 10, 14, 30, 0, 0, time.UTC)

	records := []model.CaseRecord{
		{OwnerID: "o1", CaseID: 1, PatientName: "Ana", InsurancePlan: "UNIMED", BusinessUnit: "43", SourceTimestamp: ts},
		{OwnerID: "o1", CaseID: 2, PatientName: "Bruno", InsurancePlan: "SUS", BusinessUnit: "47", SourceTimestamp: ts.Add(time.Hour)},
	}

	n, err := store.UpsertCaseRecords(ctx, "o1", records)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	first, err := store.QueryCaseRecords(ctx, "o1", model.DateRange{}, "")
	require.NoError(t, err)

	_, err = store.UpsertCaseRecords(ctx, "o1", records)
	require.NoError(t, err)

	second, err := store.QueryCaseRecords(ctx, "o1", model.DateRange{}, "")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, second, 2)
}

func TestSQLiteStore_UpsertReplacesWholeRecord(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := store.UpsertCaseRecords(ctx, "o1", []model.CaseRecord{
		{CaseID: 7, PatientName: "Old", ProfessionalName: "Dr. A", InsurancePlan: "UNIMED"},
	})
	require.NoError(t, err)

	_, err = store.UpsertCaseRecords(ctx, "o1", []model.CaseRecord{
		{CaseID: 7, PatientName: "New", InsurancePlan: "SUS"},
	})
	require.NoError(t, err)

	rec, err := store.GetCaseRecord(ctx, "o1", 7)
	require.NoError(t, err)
	assert.Equal(t, "New", rec.PatientName)
	assert.Empty(t, rec.ProfessionalName)
	assert.Equal(t, "SUS", rec.InsurancePlan)
	assert.Equal(t, "o1", rec.OwnerID)
}

func TestSQLiteStore_GetCaseRecordNotFound(t *testing.T) {
	store := newTestSQLiteStore(t)

	_, err := store.GetCaseRecord(context.Background(), "o1", 404)
	assert.ErrorIs(t, err, model.ErrNotFound)

	var nf *model.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, model.KindCase, nf.Kind)
}

func TestSQLiteStore_OwnersAreIsolated(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := store.UpsertCaseRecords(ctx, "o1", []model.CaseRecord{{CaseID: 1, PatientName: "Ana"}})
	require.NoError(t, err)

	_, err = store.GetCaseRecord(ctx, "o2", 1)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestSQLiteStore_QueryCaseRecordsFilters(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()
	day := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)

	_, err := store.UpsertCaseRecords(ctx, "o1", []model.CaseRecord{
		{CaseID: 1, BusinessUnit: "43", SourceTimestamp: day.Add(-time.Hour)},
		{CaseID: 2, BusinessUnit: "43", SourceTimestamp: day.Add(2 * time.Hour)},
		{CaseID: 3, BusinessUnit: "47", SourceTimestamp: day.Add(3 * time.Hour)},
		{CaseID: 4, BusinessUnit: "43", SourceTimestamp: day.Add(24 * time.Hour)},
	})
	require.NoError(t, err)

	got, err := store.QueryCaseRecords(ctx, "o1", model.DateRange{Start: day, End: day.Add(24 * time.Hour)}, "")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(2), got[0].CaseID)
	assert.Equal(t, int64(3), got[1].CaseID)

	got, err = store.QueryCaseRecords(ctx, "o1", model.DateRange{Start: day}, "43")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(2), got[0].CaseID)
	assert.Equal(t, int64(4), got[1].CaseID)
	assert.True(t, got[0].SourceTimestamp.Equal(day.Add(2*time.Hour)))
}

func TestSQLiteStore_GetCaseRecords(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := store.UpsertCaseRecords(ctx, "o1", []model.CaseRecord{{CaseID: 1}, {CaseID: 2}})
	require.NoError(t, err)

	got, err := store.GetCaseRecords(ctx, "o1", []int64{1, 2, 3})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Contains(t, got, int64(1))
	assert.NotContains(t, got, int64(3))

	empty, err := store.GetCaseRecords(ctx, "o1", nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSQLiteStore_LinkInsertConflictAndIncrement(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()
	now := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

	link := model.LinkedImplant{OwnerID: "o1", CaseID: 1, Barcode: "789", Quantity: 1, FirstLinkedAt: now, LastLinkedAt: now}
	require.NoError(t, store.InsertLink(ctx, link))

	err := store.InsertLink(ctx, link)
	assert.ErrorIs(t, err, model.ErrConcurrencyConflict)

	q, err := store.IncrementLink(ctx, "o1", 1, "789", now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, q)

	got, err := store.GetLink(ctx, "o1", 1, "789")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Quantity)
	assert.True(t, got.FirstLinkedAt.Equal(now))
	assert.True(t, got.LastLinkedAt.Equal(now.Add(time.Minute)))

	_, err = store.IncrementLink(ctx, "o1", 1, "missing", now)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestSQLiteStore_ConcurrentIncrementsAreNotLost(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.InsertLink(ctx, model.LinkedImplant{
		OwnerID: "o1", CaseID: 9, Barcode: "X", Quantity: 1, FirstLinkedAt: now, LastLinkedAt: now,
	}))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.IncrementLink(ctx, "o1", 9, "X", time.Now().UTC())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := store.GetLink(ctx, "o1", 9, "X")
	require.NoError(t, err)
	assert.Equal(t, 21, got.Quantity)
}

func TestSQLiteStore_ListLinks(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()
	day := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)

	for _, l := range []model.LinkedImplant{
		{OwnerID: "o1", CaseID: 1, Barcode: "A", Quantity: 1, FirstLinkedAt: day.Add(time.Hour)},
		{OwnerID: "o1", CaseID: 1, Barcode: "B", Quantity: 1, FirstLinkedAt: day.Add(2 * time.Hour)},
		{OwnerID: "o1", CaseID: 2, Barcode: "A", Quantity: 1, FirstLinkedAt: day.Add(-time.Hour)},
	} {
		l.LastLinkedAt = l.FirstLinkedAt
		require.NoError(t, store.InsertLink(ctx, l))
	}

	byCase, err := store.ListLinksByCase(ctx, "o1", 1)
	require.NoError(t, err)
	require.Len(t, byCase, 2)
	assert.Equal(t, "A", byCase[0].Barcode)

	inDay, err := store.ListLinksFirstLinkedBetween(ctx, "o1", day, day.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Len(t, inDay, 2)
	for _, l := range inDay {
		assert.Equal(t, int64(1), l.CaseID)
	}
}

func TestSQLiteStore_RulesNormalizePlanName(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertRule(ctx, model.RestrictionRule{
		OwnerID: "o1", Barcode: "789", InsurancePlanName: "Unimed", CreatedAt: time.Now(),
	}))

	err := store.InsertRule(ctx, model.RestrictionRule{OwnerID: "o1", Barcode: "789", InsurancePlanName: "  UNIMED "})
	assert.ErrorIs(t, err, model.ErrDuplicateRule)

	require.NoError(t, store.InsertRule(ctx, model.RestrictionRule{OwnerID: "o1", Barcode: "789", InsurancePlanName: "SUS"}))
	require.NoError(t, store.InsertRule(ctx, model.RestrictionRule{OwnerID: "o2", Barcode: "789", InsurancePlanName: "Unimed"}))

	rules, err := store.ListRulesByBarcode(ctx, "o1", "789")
	require.NoError(t, err)
	assert.Len(t, rules, 2)

	require.NoError(t, store.DeleteRule(ctx, "o1", "789", "unimed"))
	err = store.DeleteRule(ctx, "o1", "789", "unimed")
	assert.ErrorIs(t, err, model.ErrNotFound)

	all, err := store.ListRules(ctx, "o1")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "SUS", all[0].InsurancePlanName)
}

func TestSQLiteStore_Implants(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveImplant(ctx, model.ImplantItem{
		OwnerID: "o1", Barcode: "789", Name: "Stent", Lot: "L1", CreatedAt: created,
	}))
	require.NoError(t, store.SaveImplant(ctx, model.ImplantItem{
		OwnerID: "o1", Barcode: "789", Name: "Stent", Lot: "L2", CreatedAt: created.Add(time.Hour),
	}))

	item, err := store.GetImplant(ctx, "o1", "789")
	require.NoError(t, err)
	assert.Equal(t, "L2", item.Lot)
	assert.True(t, item.CreatedAt.Equal(created))

	_, err = store.GetImplant(ctx, "o1", "000")
	assert.ErrorIs(t, err, model.ErrNotFound)

	items, err := store.ListImplants(ctx, "o1")
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestSQLiteStore_GetStats(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := store.UpsertCaseRecords(ctx, "o1", []model.CaseRecord{{CaseID: 1}})
	require.NoError(t, err)

	stats, err := store.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats["case_records"])
	assert.Equal(t, int64(0), stats["linked_implants"])
}
