package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"opmelink-api/internal/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newMockPostgresStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresStoreWithDB(db, zap.NewNop()), mock
}

func TestPostgresStore_UpsertCaseRecordsRunsInTransaction(t *testing.T) {
	store, mock := newMockPostgresStore(t)
	ts := time.Date(2024, 5, 10, 14, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(`INSERT INTO case_records`)
	prep.ExpectExec().WithArgs("o1", int64(1), "Ana", "", "UNIMED", "43", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WithArgs("o1", int64(2), "Bia", "", "SUS", "47", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	n, err := store.UpsertCaseRecords(context.Background(), "o1", []model.CaseRecord{
		{CaseID: 1, PatientName: "Ana", InsurancePlan: "UNIMED", BusinessUnit: "43", SourceTimestamp: ts},
		{CaseID: 2, PatientName: "Bia", InsurancePlan: "SUS", BusinessUnit: "47", SourceTimestamp: ts},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertCaseRecordsRollsBackOnFailure(t *testing.T) {
	store, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(`INSERT INTO case_records`)
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := store.UpsertCaseRecords(context.Background(), "o1", []model.CaseRecord{{CaseID: 1}, {CaseID: 2}})
	require.Error(t, err)

	var pe *model.PersistenceError
	assert.True(t, errors.As(err, &pe))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetCaseRecordNotFound(t *testing.T) {
	store, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .+ FROM case_records WHERE owner_id = \$1 AND case_id = \$2`).
		WithArgs("o1", int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"owner_id"}))

	_, err := store.GetCaseRecord(context.Background(), "o1", 5)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestPostgresStore_InsertLinkConflict(t *testing.T) {
	store, mock := newMockPostgresStore(t)
	now := time.Now().UTC()
	link := model.LinkedImplant{OwnerID: "o1", CaseID: 1, Barcode: "789", Quantity: 1, FirstLinkedAt: now, LastLinkedAt: now}

	mock.ExpectExec(`INSERT INTO linked_implants`).WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, store.InsertLink(context.Background(), link), model.ErrConcurrencyConflict)

	mock.ExpectExec(`INSERT INTO linked_implants`).WillReturnError(&pq.Error{Code: uniqueViolation})
	assert.ErrorIs(t, store.InsertLink(context.Background(), link), model.ErrConcurrencyConflict)

	mock.ExpectExec(`INSERT INTO linked_implants`).WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, store.InsertLink(context.Background(), link))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_IncrementLink(t *testing.T) {
	store, mock := newMockPostgresStore(t)
	at := time.Now().UTC()

	mock.ExpectQuery(`UPDATE linked_implants\s+SET quantity = quantity \+ 1`).
		WithArgs(at, "o1", int64(1), "789").
		WillReturnRows(sqlmock.NewRows([]string{"quantity"}).AddRow(3))

	q, err := store.IncrementLink(context.Background(), "o1", 1, "789", at)
	require.NoError(t, err)
	assert.Equal(t, 3, q)

	mock.ExpectQuery(`UPDATE linked_implants`).
		WillReturnRows(sqlmock.NewRows([]string{"quantity"}))
	_, err = store.IncrementLink(context.Background(), "o1", 1, "000", at)
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertRuleDuplicate(t *testing.T) {
	store, mock := newMockPostgresStore(t)
	rule := model.RestrictionRule{OwnerID: "o1", Barcode: "789", InsurancePlanName: " Unimed "}

	mock.ExpectExec(`INSERT INTO restriction_rules`).
		WithArgs("o1", "789", " Unimed ", "unimed", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.InsertRule(context.Background(), rule)
	assert.ErrorIs(t, err, model.ErrDuplicateRule)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteRuleNotFound(t *testing.T) {
	store, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM restriction_rules`).
		WithArgs("o1", "789", "unimed").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.DeleteRule(context.Background(), "o1", "789", "UNIMED")
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRulesByBarcode(t *testing.T) {
	store, mock := newMockPostgresStore(t)
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT owner_id, barcode, insurance_plan_name, created_at FROM restriction_rules`).
		WithArgs("o1", "789").
		WillReturnRows(sqlmock.NewRows([]string{"owner_id", "barcode", "insurance_plan_name", "created_at"}).
			AddRow("o1", "789", "Unimed", created).
			AddRow("o1", "789", "SUS", created))

	rules, err := store.ListRulesByBarcode(context.Background(), "o1", "789")
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "Unimed", rules[0].InsurancePlanName)
	assert.NoError(t, mock.ExpectationsWereMet())
}
