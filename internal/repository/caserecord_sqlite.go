package repository

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"opmelink-api/internal/model"

	"go.uber.org/zap"
)

const caseRecordColumns = `owner_id, case_id, patient_name, professional_name, insurance_plan, business_unit, source_ts`

// UpsertCaseRecords inserts or replaces records in one transaction.
func (s *SQLiteStore) UpsertCaseRecords(ctx context.Context, ownerID string, records []model.CaseRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, model.Persistence("begin transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO case_records (`+caseRecordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner_id, case_id) DO UPDATE SET
			patient_name = excluded.patient_name,
			professional_name = excluded.professional_name,
			insurance_plan = excluded.insurance_plan,
			business_unit = excluded.business_unit,
			source_ts = excluded.source_ts`)
	if err != nil {
		return 0, model.Persistence("prepare upsert", err)
	}
	defer stmt.Close()

	for _, r := range records {
		_, err := stmt.ExecContext(ctx, ownerID, r.CaseID, r.PatientName, r.ProfessionalName,
			r.InsurancePlan, r.BusinessUnit, toNanos(r.SourceTimestamp))
		if err != nil {
			return 0, model.Persistence("upsert case "+strconv.FormatInt(r.CaseID, 10), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, model.Persistence("commit upsert", err)
	}

	s.logger.Debug("case records upserted", zap.String("owner_id", ownerID), zap.Int("count", len(records)))
	return len(records), nil
}

// GetCaseRecord returns a single case record.
func (s *SQLiteStore) GetCaseRecord(ctx context.Context, ownerID string, caseID int64) (*model.CaseRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+caseRecordColumns+` FROM case_records WHERE owner_id = ? AND case_id = ?`, ownerID, caseID)

	rec, err := scanSQLiteCaseRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &model.NotFoundError{Kind: model.KindCase, Key: strconv.FormatInt(caseID, 10)}
	}
	if err != nil {
		return nil, model.Persistence("get case record", err)
	}
	return rec, nil
}

// GetCaseRecords returns the stored records among caseIDs.
func (s *SQLiteStore) GetCaseRecords(ctx context.Context, ownerID string, caseIDs []int64) (map[int64]model.CaseRecord, error) {
	out := make(map[int64]model.CaseRecord, len(caseIDs))
	if len(caseIDs) == 0 {
		return out, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	args := make([]interface{}, 0, len(caseIDs)+1)
	args = append(args, ownerID)
	for _, id := range caseIDs {
		args = append(args, id)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(caseIDs)), ",")

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+caseRecordColumns+` FROM case_records WHERE owner_id = ? AND case_id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, model.Persistence("get case records", err)
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanSQLiteCaseRecord(rows)
		if err != nil {
			return nil, model.Persistence("scan case record", err)
		}
		out[rec.CaseID] = *rec
	}
	return out, model.Persistence("iterate case records", rows.Err())
}

// QueryCaseRecords lists records by source timestamp range and optional business unit.
func (s *SQLiteStore) QueryCaseRecords(ctx context.Context, ownerID string, r model.DateRange, businessUnit string) ([]model.CaseRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + caseRecordColumns + ` FROM case_records WHERE owner_id = ?`
	args := []interface{}{ownerID}
	if !r.Start.IsZero() {
		query += ` AND source_ts >= ?`
		args = append(args, toNanos(r.Start))
	}
	if !r.End.IsZero() {
		query += ` AND source_ts < ?`
		args = append(args, toNanos(r.End))
	}
	if businessUnit != "" {
		query += ` AND business_unit = ?`
		args = append(args, businessUnit)
	}
	query += ` ORDER BY case_id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, model.Persistence("query case records", err)
	}
	defer rows.Close()

	records := []model.CaseRecord{}
	for rows.Next() {
		rec, err := scanSQLiteCaseRecord(rows)
		if err != nil {
			return nil, model.Persistence("scan case record", err)
		}
		records = append(records, *rec)
	}
	return records, model.Persistence("iterate case records", rows.Err())
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSQLiteCaseRecord(row rowScanner) (*model.CaseRecord, error) {
	var rec model.CaseRecord
	var ts int64
	if err := row.Scan(&rec.OwnerID, &rec.CaseID, &rec.PatientName, &rec.ProfessionalName,
		&rec.InsurancePlan, &rec.BusinessUnit, &ts); err != nil {
		return nil, err
	}
	rec.SourceTimestamp = fromNanos(ts)
	return &rec, nil
}
