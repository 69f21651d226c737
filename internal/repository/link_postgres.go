package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"opmelink-api/internal/model"
)

// GetLink returns the link for (owner, case, barcode).
func (s *PostgresStore) GetLink(ctx context.Context, ownerID string, caseID int64, barcode string) (*model.LinkedImplant, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+linkColumns+` FROM linked_implants WHERE owner_id = $1 AND case_id = $2 AND barcode = $3`,
		ownerID, caseID, barcode)

	link, err := scanPostgresLink(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, linkNotFound(caseID, barcode)
	}
	if err != nil {
		return nil, model.Persistence("get link", err)
	}
	return link, nil
}

// InsertLink creates a link, reporting a lost race as model.ErrConcurrencyConflict.
func (s *PostgresStore) InsertLink(ctx context.Context, link model.LinkedImplant) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO linked_implants (`+linkColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (owner_id, case_id, barcode) DO NOTHING`,
		link.OwnerID, link.CaseID, link.Barcode, link.Quantity, link.FirstLinkedAt, link.LastLinkedAt)
	if isUniqueViolation(err) {
		return model.ErrConcurrencyConflict
	}
	if err != nil {
		return model.Persistence("insert link", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return model.Persistence("insert link", err)
	}
	if n == 0 {
		return model.ErrConcurrencyConflict
	}
	return nil
}

// IncrementLink adds one to the quantity; the row lock taken by UPDATE serializes concurrent scans.
func (s *PostgresStore) IncrementLink(ctx context.Context, ownerID string, caseID int64, barcode string, at time.Time) (int, error) {
	var quantity int
	err := s.db.QueryRowContext(ctx, `
		UPDATE linked_implants
		SET quantity = quantity + 1, last_linked_at = $1
		WHERE owner_id = $2 AND case_id = $3 AND barcode = $4
		RETURNING quantity`,
		at, ownerID, caseID, barcode).Scan(&quantity)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, linkNotFound(caseID, barcode)
	}
	if err != nil {
		return 0, model.Persistence("increment link", err)
	}
	return quantity, nil
}

// ListLinksByCase returns the links of one case.
func (s *PostgresStore) ListLinksByCase(ctx context.Context, ownerID string, caseID int64) ([]model.LinkedImplant, error) {
	return s.listLinks(ctx,
		`SELECT `+linkColumns+` FROM linked_implants WHERE owner_id = $1 AND case_id = $2 ORDER BY first_linked_at, barcode`,
		ownerID, caseID)
}

// ListLinksFirstLinkedBetween returns links first created in [start, end).
func (s *PostgresStore) ListLinksFirstLinkedBetween(ctx context.Context, ownerID string, start, end time.Time) ([]model.LinkedImplant, error) {
	return s.listLinks(ctx,
		`SELECT `+linkColumns+` FROM linked_implants
		WHERE owner_id = $1 AND first_linked_at >= $2 AND first_linked_at < $3
		ORDER BY case_id, first_linked_at`,
		ownerID, start, end)
}

func (s *PostgresStore) listLinks(ctx context.Context, query string, args ...interface{}) ([]model.LinkedImplant, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, model.Persistence("list links", err)
	}
	defer rows.Close()

	links := []model.LinkedImplant{}
	for rows.Next() {
		link, err := scanPostgresLink(rows)
		if err != nil {
			return nil, model.Persistence("scan link", err)
		}
		links = append(links, *link)
	}
	return links, model.Persistence("iterate links", rows.Err())
}

func scanPostgresLink(row rowScanner) (*model.LinkedImplant, error) {
	var l model.LinkedImplant
	if err := row.Scan(&l.OwnerID, &l.CaseID, &l.Barcode, &l.Quantity, &l.FirstLinkedAt, &l.LastLinkedAt); err != nil {
		return nil, err
	}
	l.FirstLinkedAt = l.FirstLinkedAt.UTC()
	l.LastLinkedAt = l.LastLinkedAt.UTC()
	return &l, nil
}
