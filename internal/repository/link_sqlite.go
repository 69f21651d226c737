package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"opmelink-api/internal/model"
)

const linkColumns = `owner_id, case_id, barcode, quantity, first_linked_at, last_linked_at`

// GetLink returns the link for (owner, case, barcode).
func (s *SQLiteStore) GetLink(ctx context.Context, ownerID string, caseID int64, barcode string) (*model.LinkedImplant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+linkColumns+` FROM linked_implants WHERE owner_id = ? AND case_id = ? AND barcode = ?`,
		ownerID, caseID, barcode)

	link, err := scanSQLiteLink(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, linkNotFound(caseID, barcode)
	}
	if err != nil {
		return nil, model.Persistence("get link", err)
	}
	return link, nil
}

// InsertLink creates a link. The primary key rejects a second row for the same key.
func (s *SQLiteStore) InsertLink(ctx context.Context, link model.LinkedImplant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO linked_implants (`+linkColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner_id, case_id, barcode) DO NOTHING`,
		link.OwnerID, link.CaseID, link.Barcode, link.Quantity,
		toNanos(link.FirstLinkedAt), toNanos(link.LastLinkedAt))
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

// IncrementLink adds one to the quantity in a single statement.
func (s *SQLiteStore) IncrementLink(ctx context.Context, ownerID string, caseID int64, barcode string, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var quantity int
	err := s.db.QueryRowContext(ctx, `
		UPDATE linked_implants
		SET quantity = quantity + 1, last_linked_at = ?
		WHERE owner_id = ? AND case_id = ? AND barcode = ?
		RETURNING quantity`,
		toNanos(at), ownerID, caseID, barcode).Scan(&quantity)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, linkNotFound(caseID, barcode)
	}
	if err != nil {
		return 0, model.Persistence("increment link", err)
	}
	return quantity, nil
}

// ListLinksByCase returns the links of one case.
func (s *SQLiteStore) ListLinksByCase(ctx context.Context, ownerID string, caseID int64) ([]model.LinkedImplant, error) {
	return s.listLinks(ctx,
		`SELECT `+linkColumns+` FROM linked_implants WHERE owner_id = ? AND case_id = ? ORDER BY first_linked_at, barcode`,
		ownerID, caseID)
}

// ListLinksFirstLinkedBetween returns links first created in [start, end).
func (s *SQLiteStore) ListLinksFirstLinkedBetween(ctx context.Context, ownerID string, start, end time.Time) ([]model.LinkedImplant, error) {
	return s.listLinks(ctx,
		`SELECT `+linkColumns+` FROM linked_implants
		WHERE owner_id = ? AND first_linked_at >= ? AND first_linked_at < ?
		ORDER BY case_id, first_linked_at`,
		ownerID, toNanos(start), toNanos(end))
}

func (s *SQLiteStore) listLinks(ctx context.Context, query string, args ...interface{}) ([]model.LinkedImplant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, model.Persistence("list links", err)
	}
	defer rows.Close()

	links := []model.LinkedImplant{}
	for rows.Next() {
		link, err := scanSQLiteLink(rows)
		if err != nil {
			return nil, model.Persistence("scan link", err)
		}
		links = append(links, *link)
	}
	return links, model.Persistence("iterate links", rows.Err())
}

func scanSQLiteLink(row rowScanner) (*model.LinkedImplant, error) {
	var l model.LinkedImplant
	var first, last int64
	if err := row.Scan(&l.OwnerID, &l.CaseID, &l.Barcode, &l.Quantity, &first, &last); err != nil {
		return nil, err
	}
	l.FirstLinkedAt = fromNanos(first)
	l.LastLinkedAt = fromNanos(last)
	return &l, nil
}

func linkNotFound(caseID int64, barcode string) error {
	return &model.NotFoundError{Kind: "link", Key: fmt.Sprintf("%d/%s", caseID, barcode)}
}
