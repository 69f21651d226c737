package repository

import (
	"context"
	"database/sql"
	"errors"

	"opmelink-api/internal/model"
)

const implantColumns = `owner_id, barcode, name, lot, expiry, reference, regulatory_code, procedure_code, catalog_code, created_at`

// GetImplant looks up a catalog entry by barcode.
func (s *SQLiteStore) GetImplant(ctx context.Context, ownerID, barcode string) (*model.ImplantItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+implantColumns+` FROM implant_items WHERE owner_id = ? AND barcode = ?`, ownerID, barcode)

	item, err := scanSQLiteImplant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &model.NotFoundError{Kind: model.KindImplant, Key: barcode}
	}
	if err != nil {
		return nil, model.Persistence("get implant", err)
	}
	return item, nil
}

// SaveImplant inserts or replaces a catalog entry. created_at survives replacement.
func (s *SQLiteStore) SaveImplant(ctx context.Context, item model.ImplantItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO implant_items (`+implantColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner_id, barcode) DO UPDATE SET
			name = excluded.name,
			lot = excluded.lot,
			expiry = excluded.expiry,
			reference = excluded.reference,
			regulatory_code = excluded.regulatory_code,
			procedure_code = excluded.procedure_code,
			catalog_code = excluded.catalog_code`,
		item.OwnerID, item.Barcode, item.Name, item.Lot, item.Expiry, item.Reference,
		item.RegulatoryCode, item.ProcedureCode, item.CatalogCode, toNanos(item.CreatedAt))
	return model.Persistence("save implant", err)
}

// ListImplants returns the owner's catalog ordered by name.
func (s *SQLiteStore) ListImplants(ctx context.Context, ownerID string) ([]model.ImplantItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+implantColumns+` FROM implant_items WHERE owner_id = ? ORDER BY name, barcode`, ownerID)
	if err != nil {
		return nil, model.Persistence("list implants", err)
	}
	defer rows.Close()

	items := []model.ImplantItem{}
	for rows.Next() {
		item, err := scanSQLiteImplant(rows)
		if err != nil {
			return nil, model.Persistence("scan implant", err)
		}
		items = append(items, *item)
	}
	return items, model.Persistence("iterate implants", rows.Err())
}

func scanSQLiteImplant(row rowScanner) (*model.ImplantItem, error) {
	var it model.ImplantItem
	var created int64
	if err := row.Scan(&it.OwnerID, &it.Barcode, &it.Name, &it.Lot, &it.Expiry, &it.Reference,
		&it.RegulatoryCode, &it.ProcedureCode, &it.CatalogCode, &created); err != nil {
		return nil, err
	}
	it.CreatedAt = fromNanos(created)
	return &it, nil
}
