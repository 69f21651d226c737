package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"opmelink-api/internal/model"
)

// GetImplant looks up a catalog entry by barcode.
func (s *PostgresStore) GetImplant(ctx context.Context, ownerID, barcode string) (*model.ImplantItem, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+implantColumns+` FROM implant_items WHERE owner_id = $1 AND barcode = $2`, ownerID, barcode)

	item, err := scanImplant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &model.NotFoundError{Kind: model.KindImplant, Key: barcode}
	}
	if err != nil {
		return nil, model.Persistence("get implant", err)
	}
	return item, nil
}

// SaveImplant inserts or replaces a catalog entry.
func (s *PostgresStore) SaveImplant(ctx context.Context, item model.ImplantItem) error {
	created := item.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO implant_items (`+implantColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (owner_id, barcode) DO UPDATE SET
			name = EXCLUDED.name,
			lot = EXCLUDED.lot,
			expiry = EXCLUDED.expiry,
			reference = EXCLUDED.reference,
			regulatory_code = EXCLUDED.regulatory_code,
			procedure_code = EXCLUDED.procedure_code,
			catalog_code = EXCLUDED.catalog_code`,
		item.OwnerID, item.Barcode, item.Name, item.Lot, item.Expiry, item.Reference,
		item.RegulatoryCode, item.ProcedureCode, item.CatalogCode, created)
	return model.Persistence("save implant", err)
}

// ListImplants returns the owner's catalog ordered by name.
func (s *PostgresStore) ListImplants(ctx context.Context, ownerID string) ([]model.ImplantItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+implantColumns+` FROM implant_items WHERE owner_id = $1 ORDER BY name, barcode`, ownerID)
	if err != nil {
		return nil, model.Persistence("list implants", err)
	}
	defer rows.Close()

	items := []model.ImplantItem{}
	for rows.Next() {
		item, err := scanImplant(rows)
		if err != nil {
			return nil, model.Persistence("scan implant", err)
		}
		items = append(items, *item)
	}
	return items, model.Persistence("iterate implants", rows.Err())
}

// scanImplant reads a row whose created_at is a native timestamp (PostgreSQL, MySQL).
func scanImplant(row rowScanner) (*model.ImplantItem, error) {
	var it model.ImplantItem
	if err := row.Scan(&it.OwnerID, &it.Barcode, &it.Name, &it.Lot, &it.Expiry, &it.Reference,
		&it.RegulatoryCode, &it.ProcedureCode, &it.CatalogCode, &it.CreatedAt); err != nil {
		return nil, err
	}
	return &it, nil
}
