package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"opmelink-api/internal/model"

	"go.uber.org/zap"
)

// MySQLImplantRepository implements ImplantRepository on the shared MySQL catalog.
type MySQLImplantRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewMySQLImplantRepository creates a new MySQL implant catalog repository.
func NewMySQLImplantRepository(db *sql.DB, logger *zap.Logger) *MySQLImplantRepository {
	return &MySQLImplantRepository{db: db, logger: logger.Named("mysql_catalog")}
}

// EnsureSchema creates the implant_items table when missing.
func (r *MySQLImplantRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS implant_items (
			owner_id        VARCHAR(64)  NOT NULL,
			barcode         VARCHAR(128) NOT NULL,
			name            VARCHAR(255) NOT NULL DEFAULT '',
			lot             VARCHAR(128) NOT NULL DEFAULT '',
			expiry          VARCHAR(32)  NOT NULL DEFAULT '',
			reference       VARCHAR(128) NOT NULL DEFAULT '',
			regulatory_code VARCHAR(64)  NOT NULL DEFAULT '',
			procedure_code  VARCHAR(64)  NOT NULL DEFAULT '',
			catalog_code    VARCHAR(64)  NOT NULL DEFAULT '',
			created_at      DATETIME(6)  NOT NULL,
			PRIMARY KEY (owner_id, barcode)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`)
	return err
}

// GetImplant looks up a catalog entry by barcode.
func (r *MySQLImplantRepository) GetImplant(ctx context.Context, ownerID, barcode string) (*model.ImplantItem, error) {
	query := `SELECT ` + implantColumns + ` FROM implant_items WHERE owner_id = ? AND barcode = ? LIMIT 1`

	item, err := scanImplant(r.db.QueryRowContext(ctx, query, ownerID, barcode))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &model.NotFoundError{Kind: model.KindImplant, Key: barcode}
	}
	if err != nil {
		return nil, model.Persistence("get implant", err)
	}
	return item, nil
}

// SaveImplant inserts or replaces a catalog entry.
func (r *MySQLImplantRepository) SaveImplant(ctx context.Context, item model.ImplantItem) error {
	created := item.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO implant_items (`+implantColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			name = VALUES(name),
			lot = VALUES(lot),
			expiry = VALUES(expiry),
			reference = VALUES(reference),
			regulatory_code = VALUES(regulatory_code),
			procedure_code = VALUES(procedure_code),
			catalog_code = VALUES(catalog_code)`,
		item.OwnerID, item.Barcode, item.Name, item.Lot, item.Expiry, item.Reference,
		item.RegulatoryCode, item.ProcedureCode, item.CatalogCode, created)
	if err != nil {
		r.logger.Error("failed to save implant", zap.String("barcode", item.Barcode), zap.Error(err))
		return model.Persistence("save implant", err)
	}
	return nil
}

// ListImplants returns the owner's catalog ordered by name.
func (r *MySQLImplantRepository) ListImplants(ctx context.Context, ownerID string) ([]model.ImplantItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+implantColumns+` FROM implant_items WHERE owner_id = ? ORDER BY name, barcode`, ownerID)
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

// Ensure MySQLImplantRepository implements ImplantRepository
var _ ImplantRepository = (*MySQLImplantRepository)(nil)
