package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

// SQLiteStore implements Store using SQLite.
// Writes are serialized through one connection; the mutex keeps read-modify-write
// sequences inside a method from interleaving with other writers.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	logger *zap.Logger
}

// NewSQLiteStore opens (creating if needed) the SQLite database at dbPath.
func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	// SQLite only supports 1 writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := createSQLiteTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger = logger.Named("sqlite")
	logger.Info("store initialized", zap.String("path", dbPath))
	return &SQLiteStore{db: db, logger: logger}, nil
}

// createSQLiteTables creates the schema. Timestamps are unix nanoseconds.
func createSQLiteTables(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS case_records (
		owner_id          TEXT    NOT NULL,
		case_id           INTEGER NOT NULL,
		patient_name      TEXT    NOT NULL DEFAULT '',
		professional_name TEXT    NOT NULL DEFAULT '',
		insurance_plan    TEXT    NOT NULL DEFAULT '',
		business_unit     TEXT    NOT NULL DEFAULT '',
		source_ts         INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (owner_id, case_id)
	);
	CREATE INDEX IF NOT EXISTS idx_case_records_source_ts ON case_records(owner_id, source_ts);

	CREATE TABLE IF NOT EXISTS linked_implants (
		owner_id        TEXT    NOT NULL,
		case_id         INTEGER NOT NULL,
		barcode         TEXT    NOT NULL,
		quantity        INTEGER NOT NULL CHECK (quantity >= 1),
		first_linked_at INTEGER NOT NULL,
		last_linked_at  INTEGER NOT NULL,
		PRIMARY KEY (owner_id, case_id, barcode)
	);
	CREATE INDEX IF NOT EXISTS idx_linked_implants_first ON linked_implants(owner_id, first_linked_at);

	CREATE TABLE IF NOT EXISTS restriction_rules (
		owner_id            TEXT    NOT NULL,
		barcode             TEXT    NOT NULL,
		insurance_plan_name TEXT    NOT NULL,
		plan_normalized     TEXT    NOT NULL,
		created_at          INTEGER NOT NULL,
		PRIMARY KEY (owner_id, barcode, plan_normalized)
	);

	CREATE TABLE IF NOT EXISTS implant_items (
		owner_id        TEXT    NOT NULL,
		barcode         TEXT    NOT NULL,
		name            TEXT    NOT NULL DEFAULT '',
		lot             TEXT    NOT NULL DEFAULT '',
		expiry          TEXT    NOT NULL DEFAULT '',
		reference       TEXT    NOT NULL DEFAULT '',
		regulatory_code TEXT    NOT NULL DEFAULT '',
		procedure_code  TEXT    NOT NULL DEFAULT '',
		catalog_code    TEXT    NOT NULL DEFAULT '',
		created_at      INTEGER NOT NULL,
		PRIMARY KEY (owner_id, barcode)
	);
	`
	_, err := db.Exec(query)
	return err
}

func toNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

// GetStats returns statistics about the database.
func (s *SQLiteStore) GetStats(ctx context.Context) (map[string]interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]interface{})
	for _, table := range []string{"case_records", "linked_implants", "restriction_rules", "implant_items"} {
		var count int64
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count); err != nil {
			return nil, err
		}
		stats[table] = count
	}

	// Database file size (approximate from page count)
	var pageCount, pageSize int64
	s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount)
	s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
	stats["db_size_bytes"] = pageCount * pageSize

	return stats, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ensure SQLiteStore implements Store
var _ Store = (*SQLiteStore)(nil)
