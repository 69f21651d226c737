package repository

import (
	"context"
	"time"

	"opmelink-api/internal/model"
)

// CaseRecordRepository stores case records keyed by (owner, case id).
type CaseRecordRepository interface {
	// UpsertCaseRecords inserts or fully replaces records for ownerID in one transaction.
	UpsertCaseRecords(ctx context.Context, ownerID string, records []model.CaseRecord) (int, error)

	// GetCaseRecord returns *model.NotFoundError when absent.
	GetCaseRecord(ctx context.Context, ownerID string, caseID int64) (*model.CaseRecord, error)

	// GetCaseRecords returns the records found among caseIDs.
	GetCaseRecords(ctx context.Context, ownerID string, caseIDs []int64) (map[int64]model.CaseRecord, error)

	// QueryCaseRecords filters by source timestamp and, when non-empty, business unit.
	QueryCaseRecords(ctx context.Context, ownerID string, r model.DateRange, businessUnit string) ([]model.CaseRecord, error)
}

// LinkRepository stores linked implants keyed by (owner, case id, barcode).
type LinkRepository interface {
	// GetLink returns *model.NotFoundError when absent.
	GetLink(ctx context.Context, ownerID string, caseID int64, barcode string) (*model.LinkedImplant, error)

	// InsertLink returns model.ErrConcurrencyConflict if the key already exists.
	InsertLink(ctx context.Context, link model.LinkedImplant) error

	// IncrementLink atomically adds one to quantity and returns the new value.
	// Returns *model.NotFoundError when the row does not exist.
	IncrementLink(ctx context.Context, ownerID string, caseID int64, barcode string, at time.Time) (int, error)

	// ListLinksByCase returns the links of one case ordered by first link time.
	ListLinksByCase(ctx context.Context, ownerID string, caseID int64) ([]model.LinkedImplant, error)

	// ListLinksFirstLinkedBetween returns links whose first link time is in [start, end).
	ListLinksFirstLinkedBetween(ctx context.Context, ownerID string, start, end time.Time) ([]model.LinkedImplant, error)
}

// RestrictionRepository stores restriction rules keyed by (owner, barcode, normalized plan).
type RestrictionRepository interface {
	// InsertRule returns *model.DuplicateRuleError on a uniqueness conflict.
	InsertRule(ctx context.Context, rule model.RestrictionRule) error

	// DeleteRule returns *model.NotFoundError when nothing matched.
	DeleteRule(ctx context.Context, ownerID, barcode, insurancePlanName string) error

	ListRules(ctx context.Context, ownerID string) ([]model.RestrictionRule, error)

	ListRulesByBarcode(ctx context.Context, ownerID, barcode string) ([]model.RestrictionRule, error)
}

// ImplantRepository is the owner's implant catalog.
type ImplantRepository interface {
	// GetImplant returns *model.NotFoundError when absent.
	GetImplant(ctx context.Context, ownerID, barcode string) (*model.ImplantItem, error)

	// SaveImplant inserts or replaces a catalog entry.
	SaveImplant(ctx context.Context, item model.ImplantItem) error

	ListImplants(ctx context.Context, ownerID string) ([]model.ImplantItem, error)
}

// Store is the local database holding records, links, rules and the default catalog.
type Store interface {
	CaseRecordRepository
	LinkRepository
	RestrictionRepository
	ImplantRepository

	// GetStats returns statistics about the database.
	GetStats(ctx context.Context) (map[string]interface{}, error)

	// Close closes the repository connection.
	Close() error
}

// SyncRunRepository keeps the history of sync executions.
type SyncRunRepository interface {
	InsertSyncRun(ctx context.Context, run *model.SyncRun) error
	ListSyncRuns(ctx context.Context, limit int) ([]model.SyncRun, error)
	Close() error
}
