package model

import "time"

// Sync run statuses.
const (
	SyncStatusSuccess = "success"
	SyncStatusPartial = "partial"
	SyncStatusFailed  = "failed"
)

// SyncRun records one execution of the scheduled sync.
type SyncRun struct {
	ID         string    `json:"id" bson:"_id"`
	OwnerID    string    `json:"owner_id" bson:"owner_id"`
	StartDate  string    `json:"start_date" bson:"start_date"`
	EndDate    string    `json:"end_date" bson:"end_date"`
	Synced     int       `json:"synced" bson:"synced"`
	Failures   []string  `json:"failures,omitempty" bson:"failures,omitempty"`
	Status     string    `json:"status" bson:"status"`
	Error      string    `json:"error,omitempty" bson:"error,omitempty"`
	StartedAt  time.Time `json:"started_at" bson:"started_at"`
	FinishedAt time.Time `json:"finished_at" bson:"finished_at"`
}
