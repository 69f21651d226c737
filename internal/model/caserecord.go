package model

import "time"

// CaseRecord is a surgical case (CPS) as stored locally.
// Unique per (OwnerID, CaseID); replaced wholesale on every reconciled upsert.
type CaseRecord struct {
	OwnerID          string    `json:"owner_id" bson:"owner_id"`
	CaseID           int64     `json:"case_id" bson:"case_id"`
	PatientName      string    `json:"patient_name" bson:"patient_name"`
	ProfessionalName string    `json:"professional_name" bson:"professional_name"`
	InsurancePlan    string    `json:"insurance_plan" bson:"insurance_plan"`
	BusinessUnit     string    `json:"business_unit" bson:"business_unit"`
	SourceTimestamp  time.Time `json:"source_timestamp" bson:"source_timestamp"`
}

// DateRange is a half-open interval [Start, End) over source timestamps.
// A zero bound is unbounded on that side.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the range.
func (d DateRange) Contains(t time.Time) bool {
	if !d.Start.IsZero() && t.Before(d.Start) {
		return false
	}
	if !d.End.IsZero() && !t.Before(d.End) {
		return false
	}
	return true
}
