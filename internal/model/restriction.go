package model

import "time"

// RestrictionRule forbids linking Barcode to cases under InsurancePlanName.
type RestrictionRule struct {
	OwnerID           string    `json:"owner_id"`
	Barcode           string    `json:"barcode"`
	InsurancePlanName string    `json:"insurance_plan_name"`
	CreatedAt         time.Time `json:"created_at"`
}
