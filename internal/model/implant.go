package model

import "time"

// ImplantItem is a catalog entry for a medical device (OPME).
type ImplantItem struct {
	OwnerID        string    `json:"owner_id"`
	Barcode        string    `json:"barcode"`
	Name           string    `json:"name"`
	Lot            string    `json:"lot"`
	Expiry         string    `json:"expiry"`
	Reference      string    `json:"reference"`
	RegulatoryCode string    `json:"regulatory_code"`
	ProcedureCode  string    `json:"procedure_code"`
	CatalogCode    string    `json:"catalog_code"`
	CreatedAt      time.Time `json:"created_at"`
}

// LinkedImplant is the accumulated association of an implant barcode with a case.
type LinkedImplant struct {
	OwnerID       string    `json:"owner_id"`
	CaseID        int64     `json:"case_id"`
	Barcode       string    `json:"barcode"`
	Quantity      int       `json:"quantity"`
	FirstLinkedAt time.Time `json:"first_linked_at"`
	LastLinkedAt  time.Time `json:"last_linked_at"`
}

// DailySummaryEntry is one case with links first created inside a day window.
type DailySummaryEntry struct {
	CaseID      int64  `json:"case_id"`
	PatientName string `json:"patient_name"`
	ItemCount   int    `json:"item_count"`
}
