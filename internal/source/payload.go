package source

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"opmelink-api/internal/model"
)

// rawRecord is the upstream list-cps item. Field types vary between upstream
// deployments, so everything that matters is coerced here and nowhere else.
type rawRecord struct {
	CPS          flexInt64 `json:"CPS"`
	Patient      string    `json:"PATIENT"`
	Professional string    `json:"PROFESSIONAL"`
	Agreement    string    `json:"AGREEMENT"`
	BusinessUnit flexText  `json:"UNIDADENEGOCIO"`
	CreatedAt    string    `json:"CREATED_AT"`
}

// flexInt64 accepts 1001, 1001.0 and "1001".
type flexInt64 struct {
	Value int64
	Valid bool
}

func (f *flexInt64) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	s := string(b)
	if b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		f.Value, f.Valid = n, true
		return nil
	}
	if fl, err := strconv.ParseFloat(s, 64); err == nil && fl == float64(int64(fl)) {
		f.Value, f.Valid = int64(fl), true
	}
	return nil
}

// flexText accepts strings and numbers.
type flexText string

func (f *flexText) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexText(s)
		return nil
	}
	*f = flexText(b)
	return nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// decodeRecords turns a list-cps payload into canonical records.
// The payload must be a JSON array; entries without a usable CPS are skipped.
func decodeRecords(body []byte) ([]model.CaseRecord, int, error) {
	var raws []rawRecord
	if err := json.Unmarshal(body, &raws); err != nil {
		return nil, 0, fmt.Errorf("malformed payload: %w", err)
	}
	// null decodes to a nil slice; only [] is an empty batch.
	if raws == nil {
		return nil, 0, fmt.Errorf("malformed payload: expected a JSON array, got null")
	}

	records := make([]model.CaseRecord, 0, len(raws))
	skipped := 0
	for _, r := range raws {
		if !r.CPS.Valid {
			skipped++
			continue
		}
		records = append(records, model.CaseRecord{
			CaseID:           r.CPS.Value,
			PatientName:      strings.TrimSpace(r.Patient),
			ProfessionalName: strings.TrimSpace(r.Professional),
			InsurancePlan:    strings.TrimSpace(r.Agreement),
			BusinessUnit:     strings.TrimSpace(string(r.BusinessUnit)),
			SourceTimestamp:  parseTimestamp(r.CreatedAt),
		})
	}
	return records, skipped, nil
}
