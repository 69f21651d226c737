package source

import (
	"fmt"
	"time"
)

// Upstream query constants.
const (
	TypeCPSInternal = "INT"
	TypeCPSAll      = "ALL"
	TypeGroupCPS    = "CPS"

	dateLayout = "2006-01-02"
)

// SourceQuery targets one upstream partition for a date range.
type SourceQuery struct {
	ID           string
	StartDate    string
	EndDate      string
	BusinessUnit string
	TypeCPS      string
	TypeGroup    string
}

func (q SourceQuery) params() map[string]string {
	p := map[string]string{
		"start_date": q.StartDate,
		"end_date":   q.EndDate,
		"type_cps":   q.TypeCPS,
		"type_group": q.TypeGroup,
	}
	if q.BusinessUnit != "" {
		p["business_unit"] = q.BusinessUnit
	}
	return p
}

// UnitQuery builds the query for a single business unit.
func UnitQuery(startDate, endDate, unit string) SourceQuery {
	return SourceQuery{
		ID:           "unit-" + unit,
		StartDate:    startDate,
		EndDate:      endDate,
		BusinessUnit: unit,
		TypeCPS:      TypeCPSInternal,
		TypeGroup:    TypeGroupCPS,
	}
}

// SyncQueries builds one query per business unit followed by the catch-all group query.
// Order matters: reconciliation lets later queries win.
func SyncQueries(startDate, endDate string, units []string, catchAllGroup string) []SourceQuery {
	queries := make([]SourceQuery, 0, len(units)+1)
	for _, unit := range units {
		queries = append(queries, UnitQuery(startDate, endDate, unit))
	}
	if catchAllGroup != "" {
		queries = append(queries, SourceQuery{
			ID:        "group-" + catchAllGroup,
			StartDate: startDate,
			EndDate:   endDate,
			TypeCPS:   TypeCPSAll,
			TypeGroup: catchAllGroup,
		})
	}
	return queries
}

// ParseDateRange validates ISO dates and returns them in canonical form.
func ParseDateRange(startDate, endDate string) (time.Time, time.Time, error) {
	start, err := time.Parse(dateLayout, startDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start_date %q", startDate)
	}
	end, err := time.Parse(dateLayout, endDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end_date %q", endDate)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("end_date %s is before start_date %s", endDate, startDate)
	}
	return start, end, nil
}

// FormatDate renders t as an upstream date parameter.
func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}
