package source

import (
	"sort"

	"opmelink-api/internal/model"
)

// Reconcile collapses records to one per case id. Records are taken in the order
// given; a later record for the same case id replaces an earlier one regardless of
// timestamps. The result is sorted by case id.
func Reconcile(records []model.CaseRecord) []model.CaseRecord {
	byCase := make(map[int64]model.CaseRecord, len(records))
	for _, r := range records {
		byCase[r.CaseID] = r
	}

	out := make([]model.CaseRecord, 0, len(byCase))
	for _, r := range byCase {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CaseID < out[j].CaseID })
	return out
}
