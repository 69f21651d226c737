package source

import (
	"testing"
	"time"

	"opmelink-api/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcile_LaterSourceWins(t *testing.T) {
	newer := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	older := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	res := FetchResult{Batches: [][]model.CaseRecord{
		{{CaseID: 1, PatientName: "first", SourceTimestamp: newer}, {CaseID: 2, PatientName: "only"}},
		{{CaseID: 1, PatientName: "second", SourceTimestamp: older}},
		{{CaseID: 3, PatientName: "x"}, {CaseID: 1, PatientName: "third", SourceTimestamp: older}},
	}}

	out := Reconcile(res.Records())
	require.Len(t, out, 3)

	assert.Equal(t, int64(1), out[0].CaseID)
	assert.Equal(t, "third", out[0].PatientName, "timestamps must not influence precedence")
	assert.Equal(t, "only", out[1].PatientName)
	assert.Equal(t, "x", out[2].PatientName)
}

func TestReconcile_Empty(t *testing.T) {
	assert.Empty(t, Reconcile(nil))
}

func TestDecodeRecords_Coercion(t *testing.T) {
	body := []byte(`[
		{"CPS": 1001, "PATIENT": " Ana ", "PROFESSIONAL": "Dr. X", "AGREEMENT": "Unimed ", "UNIDADENEGOCIO": "43", "CREATED_AT": "2024-05-01T10:00:00Z"},
		{"CPS": "1002", "UNIDADENEGOCIO": 47, "CREATED_AT": "2024-05-01 08:30:00"},
		{"CPS": 1003.0, "CREATED_AT": "garbage"},
		{"CPS": "abc"},
		{"PATIENT": "no id"}
	]`)

	recs, skipped, err := decodeRecords(body)
	require.NoError(t, err)
	assert.Equal(t, 2, skipped)
	require.Len(t, recs, 3)

	assert.Equal(t, "Ana", recs[0].PatientName)
	assert.Equal(t, "Unimed", recs[0].InsurancePlan)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), recs[0].SourceTimestamp)

	assert.Equal(t, int64(1002), recs[1].CaseID)
	assert.Equal(t, "47", recs[1].BusinessUnit)
	assert.Equal(t, time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC), recs[1].SourceTimestamp)

	assert.Equal(t, int64(1003), recs[2].CaseID)
	assert.True(t, recs[2].SourceTimestamp.IsZero())
}

func TestDecodeRecords_NullIsNotAnEmptyBatch(t *testing.T) {
	_, _, err := decodeRecords([]byte(`null`))
	assert.ErrorContains(t, err, "malformed payload")

	recs, skipped, err := decodeRecords([]byte(`[]`))
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.Zero(t, skipped)
}

func TestParseDateRange(t *testing.T) {
	_, _, err := ParseDateRange("2024-05-01", "2024-05-02")
	assert.NoError(t, err)

	_, _, err = ParseDateRange("2024-05-03", "2024-05-02")
	assert.Error(t, err)

	_, _, err = ParseDateRange("05/01/2024", "2024-05-02")
	assert.Error(t, err)
}

func TestSyncQueries_Order(t *testing.T) {
	qs := SyncQueries("a", "b", []string{"43", "47", "48"}, "ENDOSCOPIA")
	ids := make([]string, len(qs))
	for i, q := range qs {
		ids[i] = q.ID
	}
	assert.Equal(t, []string{"unit-43", "unit-47", "unit-48", "group-ENDOSCOPIA"}, ids)
}
