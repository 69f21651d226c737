package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.Scan(OutcomeAccepted)
	m.Scan(OutcomeAccepted)
	m.Scan(OutcomeBlocked)
	m.SourceFetched("bu-43", time.Second, errors.New("boom"))
	m.SourceFetched("bu-47", time.Second, nil)
	m.SyncRun("partial", 12)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.scans.WithLabelValues(OutcomeAccepted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.scans.WithLabelValues(OutcomeBlocked)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sourceFailures.WithLabelValues("bu-43")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.sourceFailures.WithLabelValues("bu-47")))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.syncedRecords))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Scan(OutcomeError)
		m.LinkCreated()
		m.EventDropped()
		m.SyncRun("failed", 0)
		m.ObserveHTTP("GET", "/", 200, time.Millisecond)
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.LinkCreated()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "opmelink_links_created_total 1")
}
