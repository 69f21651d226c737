// Package metrics exposes prometheus collectors for sync and scan activity.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Scan outcomes.
const (
	OutcomeAccepted = "accepted"
	OutcomeBlocked  = "blocked"
	OutcomeUnknown  = "unknown_item"
	OutcomeError    = "error"
)

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	syncRuns       *prometheus.CounterVec
	syncedRecords  prometheus.Counter
	sourceFailures *prometheus.CounterVec
	sourceDuration *prometheus.HistogramVec
	scans          *prometheus.CounterVec
	linksCreated   prometheus.Counter
	eventsDropped  prometheus.Counter
}

// New creates the collectors on a dedicated registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "opmelink_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status_code"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "opmelink_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		syncRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "opmelink_sync_runs_total",
				Help: "Sync runs by status",
			},
			[]string{"status"},
		),
		syncedRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "opmelink_synced_records_total",
			Help: "Case records upserted by sync",
		}),
		sourceFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "opmelink_source_failures_total",
				Help: "Upstream source fetch failures",
			},
			[]string{"source"},
		),
		sourceDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "opmelink_source_fetch_duration_seconds",
				Help:    "Duration of upstream source fetches in seconds",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30},
			},
			[]string{"source"},
		),
		scans: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "opmelink_scans_total",
				Help: "Barcode scans by outcome",
			},
			[]string{"outcome"},
		),
		linksCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "opmelink_links_created_total",
			Help: "New case/implant links",
		}),
		eventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "opmelink_events_dropped_total",
			Help: "LinkCreated events dropped before delivery",
		}),
	}

	m.registry.MustRegister(
		m.httpRequests, m.httpDuration,
		m.syncRuns, m.syncedRecords,
		m.sourceFailures, m.sourceDuration,
		m.scans, m.linksCreated, m.eventsDropped,
		prometheus.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry (tests).
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) SyncRun(status string, synced int) {
	if m == nil {
		return
	}
	m.syncRuns.WithLabelValues(status).Inc()
	m.syncedRecords.Add(float64(synced))
}

func (m *Metrics) SourceFetched(source string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.sourceDuration.WithLabelValues(source).Observe(d.Seconds())
	if err != nil {
		m.sourceFailures.WithLabelValues(source).Inc()
	}
}

func (m *Metrics) Scan(outcome string) {
	if m == nil {
		return
	}
	m.scans.WithLabelValues(outcome).Inc()
}

func (m *Metrics) LinkCreated() {
	if m == nil {
		return
	}
	m.linksCreated.Inc()
}

func (m *Metrics) EventDropped() {
	if m == nil {
		return
	}
	m.eventsDropped.Inc()
}
