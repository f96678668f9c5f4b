package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors of the portal. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	HTTPRequests  *prometheus.CounterVec
	HTTPDuration  *prometheus.HistogramVec
	Transitions   *prometheus.CounterVec
	Deliveries    *prometheus.CounterVec
	ImportedRows  *prometheus.CounterVec
	CacheLookups  *prometheus.CounterVec
	WSConnections prometheus.Gauge
}

// New creates and registers all collectors on reg. A nil reg means the
// default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "youth_portal_http_requests_total",
			Help: "HTTP requests by method, route and status code",
		}, []string{"method", "route", "status"}),

		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "youth_portal_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method", "route"}),

		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "youth_portal_workflow_transitions_total",
			Help: "Workflow status transitions by subject type and target status",
		}, []string{"subject", "to"}),

		Deliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "youth_portal_notification_deliveries_total",
			Help: "Notification deliveries by channel (db, ws, sms, email) and result",
		}, []string{"channel", "result"}),

		ImportedRows: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "youth_portal_imported_rows_total",
			Help: "Imported pending profile rows by source and outcome",
		}, []string{"source", "outcome"}),

		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "youth_portal_dashboard_cache_lookups_total",
			Help: "Dashboard cache lookups by result (hit, miss)",
		}, []string{"result"}),

		WSConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "youth_portal_ws_connections",
			Help: "Currently connected websocket clients",
		}),
	}
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// IncrementTransition records a workflow status change.
func (m *Metrics) IncrementTransition(subject, to string) {
	if m != nil {
		m.Transitions.WithLabelValues(subject, to).Inc()
	}
}

// IncrementDelivery records a notification delivery attempt.
func (m *Metrics) IncrementDelivery(channel string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Deliveries.WithLabelValues(channel, result).Add(1)
}

// AddImportedRows records import outcomes (accepted, duplicate, invalid).
func (m *Metrics) AddImportedRows(source, outcome string, n int) {
	if m != nil && n > 0 {
		m.ImportedRows.WithLabelValues(source, outcome).Add(float64(n))
	}
}

// IncrementCacheLookup records a dashboard cache hit or miss.
func (m *Metrics) IncrementCacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.CacheLookups.WithLabelValues("miss").Inc()
}

// SetWSConnections publishes the current websocket client count.
func (m *Metrics) SetWSConnections(n int) {
	if m != nil {
		m.WSConnections.Set(float64(n))
	}
}
