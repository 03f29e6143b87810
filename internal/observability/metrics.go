package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors on a private registry.
type Metrics struct {
	registry        *prometheus.Registry
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	errors          *prometheus.CounterVec
	sweeps          *prometheus.CounterVec
	sweepDuration   *prometheus.HistogramVec
	breaches        *prometheus.CounterVec
	warnings        *prometheus.CounterVec
	assignments     *prometheus.CounterVec
	notifications   *prometheus.CounterVec
}

// NewMetrics registers all collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "itsm",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"path", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "itsm",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path", "method"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "itsm",
			Name:      "http_errors_total",
			Help:      "Error responses by domain error code.",
		}, []string{"path", "method", "code"}),
		sweeps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "itsm",
			Subsystem: "sla",
			Name:      "sweeps_total",
			Help:      "SLA sweeps by kind and outcome.",
		}, []string{"kind", "outcome"}),
		sweepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "itsm",
			Subsystem: "sla",
			Name:      "sweep_duration_seconds",
			Help:      "Duration of SLA sweeps.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"kind"}),
		breaches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "itsm",
			Subsystem: "sla",
			Name:      "breaches_total",
			Help:      "Newly detected SLA breaches by leg.",
		}, []string{"leg"}),
		warnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "itsm",
			Subsystem: "sla",
			Name:      "warnings_total",
			Help:      "SLA warnings emitted by leg.",
		}, []string{"leg"}),
		assignments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "itsm",
			Name:      "assignments_total",
			Help:      "Tickets routed to a group, by group and whether an agent was picked.",
		}, []string{"group", "agent_assigned"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "itsm",
			Name:      "notifications_total",
			Help:      "Webhook notifications by type and final status.",
		}, []string{"type", "status"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests, m.requestDuration, m.errors,
		m.sweeps, m.sweepDuration, m.breaches, m.warnings,
		m.assignments, m.notifications,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(path, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(path, method, code).Inc()
}

// RecordSweep tracks one breach or warning sweep.
func (m *Metrics) RecordSweep(kind string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.sweeps.WithLabelValues(kind, outcome).Inc()
	m.sweepDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

func (m *Metrics) RecordBreach(leg string) {
	if m == nil {
		return
	}
	m.breaches.WithLabelValues(leg).Inc()
}

func (m *Metrics) RecordWarning(leg string) {
	if m == nil {
		return
	}
	m.warnings.WithLabelValues(leg).Inc()
}

func (m *Metrics) RecordAssignment(group string, agentAssigned bool) {
	if m == nil {
		return
	}
	m.assignments.WithLabelValues(group, strconv.FormatBool(agentAssigned)).Inc()
}

func (m *Metrics) RecordNotification(notificationType, status string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(notificationType, status).Inc()
}
