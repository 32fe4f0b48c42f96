// Package metrics holds the Prometheus collectors of the vault service.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "insightai"

// Auth event results.
const (
	ResultOK       = "ok"
	ResultRejected = "rejected"
	ResultError    = "error"
)

// Metrics holds all collectors.
type Metrics struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight prometheus.Gauge
	authEvents       *prometheus.CounterVec
	registryOps      *prometheus.CounterVec
	openConnections  prometheus.Gauge
}

// New creates the collectors and registers them in reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		requestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		requestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"method", "route"},
		),
		requestsInFlight: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Number of HTTP requests currently being processed",
			},
		),
		authEvents: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_events_total",
				Help:      "Authentication events by kind and result",
			},
			[]string{"event", "result"},
		),
		registryOps: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "registry_operations_total",
				Help:      "Connection registry open/close operations by result",
			},
			[]string{"op", "result"},
		),
		openConnections: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "registry_open_connections",
				Help:      "Number of live external database connections",
			},
		),
	}
}

// ObserveHTTP records a finished request. route is the chi route pattern,
// never the raw path.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}

	m.requestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// InFlight adjusts the in-flight request gauge by delta.
func (m *Metrics) InFlight(delta float64) {
	if m == nil {
		return
	}

	m.requestsInFlight.Add(delta)
}

// AuthEvent counts signup/login/refresh/logout/authenticate outcomes.
func (m *Metrics) AuthEvent(event, result string) {
	if m == nil {
		return
	}

	m.authEvents.WithLabelValues(event, result).Inc()
}

// RegistryOp counts registry operations.
func (m *Metrics) RegistryOp(op, result string) {
	if m == nil {
		return
	}

	m.registryOps.WithLabelValues(op, result).Inc()
}

// SetOpenConnections sets the live connection gauge.
func (m *Metrics) SetOpenConnections(n int) {
	if m == nil {
		return
	}

	m.openConnections.Set(float64(n))
}
