// Package metrics provides Prometheus metrics for the rosariobus application.
package metrics

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for the application.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Registry is the Prometheus registry for this metrics instance
	Registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Upstream metrics
	FetchesTotal  *prometheus.CounterVec
	FetchDuration *prometheus.HistogramVec

	// Coordinator metrics
	SubscribedRouteStops *prometheus.GaugeVec
	ActiveCoordinators   prometheus.Gauge

	logger *slog.Logger
}

// New creates and registers all application metrics with a new registry.
func New() *Metrics {
	return NewWithLogger(nil)
}

// NewWithLogger creates metrics with a logger for error reporting.
func NewWithLogger(logger *slog.Logger) *Metrics {
	registry := prometheus.NewRegistry()

	httpRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rosariobus_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rosariobus_http_request_duration_seconds",
			Help:    "HTTP request latency distribution",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	fetchesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rosariobus_upstream_fetches_total",
			Help: "Upstream prediction fetches by agency and result",
		},
		[]string{"agency", "result"},
	)

	fetchDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rosariobus_upstream_fetch_duration_seconds",
			Help:    "Upstream prediction fetch latency distribution",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"agency"},
	)

	subscribed := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rosariobus_subscribed_route_stops",
			Help: "Distinct route/stop pairs polled per agency",
		},
		[]string{"agency"},
	)

	activeCoordinators := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rosariobus_active_coordinators",
		Help: "Number of agencies with a running coordinator",
	})

	registry.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		fetchesTotal,
		fetchDuration,
		subscribed,
		activeCoordinators,
	)

	return &Metrics{
		Registry:             registry,
		HTTPRequestsTotal:    httpRequestsTotal,
		HTTPRequestDuration:  httpRequestDuration,
		FetchesTotal:         fetchesTotal,
		FetchDuration:        fetchDuration,
		SubscribedRouteStops: subscribed,
		ActiveCoordinators:   activeCoordinators,
		logger:               logger,
	}
}

// ObserveFetch records one upstream fetch. result is "success" or an error kind.
func (m *Metrics) ObserveFetch(agency, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.FetchesTotal.WithLabelValues(agency, result).Inc()
	m.FetchDuration.WithLabelValues(agency).Observe(d.Seconds())
}

// SetSubscriptions reports how many route/stop pairs an agency polls.
func (m *Metrics) SetSubscriptions(agency string, n int) {
	if m == nil {
		return
	}
	if n == 0 {
		m.SubscribedRouteStops.DeleteLabelValues(agency)
		return
	}
	m.SubscribedRouteStops.WithLabelValues(agency).Set(float64(n))
}

// SetActiveCoordinators reports how many coordinators the registry holds.
func (m *Metrics) SetActiveCoordinators(n int) {
	if m == nil {
		return
	}
	m.ActiveCoordinators.Set(float64(n))
}
