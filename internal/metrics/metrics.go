// Package metrics holds the Prometheus collectors shared by the HTTP layer,
// the upstream clients and the article stores. Collectors are registered on
// the default registry by promauto and exposed on GET /metrics.
package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/sakif/openwiki/internal/apperror"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels.
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeRejected = "rejected" // circuit breaker open
	OutcomeNotFound = "not_found"
)

var (
	// API metrics
	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openwiki_api_requests_total",
			Help: "Total number of API requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "openwiki_api_request_duration_seconds",
			Help:    "API request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Upstream metrics (Wikipedia, auth service)
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openwiki_upstream_requests_total",
			Help: "Total number of calls to external services",
		},
		[]string{"upstream", "operation", "outcome"},
	)

	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "openwiki_upstream_request_duration_seconds",
			Help:    "Latency of calls to external services in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"upstream", "operation"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "openwiki_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// Store metrics
	StoreOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openwiki_store_operations_total",
			Help: "Total number of article store operations",
		},
		[]string{"backend", "operation", "outcome"},
	)

	StoreDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "openwiki_store_operation_duration_seconds",
			Help:    "Article store operation latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "operation"},
	)
)

// RecordAPIRequest records one completed HTTP request.
func RecordAPIRequest(method, route string, status int, duration time.Duration) {
	APIRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordUpstream records one call to an external service.
func RecordUpstream(upstream, operation, outcome string, duration time.Duration) {
	UpstreamRequests.WithLabelValues(upstream, operation, outcome).Inc()
	UpstreamDuration.WithLabelValues(upstream, operation).Observe(duration.Seconds())
}

// ObserveStore records one store operation. Use it with defer:
//
//	defer metrics.ObserveStore("sqlite", "save", time.Now(), &err)
func ObserveStore(backend, operation string, start time.Time, errp *error) {
	outcome := OutcomeSuccess
	if errp != nil && *errp != nil {
		outcome = OutcomeFailure
		if errors.Is(*errp, apperror.ErrNotFound) {
			outcome = OutcomeNotFound
		}
	}
	StoreOperations.WithLabelValues(backend, operation, outcome).Inc()
	StoreDuration.WithLabelValues(backend, operation).Observe(time.Since(start).Seconds())
}
