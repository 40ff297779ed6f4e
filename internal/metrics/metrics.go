package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RemoteRequestsTotal tracks outbound calls to the resource backend.
	RemoteRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bank_remote_requests_total",
			Help: "Total number of resource backend requests (by collection, method, and status).",
		},
		[]string{"collection", "method", "status"},
	)

	// RemoteRequestDuration measures the duration of outbound backend calls.
	RemoteRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bank_remote_request_duration_seconds",
			Help:    "Duration of resource backend requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms → ~16s
		},
		[]string{"collection", "method"},
	)

	// OperationsTotal counts composite operation invocations by outcome.
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bank_operations_total",
			Help: "Composite operations run, by operation and outcome (ok, not_found, invalid, unavailable, error, canceled).",
		},
		[]string{"operation", "outcome"},
	)

	// OperationItemsTotal counts stream items emitted by composite operations.
	OperationItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bank_operation_items_total",
			Help: "Stream items emitted by composite operations, by operation and phase.",
		},
		[]string{"operation", "phase"},
	)

	// NotifierErrors tracks failures delivering persisted-record events.
	NotifierErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bank_notifier_errors_total",
			Help: "Number of failed event deliveries, by notifier.",
		},
		[]string{"notifier"},
	)

	// EventsPublished counts events delivered to a sink, by notifier and event type.
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bank_events_published_total",
			Help: "Events delivered for persisted records, by notifier and event type.",
		},
		[]string{"notifier", "event_type"},
	)
)

// ObserveRemote records one backend exchange. A zero status means a transport failure.
func ObserveRemote(collection, method string, status int, elapsed time.Duration) {
	label := "transport_error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	RemoteRequestsTotal.WithLabelValues(collection, method, label).Inc()
	RemoteRequestDuration.WithLabelValues(collection, method).Observe(elapsed.Seconds())
}

// IncOperation increments the operation outcome counter.
func IncOperation(operation, outcome string) {
	OperationsTotal.WithLabelValues(operation, outcome).Inc()
}

// IncOperationItem increments the emitted item counter.
func IncOperationItem(operation, phase string) {
	OperationItemsTotal.WithLabelValues(operation, phase).Inc()
}

// IncNotifierError increments the notifier failure counter.
func IncNotifierError(notifier string) {
	NotifierErrors.WithLabelValues(notifier).Inc()
}

// IncEventPublished increments the delivered event counter.
func IncEventPublished(notifier, eventType string) {
	EventsPublished.WithLabelValues(notifier, eventType).Inc()
}
