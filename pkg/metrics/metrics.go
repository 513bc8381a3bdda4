package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebhookRequests tracks webhook requests by method and response status
	WebhookRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "revalidate_webhook_requests_total",
			Help: "Total number of revalidation webhook requests by method and status code",
		},
		[]string{"method", "status_code"},
	)

	// WebhookAuthFailures tracks rejected deliveries by reason
	WebhookAuthFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "revalidate_webhook_auth_failures_total",
			Help: "Total number of webhook requests rejected during authentication",
		},
		[]string{"auth_mode", "reason"},
	)

	// ChangeEvents tracks accepted change events by document type
	ChangeEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "revalidate_change_events_total",
			Help: "Total number of accepted change events by document type",
		},
		[]string{"document_type"},
	)

	// InvalidationDuration tracks invalidation backend call duration in seconds
	InvalidationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "revalidate_invalidation_duration_seconds",
			Help:    "Duration of cache invalidation calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "kind"},
	)

	// Invalidations tracks invalidation calls by backend, kind and outcome
	Invalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "revalidate_invalidations_total",
			Help: "Total number of cache invalidation calls",
		},
		[]string{"backend", "kind", "status"},
	)

	// InvalidationAPIErrors tracks revalidation API errors by type
	InvalidationAPIErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "revalidate_invalidation_api_errors_total",
			Help: "Total number of revalidation API errors by type",
		},
		[]string{"error_type", "status_code"},
	)
)

// RecordWebhookRequest records a completed webhook request
func RecordWebhookRequest(method string, statusCode int) {
	WebhookRequests.WithLabelValues(method, fmt.Sprintf("%d", statusCode)).Inc()
}

// RecordAuthFailure records a rejected webhook delivery
func RecordAuthFailure(authMode, reason string) {
	WebhookAuthFailures.WithLabelValues(authMode, reason).Inc()
}

// RecordChangeEvent records an accepted change event
func RecordChangeEvent(documentType string) {
	ChangeEvents.WithLabelValues(documentType).Inc()
}

// RecordInvalidation records the outcome and duration of an invalidation call
func RecordInvalidation(backend, kind, status string, duration float64) {
	Invalidations.WithLabelValues(backend, kind, status).Inc()
	InvalidationDuration.WithLabelValues(backend, kind).Observe(duration)
}

// RecordInvalidationAPIError records a revalidation API error
func RecordInvalidationAPIError(errorType string, statusCode int) {
	InvalidationAPIErrors.WithLabelValues(errorType, fmt.Sprintf("%d", statusCode)).Inc()
}
