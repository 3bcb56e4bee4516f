package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Admission outcomes used as the "outcome" label.
const (
	OutcomeAdmitted  = "admitted"
	OutcomeConflict  = "conflict"
	OutcomeBusy      = "busy"
	OutcomeNotFound  = "resource_not_found"
	OutcomeError     = "error"
	OutcomeCancelled = "cancelled"
	OutcomeForbidden = "forbidden"
)

// Metrics holds the service's Prometheus collectors.
type Metrics struct {
	Admissions        *prometheus.CounterVec
	AdmissionDuration prometheus.Histogram
	AdmitRetries      prometheus.Counter
	Cancellations     *prometheus.CounterVec
	EventPublishFails prometheus.Counter

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// New registers the collectors on reg. Pass prometheus.NewRegistry() in tests
// to avoid duplicate registration on the default registry.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Admissions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "reservation_admissions_total",
			Help: "Booking admission attempts by outcome",
		}, []string{"outcome"}),

		AdmissionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "reservation_admission_duration_seconds",
			Help:    "Time spent in atomic admission, including busy retries",
			Buckets: prometheus.DefBuckets,
		}),

		AdmitRetries: f.NewCounter(prometheus.CounterOpts{
			Name: "reservation_admission_busy_retries_total",
			Help: "Admissions retried after per-resource lock contention",
		}),

		Cancellations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "reservation_cancellations_total",
			Help: "Booking cancellation attempts by outcome",
		}, []string{"outcome"}),

		EventPublishFails: f.NewCounter(prometheus.CounterOpts{
			Name: "reservation_event_publish_failures_total",
			Help: "Booking events that could not be published",
		}),

		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "reservation_http_requests_total",
			Help: "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),

		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "reservation_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}
