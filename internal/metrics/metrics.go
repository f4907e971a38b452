package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var durationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}

// Metrics provides observability for the CRM core.
// All methods are safe to call on a nil *Metrics.
type Metrics struct {
	ClientOperations     *prometheus.CounterVec
	ClientOperationTime  *prometheus.HistogramVec
	DuplicateRejections  *prometheus.CounterVec
	AuthorizationDenied  *prometheus.CounterVec
	EventPublishFailures prometheus.Counter
	WorkspacesCreated    prometheus.Counter
	HTTPRequests         *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	RateLimitedRequests  prometheus.Counter
}

// New registers all metrics on reg. Pass prometheus.NewRegistry() in tests to
// avoid duplicate registration panics.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ClientOperations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "crm_client_operations_total",
			Help: "Client use case invocations by operation and outcome",
		}, []string{"operation", "outcome"}),
		ClientOperationTime: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "crm_client_operation_duration_seconds",
			Help:    "Duration of client use cases",
			Buckets: durationBuckets,
		}, []string{"operation"}),
		DuplicateRejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "crm_client_duplicate_rejections_total",
			Help: "Client writes rejected by a uniqueness invariant, by field",
		}, []string{"field"}),
		AuthorizationDenied: f.NewCounterVec(prometheus.CounterOpts{
			Name: "crm_authorization_denied_total",
			Help: "Permission checks that failed, by permission",
		}, []string{"permission"}),
		EventPublishFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "crm_event_publish_failures_total",
			Help: "Domain events that could not be published",
		}),
		WorkspacesCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "crm_workspaces_created_total",
			Help: "Total number of workspaces created",
		}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "crm_http_requests_total",
			Help: "Count of HTTP requests",
		}, []string{"route", "method", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "crm_http_request_duration_seconds",
			Help:    "Latency of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		RateLimitedRequests: f.NewCounter(prometheus.CounterOpts{
			Name: "crm_rate_limited_requests_total",
			Help: "Requests rejected by the rate limiter",
		}),
	}
}

// ObserveClientOperation records the outcome and duration of a client use case.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveClientOperation(operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.ClientOperations.WithLabelValues(operation, outcome).Inc()
	m.ClientOperationTime.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncDuplicate(field string) {
	if m == nil {
		return
	}
	m.DuplicateRejections.WithLabelValues(field).Inc()
}

func (m *Metrics) IncDenied(permission string) {
	if m == nil {
		return
	}
	m.AuthorizationDenied.WithLabelValues(permission).Inc()
}

func (m *Metrics) IncPublishFailure() {
	if m == nil {
		return
	}
	m.EventPublishFailures.Inc()
}

func (m *Metrics) IncWorkspaceCreated() {
	if m == nil {
		return
	}
	m.WorkspacesCreated.Inc()
}

func (m *Metrics) IncRateLimited() {
	if m == nil {
		return
	}
	m.RateLimitedRequests.Inc()
}

// ObserveHTTP records a finished HTTP request.
func (m *Metrics) ObserveHTTP(route, method, status string, start time.Time) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, method, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
}
