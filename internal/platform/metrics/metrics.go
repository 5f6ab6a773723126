package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
// Services treat a nil *Metrics as a no-op so tests can skip registration.
type Metrics struct {
	IdPRequests        *prometheus.CounterVec
	IdPRequestDuration *prometheus.HistogramVec
	Reauthentications  prometheus.Counter
	RetriedAfter401    prometheus.Counter

	SagaCompleted      *prometheus.CounterVec
	SagaCompensations  *prometheus.CounterVec
	SagaOrphans        *prometheus.CounterVec
	EnrichmentDegraded *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		IdPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "concord_idp_requests_total",
			Help: "Total IdP admin API requests, labeled by operation and status class",
		}, []string{"operation", "status"}),
		IdPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "concord_idp_request_duration_seconds",
			Help:    "Duration of IdP admin API requests",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"operation"}),
		Reauthentications: promauto.NewCounter(prometheus.CounterOpts{
			Name: "concord_idp_reauthentications_total",
			Help: "Total client-credentials grants performed against the IdP token endpoint",
		}),
		RetriedAfter401: promauto.NewCounter(prometheus.CounterOpts{
			Name: "concord_idp_retries_after_401_total",
			Help: "Total IdP calls retried once after re-authentication on HTTP 401",
		}),
		SagaCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "concord_saga_completed_total",
			Help: "Completed dual-store write sequences, labeled by entity kind and operation",
		}, []string{"kind", "operation"}),
		SagaCompensations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "concord_saga_compensations_total",
			Help: "Best-effort external rollbacks attempted after a local write failure",
		}, []string{"kind"}),
		SagaOrphans: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "concord_saga_orphans_total",
			Help: "Compensations that failed, leaving an external principal without a local record",
		}, []string{"kind"}),
		EnrichmentDegraded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "concord_enrichment_degraded_total",
			Help: "Read-time IdP enrichment lookups that failed and fell back to defaults",
		}, []string{"kind"}),
	}
}

// ObserveIdPRequest records one IdP admin API request outcome.
func (m *Metrics) ObserveIdPRequest(operation, status string, start time.Time) {
	if m == nil {
		return
	}
	m.IdPRequests.WithLabelValues(operation, status).Inc()
	m.IdPRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// IncReauthentication records one client-credentials grant.
func (m *Metrics) IncReauthentication() {
	if m == nil {
		return
	}
	m.Reauthentications.Inc()
}

// IncRetriedAfter401 records one retry-after-reauthentication.
func (m *Metrics) IncRetriedAfter401() {
	if m == nil {
		return
	}
	m.RetriedAfter401.Inc()
}

// IncSagaCompleted records a completed create/update/delete sequence.
func (m *Metrics) IncSagaCompleted(kind, operation string) {
	if m == nil {
		return
	}
	m.SagaCompleted.WithLabelValues(kind, operation).Inc()
}

// IncSagaCompensation records a compensation attempt.
func (m *Metrics) IncSagaCompensation(kind string) {
	if m == nil {
		return
	}
	m.SagaCompensations.WithLabelValues(kind).Inc()
}

// IncSagaOrphan records a failed compensation (orphaned external principal).
func (m *Metrics) IncSagaOrphan(kind string) {
	if m == nil {
		return
	}
	m.SagaOrphans.WithLabelValues(kind).Inc()
}

// IncEnrichmentDegraded records an enrichment lookup that degraded to defaults.
func (m *Metrics) IncEnrichmentDegraded(kind string) {
	if m == nil {
		return
	}
	m.EnrichmentDegraded.WithLabelValues(kind).Inc()
}
