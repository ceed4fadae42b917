package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels shared by the sync counters.
const (
	OutcomeOK      = "ok"
	OutcomeInvalid = "invalid"
	OutcomeError   = "error"
)

// Metrics holds the Prometheus collectors for the sync engine.
type Metrics struct {
	// Dual-write operations by op (upsert, delete), collection and outcome
	SyncOperations *prometheus.CounterVec

	// Dual-write latency by op and collection
	SyncLatency *prometheus.HistogramVec

	// Backfill documents by collection and result (processed, skipped)
	BackfillDocuments *prometheus.CounterVec

	// Backfill batch latency by collection
	BackfillBatchLatency *prometheus.HistogramVec

	// Compensating actions by queue backend and outcome
	ReconcileEnqueued *prometheus.CounterVec

	// HTTP requests by method, route and status class
	HTTPRequests *prometheus.CounterVec
}

// New registers all collectors with reg. Pass prometheus.DefaultRegisterer in
// production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SyncOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "attendsync_operations_total",
			Help: "Total dual-write sync operations by operation, collection and outcome",
		}, []string{"op", "collection", "outcome"}),

		SyncLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "attendsync_operation_duration_seconds",
			Help:    "Duration of dual-write sync operations including both stores",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"op", "collection"}),

		BackfillDocuments: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "attendsync_backfill_documents_total",
			Help: "Documents seen by the backfill job by collection and result",
		}, []string{"collection", "result"}),

		BackfillBatchLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "attendsync_backfill_batch_duration_seconds",
			Help:    "Duration of one backfill batch transaction",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"collection"}),

		ReconcileEnqueued: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "attendsync_reconcile_enqueued_total",
			Help: "Compensating actions handed to the reconciliation queue",
		}, []string{"queue", "outcome"}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "attendsync_http_requests_total",
			Help: "HTTP requests by method, route pattern and status class",
		}, []string{"method", "route", "status"}),
	}
}

// IncSync records a sync operation outcome.
func (m *Metrics) IncSync(op, collection, outcome string) {
	if m != nil {
		m.SyncOperations.WithLabelValues(op, collection, outcome).Inc()
	}
}

// ObserveSync records the duration of a sync operation.
func (m *Metrics) ObserveSync(op, collection string, d time.Duration) {
	if m != nil {
		m.SyncLatency.WithLabelValues(op, collection).Observe(d.Seconds())
	}
}

// AddBackfill adds processed and skipped document counts for a collection.
func (m *Metrics) AddBackfill(collection string, processed, skipped int) {
	if m == nil {
		return
	}
	if processed > 0 {
		m.BackfillDocuments.WithLabelValues(collection, "processed").Add(float64(processed))
	}
	if skipped > 0 {
		m.BackfillDocuments.WithLabelValues(collection, "skipped").Add(float64(skipped))
	}
}

// ObserveBackfillBatch records the duration of one batch transaction.
func (m *Metrics) ObserveBackfillBatch(collection string, d time.Duration) {
	if m != nil {
		m.BackfillBatchLatency.WithLabelValues(collection).Observe(d.Seconds())
	}
}

// IncReconcile records a compensating action hand-off.
func (m *Metrics) IncReconcile(queue, outcome string) {
	if m != nil {
		m.ReconcileEnqueued.WithLabelValues(queue, outcome).Inc()
	}
}

// IncHTTP records a served request.
func (m *Metrics) IncHTTP(method, route, status string) {
	if m != nil {
		m.HTTPRequests.WithLabelValues(method, route, status).Inc()
	}
}
