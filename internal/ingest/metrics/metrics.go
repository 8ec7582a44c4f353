package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Record outcomes.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
)

// Snapshot outcomes.
const (
	SnapshotApplied   = "applied"
	SnapshotDiscarded = "discarded"
	SnapshotRejected  = "rejected"
)

// Metrics provides observability for the ingestion consumer.
type Metrics struct {
	Records      *prometheus.CounterVec
	Snapshots    *prometheus.CounterVec
	StoreRetries *prometheus.CounterVec
}

// New registers the ingestion metrics with the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers the ingestion metrics with reg.
func NewWith(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Records: f.NewCounterVec(prometheus.CounterOpts{
			Name: "riskwatch_ingest_records_total",
			Help: "Kafka records consumed by topic and outcome",
		}, []string{"topic", "outcome"}), // outcome: "accepted", "rejected"

		Snapshots: f.NewCounterVec(prometheus.CounterOpts{
			Name: "riskwatch_ingest_watchlist_snapshots_total",
			Help: "Watchlist snapshots by watchlist and outcome",
		}, []string{"watchlist", "outcome"}), // outcome: "applied", "discarded", "rejected"

		StoreRetries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "riskwatch_ingest_store_retries_total",
			Help: "Event store writes retried after a transient failure",
		}, []string{"op"}),
	}
}

func (m *Metrics) AddRecords(topic, outcome string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.Records.WithLabelValues(topic, outcome).Add(float64(n))
}

func (m *Metrics) IncSnapshot(watchlist, outcome string) {
	if m == nil {
		return
	}
	m.Snapshots.WithLabelValues(watchlist, outcome).Inc()
}

func (m *Metrics) IncRetry(op string) {
	if m == nil {
		return
	}
	m.StoreRetries.WithLabelValues(op).Inc()
}
