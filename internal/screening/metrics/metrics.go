package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for screening cycles.
type Metrics struct {
	// Cycle outcomes and latency
	Cycles        *prometheus.CounterVec
	CycleDuration *prometheus.HistogramVec
	StageDuration *prometheus.HistogramVec

	// Per-cycle results
	CustomersScreened prometheus.Counter
	Matches           *prometheus.CounterVec
	Ratings           *prometheus.GaugeVec

	// Watchlist snapshot state
	WatchlistVersion prometheus.Gauge
	SkippedEntities  *prometheus.CounterVec
}

// New registers the screening metrics with the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers the screening metrics with reg.
func NewWith(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Cycles: f.NewCounterVec(prometheus.CounterOpts{
			Name: "riskwatch_screening_cycles_total",
			Help: "Screening cycles by outcome",
		}, []string{"outcome"}), // outcome: "completed", "failed"

		CycleDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "riskwatch_screening_cycle_duration_seconds",
			Help:    "Wall time of a screening cycle by outcome",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"outcome"}),

		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "riskwatch_screening_stage_duration_seconds",
			Help:    "Wall time of each screening stage",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
		}, []string{"stage"}),

		CustomersScreened: f.NewCounter(prometheus.CounterOpts{
			Name: "riskwatch_screening_customers_total",
			Help: "Customers screened across all completed cycles",
		}),

		Matches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "riskwatch_screening_matches_total",
			Help: "Watchlist matches by watchlist and match type",
		}, []string{"watchlist", "type"}),

		Ratings: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "riskwatch_screening_ratings",
			Help: "Customers per overall rating in the latest completed cycle",
		}, []string{"rating"}),

		WatchlistVersion: f.NewGauge(prometheus.GaugeOpts{
			Name: "riskwatch_watchlist_version",
			Help: "Watchlist version behind the currently published views",
		}),

		SkippedEntities: f.NewCounterVec(prometheus.CounterOpts{
			Name: "riskwatch_watchlist_entities_skipped_total",
			Help: "Watchlist entities excluded from some or all checks when a snapshot is built",
		}, []string{"watchlist", "reason"}),
	}
}

// ObserveCycle records a finished cycle.
func (m *Metrics) ObserveCycle(outcome string, d time.Duration) {
	if m != nil {
		m.Cycles.WithLabelValues(outcome).Inc()
		m.CycleDuration.WithLabelValues(outcome).Observe(d.Seconds())
	}
}

// ObserveStage records how long one stage took.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m != nil {
		m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
	}
}

func (m *Metrics) AddCustomers(n int) {
	if m != nil {
		m.CustomersScreened.Add(float64(n))
	}
}

func (m *Metrics) IncMatch(watchlist, matchType string) {
	if m != nil {
		m.Matches.WithLabelValues(watchlist, matchType).Inc()
	}
}

// SetRatings replaces the rating distribution gauge.
func (m *Metrics) SetRatings(counts map[string]int) {
	if m != nil {
		for rating, n := range counts {
			m.Ratings.WithLabelValues(rating).Set(float64(n))
		}
	}
}

func (m *Metrics) SetWatchlistVersion(v int64) {
	if m != nil {
		m.WatchlistVersion.Set(float64(v))
	}
}

func (m *Metrics) AddSkipped(watchlist, reason string, n int) {
	if m != nil && n > 0 {
		m.SkippedEntities.WithLabelValues(watchlist, reason).Add(float64(n))
	}
}
