package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tourney"

// Metrics groups the engine's collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	ResultsRecorded        prometheus.Counter
	RoundsGenerated        *prometheus.CounterVec
	ReconstructionFailures *prometheus.CounterVec
	DegradedQueries        prometheus.Counter
	PersistFailures        prometheus.Counter
	LiveTournaments        prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ResultsRecorded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "results_recorded_total",
			Help:      "Game results applied to a tournament.",
		}),
		RoundsGenerated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_generated_total",
			Help:      "Non-empty pairing rounds, by pairing system.",
		}, []string{"system"}),
		ReconstructionFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconstruction_failures_total",
			Help:      "Tournaments that could not be rebuilt from storage, by reason.",
		}, []string{"reason"}),
		DegradedQueries: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ordered_query_degraded_total",
			Help:      "Player loads that fell back to arrival order.",
		}),
		PersistFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_failures_total",
			Help:      "Mutations whose changes could not be written; the tournament is evicted.",
		}),
		LiveTournaments: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_tournaments",
			Help:      "Tournaments held in the live registry.",
		}),
	}
}

func (m *Metrics) ResultRecorded() {
	if m != nil {
		m.ResultsRecorded.Inc()
	}
}

func (m *Metrics) RoundGenerated(system string) {
	if m != nil {
		m.RoundsGenerated.WithLabelValues(system).Inc()
	}
}

func (m *Metrics) ReconstructionFailed(reason string) {
	if m != nil {
		m.ReconstructionFailures.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) QueryDegraded() {
	if m != nil {
		m.DegradedQueries.Inc()
	}
}

func (m *Metrics) PersistFailed() {
	if m != nil {
		m.PersistFailures.Inc()
	}
}

func (m *Metrics) SetLive(n int) {
	if m != nil {
		m.LiveTournaments.Set(float64(n))
	}
}
