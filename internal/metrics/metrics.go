package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// RunsStartedTotal counts runs entering the collecting stage.
	RunsStartedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "compradar",
		Subsystem: "pipeline",
		Name:      "runs_started_total",
		Help:      "Total number of analysis runs started.",
	})

	// RunsFinishedTotal counts runs reaching a terminal state, by status.
	RunsFinishedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "compradar",
		Subsystem: "pipeline",
		Name:      "runs_finished_total",
		Help:      "Total number of analysis runs finished, labeled by terminal status.",
	}, []string{"status"})

	// RunsInFlight is the number of runs currently being driven.
	RunsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "compradar",
		Subsystem: "pipeline",
		Name:      "runs_in_flight",
		Help:      "Current number of analysis runs in progress.",
	})

	// StageDurationSeconds is per-stage wall time.
	StageDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "compradar",
		Subsystem: "pipeline",
		Name:      "stage_duration_seconds",
		Help:      "Wall time per pipeline stage.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 60, 120, 300},
	}, []string{"stage"})

	// MentionsPersistedTotal counts mentions written by collection.
	MentionsPersistedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "compradar",
		Subsystem: "pipeline",
		Name:      "mentions_persisted_total",
		Help:      "Total number of news mentions persisted.",
	})

	// ProviderCallsTotal counts provider calls by provider and result.
	ProviderCallsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "compradar",
		Subsystem: "pipeline",
		Name:      "provider_calls_total",
		Help:      "Total content-search and language-model calls, labeled by provider and result.",
	}, []string{"provider", "result"})

	// InsightsGeneratedTotal counts persisted insights.
	InsightsGeneratedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "compradar",
		Subsystem: "pipeline",
		Name:      "insights_generated_total",
		Help:      "Total number of insights persisted.",
	})
)

// Register registers pipeline metrics with the default registry. Safe to
// call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			RunsStartedTotal,
			RunsFinishedTotal,
			RunsInFlight,
			StageDurationSeconds,
			MentionsPersistedTotal,
			ProviderCallsTotal,
			InsightsGeneratedTotal,
		)
	})
}
