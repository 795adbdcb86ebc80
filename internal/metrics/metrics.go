package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	investigationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "faultline",
			Name:      "investigations_total",
			Help:      "Total number of investigations handled, partitioned by report status.",
		},
		[]string{"status"},
	)

	investigationDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "faultline",
			Name:      "investigation_seconds",
			Help:      "Investigation wall-clock duration in seconds.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120, 240},
		},
	)

	handoffsPerRun = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "faultline",
			Name:      "handoffs_per_run",
			Help:      "Specialist hand-offs per investigation run.",
			Buckets:   []float64{0, 1, 2, 3, 4, 5, 6, 8, 10},
		},
	)

	factsPerRun = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "faultline",
			Name:      "facts_per_run",
			Help:      "Facts collected per investigation run.",
			Buckets:   []float64{0, 5, 10, 20, 40, 80, 160, 320},
		},
	)

	collectorFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "faultline",
			Name:      "collector_failures_total",
			Help:      "Specialist collector invocations degraded into error Facts.",
		},
	)

	reasoningFallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "faultline",
			Name:      "reasoning_fallbacks_total",
			Help:      "Times the synthesizer fell back to the deterministic heuristic.",
		},
	)
)

// Register attaches faultline collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		investigationsTotal,
		investigationDurationSeconds,
		handoffsPerRun,
		factsPerRun,
		collectorFailuresTotal,
		reasoningFallbacksTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveInvestigation records the outcome of one investigation run.
func ObserveInvestigation(duration time.Duration, status string, handoffs, facts int) {
	investigationsTotal.WithLabelValues(status).Inc()
	if duration < 0 {
		duration = 0
	}
	investigationDurationSeconds.Observe(duration.Seconds())
	handoffsPerRun.Observe(float64(handoffs))
	factsPerRun.Observe(float64(facts))
}

// ObserveCollectorFailure counts a collector invocation degraded into an error Fact.
func ObserveCollectorFailure() {
	collectorFailuresTotal.Inc()
}

// ObserveReasoningFallback counts a fall back to the heuristic synthesizer.
func ObserveReasoningFallback() {
	reasoningFallbacksTotal.Inc()
}
