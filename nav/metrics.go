package nav

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the planner's Prometheus collectors. A nil *Metrics records nothing.
type Metrics struct {
	Searches      *prometheus.CounterVec
	Duration      *prometheus.HistogramVec
	StaleResults  prometheus.Counter
	AsyncFailures prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg. A nil reg leaves them
// unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "navkit",
			Subsystem: "planner",
			Name:      "searches_total",
			Help:      "Path searches by mode and result.",
		}, []string{"mode", "result"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "navkit",
			Subsystem: "planner",
			Name:      "search_duration_seconds",
			Help:      "Time spent in the weighted search.",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 4, 8),
		}, []string{"mode"}),
		StaleResults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "navkit",
			Subsystem: "planner",
			Name:      "stale_results_total",
			Help:      "Async results dropped because a newer request superseded them.",
		}),
		AsyncFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "navkit",
			Subsystem: "planner",
			Name:      "async_failures_total",
			Help:      "Async searches that failed or panicked.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Searches, m.Duration, m.StaleResults, m.AsyncFailures)
	}
	return m
}

func (m *Metrics) observeSearch(mode string, found bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	result := "found"
	if !found {
		result = "no_path"
	}
	m.Searches.WithLabelValues(mode, result).Inc()
	m.Duration.WithLabelValues(mode).Observe(elapsed.Seconds())
}

func (m *Metrics) observeUnresolved(mode string) {
	if m == nil {
		return
	}
	m.Searches.WithLabelValues(mode, "unresolved").Inc()
}

func (m *Metrics) staleResult() {
	if m == nil {
		return
	}
	m.StaleResults.Inc()
}

func (m *Metrics) asyncFailure() {
	if m == nil {
		return
	}
	m.AsyncFailures.Inc()
}
