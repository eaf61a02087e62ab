package handlers

import (
	"time"

	"github.com/andesco/tagladder/pkg/taglib"

	"github.com/prometheus/client_golang/prometheus"
)

const outcomeError = "error"

// Metrics tracks proxied responses.
//
// Metrics:
//   - tagladder_proxy_responses_total: responses by outcome (passthrough, rewritten, error)
//   - tagladder_proxy_duration_seconds: time to fetch and rewrite the origin response
type Metrics struct {
	responsesTotal *prometheus.CounterVec
	duration       *prometheus.HistogramVec
}

// NewMetrics creates the proxy metrics and registers them with registry.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		responsesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tagladder",
				Subsystem: "proxy",
				Name:      "responses_total",
				Help:      "Total number of proxied responses by outcome",
			},
			[]string{"outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "tagladder",
				Subsystem: "proxy",
				Name:      "duration_seconds",
				Help:      "Time spent fetching and rewriting origin responses",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15},
			},
			[]string{"outcome"},
		),
	}

	registry.MustRegister(m.responsesTotal, m.duration)
	return m
}

// Observe records a response that reached its terminal state.
func (m *Metrics) Observe(state taglib.State, d time.Duration) {
	if m == nil {
		return
	}
	m.responsesTotal.WithLabelValues(string(state)).Inc()
	m.duration.WithLabelValues(string(state)).Observe(d.Seconds())
}

// ObserveError records a request that failed at the origin.
func (m *Metrics) ObserveError(d time.Duration) {
	if m == nil {
		return
	}
	m.responsesTotal.WithLabelValues(outcomeError).Inc()
	m.duration.WithLabelValues(outcomeError).Observe(d.Seconds())
}
