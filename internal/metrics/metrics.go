// Package metrics exposes Prometheus instruments for section generation.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Generation outcomes besides the backend error kinds.
const (
	OutcomeAccepted = "accepted"
	OutcomeInvalid  = "invalid"
)

// Generation records generation attempts per section and outcome.
// A nil *Generation is valid and records nothing.
type Generation struct {
	attempts *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// NewGeneration creates and registers the instruments on reg.
func NewGeneration(reg prometheus.Registerer) (*Generation, error) {
	g := &Generation{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "legaldraft",
			Subsystem: "generation",
			Name:      "attempts_total",
			Help:      "Section generation attempts by section and outcome.",
		}, []string{"section", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "legaldraft",
			Subsystem: "generation",
			Name:      "duration_seconds",
			Help:      "Time spent waiting on the generation backend.",
			Buckets:   []float64{1, 5, 10, 20, 40, 60, 90, 120},
		}, []string{"section"}),
	}
	if err := reg.Register(g.attempts); err != nil {
		return nil, err
	}
	if err := reg.Register(g.latency); err != nil {
		return nil, err
	}
	return g, nil
}

// Observe records one attempt.
func (g *Generation) Observe(section, outcome string, elapsed time.Duration) {
	if g == nil {
		return
	}
	g.attempts.WithLabelValues(section, outcome).Inc()
	g.latency.WithLabelValues(section).Observe(elapsed.Seconds())
}
