package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerationObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	g, err := NewGeneration(reg)
	require.NoError(t, err)

	g.Observe("merito", OutcomeAccepted, time.Second)
	g.Observe("merito", OutcomeAccepted, time.Second)
	g.Observe("merito", "timeout", time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(g.attempts.WithLabelValues("merito", OutcomeAccepted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(g.attempts.WithLabelValues("merito", "timeout")))
}

func TestGenerationDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewGeneration(reg)
	require.NoError(t, err)
	_, err = NewGeneration(reg)
	assert.Error(t, err)
}

func TestNilGenerationIsNoop(t *testing.T) {
	var g *Generation
	assert.NotPanics(t, func() { g.Observe("x", OutcomeInvalid, 0) })
}
