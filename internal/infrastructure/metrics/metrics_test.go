package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister_Idempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		Register()
		Register()
	})
}

func TestCollectorsGathered(t *testing.T) {
	Register()

	AnalysesTotal.WithLabelValues("success").Inc()
	assert.GreaterOrEqual(t, testutil.ToFloat64(AnalysesTotal.WithLabelValues("success")), float64(1))

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["toxiscan_pipeline_analyses_total"])
}
