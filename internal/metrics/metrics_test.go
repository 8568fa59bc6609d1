package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	require.NotNil(t, m)

	m.MessagesScored.Inc()
	m.EmbeddingRequests.WithLabelValues("hit").Add(2)
	m.Threshold.Set(0.65)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.MessagesScored))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.EmbeddingRequests.WithLabelValues("hit")))
	assert.Equal(t, 0.65, testutil.ToFloat64(m.Threshold))
}

func TestNewMetricsSeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewNop()
		NewNop()
	})
}
