package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestRegistryTracksCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewRegistry(reg)

	m.FramesCaptured.Inc()
	m.FramesCaptured.Inc()
	m.ControlMessages.WithLabelValues("StartStop").Inc()

	var out dto.Metric
	require.NoError(t, m.FramesCaptured.Write(&out))
	require.Equal(t, float64(2), out.GetCounter().GetValue())
}
