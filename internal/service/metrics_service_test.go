package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsServiceExposesCacheHistograms(t *testing.T) {
	metrics := NewMetricsService()
	metrics.RecordCacheOperation(true, 3*time.Millisecond)
	metrics.RecordCacheOperation(false, 5*time.Millisecond)
	metrics.ObserveCacheWrite(2 * time.Millisecond)

	families, err := metrics.Registry().Gather()
	require.NoError(t, err)

	counts := map[string]uint64{}
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			if h := metric.GetHistogram(); h != nil {
				counts[family.GetName()] += h.GetSampleCount()
			}
		}
	}
	assert.Equal(t, uint64(2), counts["cache_latency_seconds"])
	assert.Equal(t, uint64(1), counts["cache_write_seconds"])
}

func TestMetricsServiceNilReceiverIsSafe(t *testing.T) {
	var metrics *MetricsService
	assert.NotPanics(t, func() {
		metrics.RecordCacheOperation(true, time.Millisecond)
		metrics.ObserveCacheWrite(time.Millisecond)
		metrics.RecordSanction("warning")
		metrics.RecordNotification("email", false)
	})
	assert.Nil(t, metrics.Registry())
}
