package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObservePublish(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.ObservePublish(ResultOK, 100, time.Millisecond)
	m.ObservePublish(ResultOK, 50, time.Millisecond)
	m.ObservePublish(ResultFailed, 70, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.TilesPublishedTotal.WithLabelValues(ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TilesPublishedTotal.WithLabelValues(ResultFailed)))
	assert.Equal(t, 150.0, testutil.ToFloat64(m.PublishBytesTotal))
}

func TestObserveRequest(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.ObserveRequest("tile", 204, time.Millisecond)
	m.CacheHit()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("tile", "204")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHitsTotal))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObservePublish(ResultOK, 1, 0)
		m.ObserveRequest("x", 200, 0)
		m.CacheHit()
		m.CacheMiss()
	})
}
