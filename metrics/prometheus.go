package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for publishing and serving.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Publish metrics
	TilesPublishedTotal  *prometheus.CounterVec
	PublishBytesTotal    prometheus.Counter
	PublishWriteDuration prometheus.Histogram

	// Serve metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		TilesPublishedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tiler",
			Subsystem: "publish",
			Name:      "tiles_total",
			Help:      "Tiles handled by the publisher, by result",
		}, []string{"result"}),
		PublishBytesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: "tiler",
			Subsystem: "publish",
			Name:      "bytes_total",
			Help:      "Payload bytes written to the sink",
		}),
		PublishWriteDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tiler",
			Subsystem: "publish",
			Name:      "write_duration_seconds",
			Help:      "Duration of a single sink write",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tiler",
			Subsystem: "serve",
			Name:      "requests_total",
			Help:      "Requests resolved by the tile handler, by route and status",
		}, []string{"route", "code"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tiler",
			Subsystem: "serve",
			Name:      "request_duration_seconds",
			Help:      "Time to resolve a request",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		CacheHitsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: "tiler",
			Subsystem: "serve",
			Name:      "cache_hits_total",
			Help:      "Tile lookups answered from the in-memory cache",
		}),
		CacheMissesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: "tiler",
			Subsystem: "serve",
			Name:      "cache_misses_total",
			Help:      "Tile lookups that went to the archive",
		}),
	}
}

// Publish result labels.
const (
	ResultOK      = "ok"
	ResultFailed  = "failed"
	ResultSkipped = "skipped"
)

func (m *Metrics) ObservePublish(result string, bytes int, d time.Duration) {
	if m == nil {
		return
	}
	m.TilesPublishedTotal.WithLabelValues(result).Inc()
	if result == ResultOK {
		m.PublishBytesTotal.Add(float64(bytes))
	}
	if result != ResultSkipped {
		m.PublishWriteDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) ObserveRequest(route string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.RequestDuration.WithLabelValues(route).Observe(d.Seconds())
}

func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.CacheHitsTotal.Inc()
}

func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.CacheMissesTotal.Inc()
}
