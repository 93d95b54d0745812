package service

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService owns the Prometheus registry for HTTP, cache and trust-engine metrics.
// All recording methods are safe on a nil receiver.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Histogram
	cacheWrite      prometheus.Histogram
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	scoreCalculations *prometheus.CounterVec
	scoreValues       prometheus.Histogram
	gamingDetections  prometheus.Counter
	sanctionsApplied  *prometheus.CounterVec
	restrictionsGone  prometheus.Counter
	appealTransitions *prometheus.CounterVec
	batchDuration     *prometheus.HistogramVec
	notifications     *prometheus.CounterVec
}

// NewMetricsService registers all collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	m := &MetricsService{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		cacheLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cache_latency_seconds",
			Help:    "Latency for cache lookups",
			Buckets: prometheus.DefBuckets,
		}),
		cacheWrite: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cache_write_seconds",
			Help:    "Latency for cache set operations",
			Buckets: prometheus.DefBuckets,
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total cache hits",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total cache misses",
		}),
		scoreCalculations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trust_score_calculations_total",
			Help: "Trust score calculations by outcome",
		}, []string{"result"}),
		scoreValues: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "trust_score_value",
			Help:    "Distribution of computed trust scores",
			Buckets: prometheus.LinearBuckets(10, 10, 10),
		}),
		gamingDetections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trust_score_gaming_detections_total",
			Help: "Calculations where update gaming was detected",
		}),
		sanctionsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sanctions_applied_total",
			Help: "Restrictions applied by type",
		}, []string{"type"}),
		restrictionsGone: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "restrictions_expired_total",
			Help: "Expired restrictions removed",
		}),
		appealTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "appeal_transitions_total",
			Help: "Appeal state transitions by target status",
		}, []string{"status"}),
		batchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "trust_batch_duration_seconds",
			Help:    "Duration of scheduled batch jobs",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		}, []string{"job"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_published_total",
			Help: "External notifications published by channel and outcome",
		}, []string{"channel", "result"}),
	}

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(
		m.requestDuration, m.requestTotal, m.cacheLatency, m.cacheWrite, m.cacheHits, m.cacheMisses,
		m.scoreCalculations, m.scoreValues, m.gamingDetections, m.sanctionsApplied, m.restrictionsGone,
		m.appealTransitions, m.batchDuration, m.notifications, goroutines,
	)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry exposes the underlying registry.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records a cache lookup outcome.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// ObserveCacheWrite tracks the duration of cache writes.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordScoreCalculation counts a calculation and, on success, its score.
func (m *MetricsService) RecordScoreCalculation(score int, gaming bool, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.scoreCalculations.WithLabelValues("error").Inc()
		return
	}
	m.scoreCalculations.WithLabelValues("success").Inc()
	m.scoreValues.Observe(float64(score))
	if gaming {
		m.gamingDetections.Inc()
	}
}

// RecordSanction counts an applied restriction.
func (m *MetricsService) RecordSanction(restrictionType string) {
	if m == nil {
		return
	}
	m.sanctionsApplied.WithLabelValues(restrictionType).Inc()
}

// RecordRestrictionsExpired counts removed restrictions.
func (m *MetricsService) RecordRestrictionsExpired(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.restrictionsGone.Add(float64(n))
}

// RecordAppealTransition counts an appeal entering status.
func (m *MetricsService) RecordAppealTransition(status string) {
	if m == nil {
		return
	}
	m.appealTransitions.WithLabelValues(status).Inc()
}

// ObserveBatch records how long a batch job took.
func (m *MetricsService) ObserveBatch(job string, duration time.Duration) {
	if m == nil {
		return
	}
	m.batchDuration.WithLabelValues(job).Observe(duration.Seconds())
}

// RecordNotification counts an external notification publish.
func (m *MetricsService) RecordNotification(channel string, ok bool) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "error"
	}
	m.notifications.WithLabelValues(channel, result).Inc()
}
