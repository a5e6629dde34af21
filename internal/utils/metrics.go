package utils

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector tracks request, error and per-operation latency metrics.
// Each collector owns its registry so several can coexist in one process.
type MetricsCollector struct {
	registry       *prometheus.Registry
	requestCount   prometheus.Counter
	errorCount     prometheus.Counter
	operationTimes *prometheus.HistogramVec
	activeSessions prometheus.Gauge

	systemStartTime time.Time
}

func NewMetricsCollector() *MetricsCollector {
	mc := &MetricsCollector{
		registry: prometheus.NewRegistry(),
		requestCount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "comment_thread",
			Name:      "requests_total",
			Help:      "Number of operations sent to thread actors.",
		}),
		errorCount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "comment_thread",
			Name:      "errors_total",
			Help:      "Number of operations that returned an error.",
		}),
		operationTimes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "comment_thread",
			Name:      "operation_duration_seconds",
			Help:      "Latency of thread operations.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"operation"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "comment_thread",
			Name:      "active_sessions",
			Help:      "Number of open thread sessions.",
		}),
		systemStartTime: time.Now(),
	}

	mc.registry.MustRegister(mc.requestCount, mc.errorCount, mc.operationTimes, mc.activeSessions)
	return mc
}

func (mc *MetricsCollector) IncrementRequests() {
	mc.requestCount.Inc()
}

func (mc *MetricsCollector) IncrementErrors() {
	mc.errorCount.Inc()
}

func (mc *MetricsCollector) AddOperationLatency(operationName string, duration time.Duration) {
	mc.operationTimes.WithLabelValues(operationName).Observe(duration.Seconds())
}

func (mc *MetricsCollector) SessionOpened() {
	mc.activeSessions.Inc()
}

func (mc *MetricsCollector) SessionClosed() {
	mc.activeSessions.Dec()
}

func (mc *MetricsCollector) Uptime() time.Duration {
	return time.Since(mc.systemStartTime)
}

// Registry exposes the underlying registry, mostly for tests.
func (mc *MetricsCollector) Registry() *prometheus.Registry {
	return mc.registry
}

// Handler serves the collected metrics in the Prometheus text format.
func (mc *MetricsCollector) Handler() http.Handler {
	return promhttp.HandlerFor(mc.registry, promhttp.HandlerOpts{})
}
