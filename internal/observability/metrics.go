package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	activeStores           prometheus.Gauge
	memoryRecordsTotal     prometheus.Gauge
	memorySearchDuration   prometheus.Histogram
	memoryWriteDuration    prometheus.Histogram
	memoryTimelineDuration prometheus.Histogram

	toolExecutionTotal    *prometheus.CounterVec
	toolExecutionDuration *prometheus.HistogramVec
	toolErrorsTotal       *prometheus.CounterVec
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			activeStores: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "active_stores",
					Help: "Currently open per-user memory stores.",
				},
			),
			memoryRecordsTotal: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "memory_records_total",
					Help: "Total live (non-archived) memory records in the last inspected store.",
				},
			),
			memorySearchDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "memory_search_duration_seconds",
					Help:    "Memory search duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			memoryWriteDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "memory_write_duration_seconds",
					Help:    "Memory save/patch/archive duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			memoryTimelineDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "memory_timeline_duration_seconds",
					Help:    "Memory timeline assembly duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			toolExecutionTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "tool_execution_total",
					Help: "Total tool executions by tool and status.",
				},
				[]string{"tool", "status"},
			),
			toolExecutionDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "tool_execution_duration_seconds",
					Help:    "Tool execution duration in seconds by tool.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"tool"},
			),
			toolErrorsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "tool_errors_total",
					Help: "Total tool execution errors by tool.",
				},
				[]string{"tool"},
			),
		}

		prometheus.MustRegister(
			m.activeStores,
			m.memoryRecordsTotal,
			m.memorySearchDuration,
			m.memoryWriteDuration,
			m.memoryTimelineDuration,
			m.toolExecutionTotal,
			m.toolExecutionDuration,
			m.toolErrorsTotal,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func SetActiveStores(count int) {
	m := getMetrics()
	m.activeStores.Set(float64(count))
}

func SetMemoryRecords(total int) {
	m := getMetrics()
	m.memoryRecordsTotal.Set(float64(total))
}

func RecordMemorySearch(duration time.Duration) {
	m := getMetrics()
	m.memorySearchDuration.Observe(duration.Seconds())
}

func RecordMemoryWrite(duration time.Duration) {
	m := getMetrics()
	m.memoryWriteDuration.Observe(duration.Seconds())
}

func RecordMemoryTimeline(duration time.Duration) {
	m := getMetrics()
	m.memoryTimelineDuration.Observe(duration.Seconds())
}

func RecordToolExecution(tool string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.toolExecutionTotal.WithLabelValues(tool, status).Inc()
	m.toolExecutionDuration.WithLabelValues(tool).Observe(duration.Seconds())
	if !success {
		m.toolErrorsTotal.WithLabelValues(tool).Inc()
	}
}
