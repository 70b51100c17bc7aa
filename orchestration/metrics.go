package orchestration

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records tool call, retrieval and cache activity of a Manager.
type Metrics struct {
	toolCalls         *prometheus.CounterVec
	toolCallDuration  *prometheus.HistogramVec
	retrievals        *prometheus.CounterVec
	retrievalDuration *prometheus.HistogramVec
	cacheEntries      *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them on reg. A nil reg
// leaves them unregistered.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		toolCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tool_calls_total",
				Help:      "Total number of tool calls",
			},
			[]string{"dataset", "backend", "status"},
		),
		toolCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "tool_call_duration_seconds",
				Help:      "Tool call duration in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"dataset", "backend"},
		),
		retrievals: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retrievals_total",
				Help:      "Total number of tool retrievals",
			},
			[]string{"dataset", "source", "status"},
		),
		retrievalDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "retrieval_duration_seconds",
				Help:      "Tool retrieval duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"dataset", "source"},
		),
		cacheEntries: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "cache_entries",
				Help:      "Entries held by each cache after the last load or save",
			},
			[]string{"cache"},
		),
	}
}

func status(failed bool) string {
	if failed {
		return "error"
	}
	return "ok"
}

// RecordToolCall records one dispatched call.
func (m *Metrics) RecordToolCall(dataset, backend string, failed bool, d time.Duration) {
	m.toolCalls.WithLabelValues(dataset, backend, status(failed)).Inc()
	m.toolCallDuration.WithLabelValues(dataset, backend).Observe(d.Seconds())
}

// RecordRetrieval records one retrieval against a local or remote source.
func (m *Metrics) RecordRetrieval(dataset, source string, failed bool, d time.Duration) {
	m.retrievals.WithLabelValues(dataset, source, status(failed)).Inc()
	m.retrievalDuration.WithLabelValues(dataset, source).Observe(d.Seconds())
}

// SetCacheEntries records the size of a cache.
func (m *Metrics) SetCacheEntries(cache string, n int) {
	m.cacheEntries.WithLabelValues(cache).Set(float64(n))
}
