// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "docchat"

var (
	QuestionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "questions_total",
			Help:      "Questions answered, by outcome",
		},
		[]string{"status"},
	)

	IndexBuildsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_builds_total",
			Help:      "Index rebuilds, by result",
		},
		[]string{"result"}, // "ok" / "empty" / "error"
	)

	IndexChunks = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "index_chunks",
			Help:      "Number of chunks per built index",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		},
	)

	EmbedDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "embed_duration_seconds",
			Help:      "Embedding call duration in seconds",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"phase"}, // "corpus" / "query"
	)

	ExtractDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extract_duration_seconds",
			Help:      "Answer extraction duration in seconds",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	SessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Sessions currently held in memory",
		},
	)
)

func init() {
	prometheus.MustRegister(QuestionsTotal)
	prometheus.MustRegister(IndexBuildsTotal)
	prometheus.MustRegister(IndexChunks)
	prometheus.MustRegister(EmbedDuration)
	prometheus.MustRegister(ExtractDuration)
	prometheus.MustRegister(SessionsActive)
}
