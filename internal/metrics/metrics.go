// Package metrics holds the Prometheus collectors for uploads, indexing and
// question answering.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pdfchat"

// Result labels
const (
	ResultOK        = "ok"
	ResultDuplicate = "duplicate"
	ResultError     = "error"
	ResultRejected  = "rejected"
)

// Metrics is a set of collectors bound to their own registry, so several
// instances can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	Uploads        *prometheus.CounterVec
	ChunksIndexed  prometheus.Counter
	Questions      *prometheus.CounterVec
	AnswerDuration prometheus.Histogram
	IndexSize      prometheus.Gauge
}

// New creates the collectors and registers them, together with the Go
// runtime and process collectors, on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		Uploads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "uploads_total",
				Help:      "PDF uploads by result (ok, duplicate, error)",
			},
			[]string{"result"},
		),
		ChunksIndexed: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "chunks_indexed_total",
				Help:      "Chunks added to the vector index",
			},
		),
		Questions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "questions_total",
				Help:      "Questions by result (ok, error, rejected)",
			},
			[]string{"result"},
		),
		AnswerDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "answer_duration_seconds",
				Help:      "Time from question to answer, retrieval included",
				Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
		),
		IndexSize: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "index_entries",
				Help:      "Entries currently held by the vector index",
			},
		),
	}
}

// ObserveAnswer records one answered question
func (m *Metrics) ObserveAnswer(result string, started time.Time) {
	m.Questions.WithLabelValues(result).Inc()
	m.AnswerDuration.Observe(time.Since(started).Seconds())
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
