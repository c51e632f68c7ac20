// ABOUTME: Prometheus collectors for the question pipeline, index builds and ingestion
// ABOUTME: A nil *Metrics is valid and records nothing
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cenly"

// Metrics owns a private registry so tests and multiple apps never collide
type Metrics struct {
	registry *prometheus.Registry

	chatRequests    *prometheus.CounterVec
	chatDuration    prometheus.Histogram
	retrieved       prometheus.Histogram
	emptyResponses  prometheus.Counter
	indexEntries    prometheus.Gauge
	indexBuilds     *prometheus.CounterVec
	ingestFailures  prometheus.Counter
	ingestDocuments prometheus.Counter
}

// New registers all collectors on a fresh registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		chatRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_requests_total",
			Help:      "Questions answered, by outcome.",
		}, []string{"status"}),
		chatDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chat_duration_seconds",
			Help:      "End-to-end time to answer a question.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
		retrieved: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieved_chunks",
			Help:      "Passages placed into the prompt context.",
			Buckets:   prometheus.LinearBuckets(0, 1, 11),
		}),
		emptyResponses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "empty_responses_total",
			Help:      "Blank completions replaced by the placeholder answer.",
		}),
		indexEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "index_entries",
			Help:      "Chunks in the active vector index.",
		}),
		indexBuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_builds_total",
			Help:      "Index builds, by outcome.",
		}, []string{"status"}),
		ingestFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_failures_total",
			Help:      "Source files that could not be loaded.",
		}),
		ingestDocuments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_documents_total",
			Help:      "Documents (pages, sheets, files) loaded.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.chatRequests,
		m.chatDuration,
		m.retrieved,
		m.emptyResponses,
		m.indexEntries,
		m.indexBuilds,
		m.ingestFailures,
		m.ingestDocuments,
	)
	return m
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveChat records one answered (or failed) question
func (m *Metrics) ObserveChat(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.chatRequests.WithLabelValues(status(err)).Inc()
	m.chatDuration.Observe(d.Seconds())
}

// ObserveRetrieval records how many passages were used
func (m *Metrics) ObserveRetrieval(n int) {
	if m == nil {
		return
	}
	m.retrieved.Observe(float64(n))
}

// EmptyResponse counts a placeholder substitution
func (m *Metrics) EmptyResponse() {
	if m == nil {
		return
	}
	m.emptyResponses.Inc()
}

// IndexBuilt records a build attempt and, on success, the entry count
func (m *Metrics) IndexBuilt(entries int, err error) {
	if m == nil {
		return
	}
	m.indexBuilds.WithLabelValues(status(err)).Inc()
	if err == nil {
		m.indexEntries.Set(float64(entries))
	}
}

// IndexLoaded sets the entry gauge for an index read from disk
func (m *Metrics) IndexLoaded(entries int) {
	if m == nil {
		return
	}
	m.indexEntries.Set(float64(entries))
}

// Ingested records loaded documents and per-file failures
func (m *Metrics) Ingested(documents, failures int) {
	if m == nil {
		return
	}
	m.ingestDocuments.Add(float64(documents))
	m.ingestFailures.Add(float64(failures))
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
