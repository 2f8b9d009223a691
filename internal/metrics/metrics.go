// Package metrics exposes Prometheus counters for document processing and
// the generation command queue.
package metrics

import (
	"net/http"
	"time"

	"github.com/Lllllllleong/vergabeflow/internal/docproc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "vergabeflow"

// Metrics groups the application's collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	DocumentsProcessed *prometheus.CounterVec // by document_type
	FileErrors         *prometheus.CounterVec // by stage
	CommandsFinished   *prometheus.CounterVec // by document_type, status
	GenerationSeconds  *prometheus.HistogramVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		DocumentsProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_processed_total",
			Help:      "Reference documents processed, by classified type.",
		}, []string{"document_type"}),
		FileErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "file_errors_total",
			Help:      "Reference files rejected or failed, by failure kind.",
		}, []string{"kind"}),
		CommandsFinished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_commands_total",
			Help:      "Generation commands finished, by document type and outcome.",
		}, []string{"document_type", "status"}),
		GenerationSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Time spent in the AI backend per document.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300},
		}, []string{"document_type"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveBatch counts the outcome of a docproc batch. Safe on a nil receiver.
func (m *Metrics) ObserveBatch(report docproc.BatchReport) {
	if m == nil {
		return
	}
	for _, doc := range report.Results {
		m.DocumentsProcessed.WithLabelValues(string(doc.DocumentType)).Inc()
	}
	for _, fe := range report.Errors {
		m.FileErrors.WithLabelValues(docproc.FailureKind(fe.Err)).Inc()
	}
}

// CommandFinished counts a finished generation command. Safe on a nil receiver.
func (m *Metrics) CommandFinished(docType, status string, took time.Duration) {
	if m == nil {
		return
	}
	m.CommandsFinished.WithLabelValues(docType, status).Inc()
	m.GenerationSeconds.WithLabelValues(docType).Observe(took.Seconds())
}
