package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "gridetl"

// Metrics holds the Prometheus collectors for the ETL pipelines.
type Metrics struct {
	RowsRead        *prometheus.CounterVec // labels: dataset
	RecordsDropped  *prometheus.CounterVec // labels: dataset, reason={invalid_state,missing_required,out_of_range}
	RecordsEmitted  *prometheus.CounterVec // labels: dataset
	DatasetsSkipped *prometheus.CounterVec // labels: dataset, reason={missing,malformed,empty}
	FilesPublished  *prometheus.CounterVec // labels: file

	// Remote fetch metrics.
	FetchRequests *prometheus.CounterVec   // labels: source, outcome={success,error,not_found,cache_hit}
	FetchDuration *prometheus.HistogramVec // labels: source

	LastSuccess *prometheus.GaugeVec // labels: command; unix seconds

	registry *prometheus.Registry
}

func newMetrics() *Metrics {
	return &Metrics{
		RowsRead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_read_total",
			Help:      "Raw rows read from input files and API responses.",
		}, []string{"dataset"}),
		RecordsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_dropped_total",
			Help:      "Rows rejected during normalization by reason.",
		}, []string{"dataset", "reason"}),
		RecordsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_emitted_total",
			Help:      "Records written to raw or output files.",
		}, []string{"dataset"}),
		DatasetsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "datasets_skipped_total",
			Help:      "Dataset years or files skipped by reason.",
		}, []string{"dataset", "reason"}),
		FilesPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_published_total",
			Help:      "Output documents published.",
		}, []string{"file"}),
		FetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_requests_total",
			Help:      "Remote fetches by source and outcome.",
		}, []string{"source", "outcome"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Remote fetch duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
		}, []string{"source"}),
		LastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run per command.",
		}, []string{"command"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.RowsRead,
		m.RecordsDropped,
		m.RecordsEmitted,
		m.DatasetsSkipped,
		m.FilesPublished,
		m.FetchRequests,
		m.FetchDuration,
		m.LastSuccess,
	}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	m := newMetrics()
	m.registry = prometheus.NewRegistry()
	m.registry.MustRegister(m.collectors()...)
	return m
}

// Gatherer returns the registry the metrics were registered with.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	if m.registry != nil {
		return m.registry
	}
	return prometheus.DefaultGatherer
}

// WriteTextfile dumps the current metric values in the node-exporter
// textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.Gatherer()); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
