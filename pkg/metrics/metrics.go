// Package metrics exposes Prometheus collectors for the import pipeline,
// curve engine, and HTTP surface.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector provides application metrics collection
type Collector struct {
	// API Metrics
	APIRequestsTotal   *prometheus.CounterVec
	APIRequestDuration *prometheus.HistogramVec

	// Import Metrics
	ImportRowsTotal     *prometheus.CounterVec
	ImportSessionsTotal *prometheus.CounterVec
	ImportBatchSize     prometheus.Histogram
	ImportDuration      prometheus.Histogram

	// Curve Engine Metrics
	CurveComputationsTotal  prometheus.Counter
	CurveComputationsFailed prometheus.Counter

	// Sync Metrics
	CatalogRefreshTotal *prometheus.CounterVec

	// Upstream API Metrics
	UpstreamRequestDuration *prometheus.HistogramVec
}

// NewCollector creates a new metrics collector
func NewCollector(namespace string) *Collector {
	return &Collector{
		APIRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Total number of API requests by endpoint, method, and status",
			},
			[]string{"endpoint", "method", "status"},
		),

		APIRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_request_duration_seconds",
				Help:      "API request duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5, 1.0, 2.0, 5.0},
			},
			[]string{"endpoint"},
		),

		ImportRowsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "import_rows_total",
				Help:      "Total CSV rows processed by outcome",
			},
			[]string{"outcome"}, // "imported", "updated", "skipped", "invalid"
		),

		ImportSessionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "import_sessions_total",
				Help:      "Total import sessions by final state",
			},
			[]string{"state"}, // "committed", "dismissed", "failed"
		),

		ImportBatchSize: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "import_batch_size",
				Help:      "Number of data rows per uploaded CSV",
				Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
			},
		),

		ImportDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "import_duration_seconds",
				Help:      "Duration of commit phases in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
			},
		),

		CurveComputationsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "curve_computations_total",
				Help:      "Total fuel curve computations",
			},
		),

		CurveComputationsFailed: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "curve_computations_failed_total",
				Help:      "Fuel curve computations rejected for invalid specs",
			},
		),

		CatalogRefreshTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "catalog_refresh_total",
				Help:      "Catalog refresh runs by result",
			},
			[]string{"result"}, // "success", "error"
		),

		UpstreamRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "upstream_request_duration_seconds",
				Help:      "Upstream NauticalFlow API call duration in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"method"},
		),
	}
}

// RecordAPIRequest increments API request counter
func (c *Collector) RecordAPIRequest(endpoint, method, status string) {
	c.APIRequestsTotal.WithLabelValues(endpoint, method, status).Inc()
}

// RecordImportSummary records the outcome counters of a committed session.
func (c *Collector) RecordImportSummary(imported, updated, skipped, invalid int) {
	c.ImportRowsTotal.WithLabelValues("imported").Add(float64(imported))
	c.ImportRowsTotal.WithLabelValues("updated").Add(float64(updated))
	c.ImportRowsTotal.WithLabelValues("skipped").Add(float64(skipped))
	c.ImportRowsTotal.WithLabelValues("invalid").Add(float64(invalid))
}
