package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// aggregation engine.
type Metrics struct {
	PagesFetched     prometheus.Counter
	PageFetchErrors  prometheus.Counter
	AuthFailures     prometheus.Counter
	PointsMerged     prometheus.Counter
	ValidationSkips  prometheus.Counter
	ClassifyFailures prometheus.Counter
	StaleDropped     prometheus.Counter
	ScanRunning      prometheus.Gauge

	PageFetchDuration prometheus.Histogram
	ScanDuration      prometheus.Histogram

	// Page cache metrics. Labels: result={hit,miss}.
	PageCache *prometheus.CounterVec

	// Kafka export metrics.
	PointsExported prometheus.Counter
	ExportErrors   prometheus.Counter
}

// NewMetrics creates and registers all engine metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		PagesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hmpi_engine",
			Name:      "pages_fetched_total",
			Help:      "Total map-data pages successfully fetched.",
		}),
		PageFetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hmpi_engine",
			Name:      "page_fetch_errors_total",
			Help:      "Total failed map-data page requests.",
		}),
		AuthFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hmpi_engine",
			Name:      "auth_failures_total",
			Help:      "Total requests rejected for missing or invalid credentials.",
		}),
		PointsMerged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hmpi_engine",
			Name:      "points_merged_total",
			Help:      "Total sample points merged into an aggregate.",
		}),
		ValidationSkips: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hmpi_engine",
			Name:      "validation_skips_total",
			Help:      "Total records dropped for missing or out-of-range coordinates.",
		}),
		ClassifyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hmpi_engine",
			Name:      "classification_failures_total",
			Help:      "Total records dropped for unclassifiable pollution scores.",
		}),
		StaleDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hmpi_engine",
			Name:      "stale_responses_dropped_total",
			Help:      "Total page responses discarded because the filter changed mid-flight.",
		}),
		ScanRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hmpi_engine",
			Name:      "scan_running",
			Help:      "1 while a full page scan is in progress, 0 otherwise.",
		}),
		PageFetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hmpi_engine",
			Name:      "page_fetch_duration_seconds",
			Help:      "Duration of a single map-data page request.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		ScanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hmpi_engine",
			Name:      "scan_duration_seconds",
			Help:      "Duration of a complete multi-page scan for one filter.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		PageCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hmpi_engine",
			Name:      "page_cache_total",
			Help:      "Page cache lookups by result.",
		}, []string{"result"}),
		PointsExported: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hmpi_engine",
			Name:      "points_exported_total",
			Help:      "Total classified points published to the sink topic.",
		}),
		ExportErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hmpi_engine",
			Name:      "export_errors_total",
			Help:      "Total failed sink topic publishes.",
		}),
	}

	prometheus.MustRegister(
		m.PagesFetched,
		m.PageFetchErrors,
		m.AuthFailures,
		m.PointsMerged,
		m.ValidationSkips,
		m.ClassifyFailures,
		m.StaleDropped,
		m.ScanRunning,
		m.PageFetchDuration,
		m.ScanDuration,
		m.PageCache,
		m.PointsExported,
		m.ExportErrors,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		PagesFetched:      prometheus.NewCounter(prometheus.CounterOpts{Namespace: "hmpi_engine", Name: "pages_fetched_total"}),
		PageFetchErrors:   prometheus.NewCounter(prometheus.CounterOpts{Namespace: "hmpi_engine", Name: "page_fetch_errors_total"}),
		AuthFailures:      prometheus.NewCounter(prometheus.CounterOpts{Namespace: "hmpi_engine", Name: "auth_failures_total"}),
		PointsMerged:      prometheus.NewCounter(prometheus.CounterOpts{Namespace: "hmpi_engine", Name: "points_merged_total"}),
		ValidationSkips:   prometheus.NewCounter(prometheus.CounterOpts{Namespace: "hmpi_engine", Name: "validation_skips_total"}),
		ClassifyFailures:  prometheus.NewCounter(prometheus.CounterOpts{Namespace: "hmpi_engine", Name: "classification_failures_total"}),
		StaleDropped:      prometheus.NewCounter(prometheus.CounterOpts{Namespace: "hmpi_engine", Name: "stale_responses_dropped_total"}),
		ScanRunning:       prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "hmpi_engine", Name: "scan_running"}),
		PageFetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "hmpi_engine", Name: "page_fetch_duration_seconds"}),
		ScanDuration:      prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "hmpi_engine", Name: "scan_duration_seconds"}),
		PageCache:         prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "hmpi_engine", Name: "page_cache_total"}, []string{"result"}),
		PointsExported:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: "hmpi_engine", Name: "points_exported_total"}),
		ExportErrors:      prometheus.NewCounter(prometheus.CounterOpts{Namespace: "hmpi_engine", Name: "export_errors_total"}),
	}
}
