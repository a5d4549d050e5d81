package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// enrichment pipeline.
type Metrics struct {
	RecordsProcessed prometheus.Counter
	RecordsEnriched  prometheus.Counter
	TransformErrors  prometheus.Counter
	PipelineRunning  prometheus.Gauge

	// Batch processing metrics.
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram

	// Field extraction metrics.
	ExtractionResults *prometheus.CounterVec // labels: field, outcome={hit,miss}
	MatchTimeouts     prometheus.Counter

	// Airport resolution metrics.
	AirportResolutions *prometheus.CounterVec // labels: tier={critical,high,medium,low,geocode}, outcome={hit,miss}

	// Geocoding metrics.
	GeocodeRequests  *prometheus.CounterVec // labels: outcome={success,not_found,exhausted}
	GeocodeRetries   prometheus.Counter
	GeocodeCache     *prometheus.CounterVec // labels: result={hit,miss}
	GeocodeDuration  prometheus.Histogram
	CacheDroppedRows prometheus.Counter

	// Consolidation metrics.
	DuplicatesRemoved *prometheus.CounterVec // labels: kind={exact,near}
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.RecordsProcessed,
		m.RecordsEnriched,
		m.TransformErrors,
		m.PipelineRunning,
		m.BatchSize,
		m.BatchProcessingDuration,
		m.ExtractionResults,
		m.MatchTimeouts,
		m.AirportResolutions,
		m.GeocodeRequests,
		m.GeocodeRetries,
		m.GeocodeCache,
		m.GeocodeDuration,
		m.CacheDroppedRows,
		m.DuplicatesRemoved,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RecordsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "uas_etl",
			Name:      "records_processed_total",
			Help:      "Total raw records read from chunk files.",
		}),
		RecordsEnriched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "uas_etl",
			Name:      "records_enriched_total",
			Help:      "Total records written to the enriched sink.",
		}),
		TransformErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "uas_etl",
			Name:      "transform_errors_total",
			Help:      "Total enrichment failures.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "uas_etl",
			Name:      "pipeline_running",
			Help:      "1 when the pipeline is active, 0 when shut down.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "uas_etl",
			Name:      "batch_size",
			Help:      "Number of records per chunk batch.",
			Buckets:   []float64{1, 10, 25, 50, 100, 250, 500},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "uas_etl",
			Name:      "batch_processing_duration_seconds",
			Help:      "Duration of a complete chunk extract-transform-load cycle.",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 15, 60, 300},
		}),
		ExtractionResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "uas_etl",
			Name:      "extraction_results_total",
			Help:      "Field extraction attempts by field and outcome.",
		}, []string{"field", "outcome"}),
		MatchTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "uas_etl",
			Name:      "match_timeouts_total",
			Help:      "Extraction rules that exceeded their time budget.",
		}),
		AirportResolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "uas_etl",
			Name:      "airport_resolutions_total",
			Help:      "Airport resolver attempts by tier and outcome.",
		}, []string{"tier", "outcome"}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "uas_etl",
			Name:      "geocode_requests_total",
			Help:      "Geocoding lookups by final outcome.",
		}, []string{"outcome"}),
		GeocodeRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "uas_etl",
			Name:      "geocode_retries_total",
			Help:      "Geocoding attempts retried after a transient failure.",
		}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "uas_etl",
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by result.",
		}, []string{"result"}),
		GeocodeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "uas_etl",
			Name:      "geocode_duration_seconds",
			Help:      "Geocoding API request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15},
		}),
		CacheDroppedRows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "uas_etl",
			Name:      "cache_dropped_entries_total",
			Help:      "Cache entries dropped at load time for failing validation.",
		}),
		DuplicatesRemoved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "uas_etl",
			Name:      "duplicates_removed_total",
			Help:      "Records removed during consolidation by duplicate kind.",
		}, []string{"kind"}),
	}
}
