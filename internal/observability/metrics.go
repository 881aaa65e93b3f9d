package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "colorbar_ts"

// Metrics holds the Prometheus counters, histograms, and gauges for the time-series engine.
type Metrics struct {
	// Image loading metrics.
	ImageFetches       *prometheus.CounterVec // labels: outcome={success,error}
	ImageFetchDuration prometheus.Histogram
	CacheLookups       *prometheus.CounterVec // labels: result={hit,pending,miss}
	CacheEntries       prometheus.Gauge
	PrefetchQueued     *prometheus.CounterVec // labels: window={in,out}
	DomainSwitches     prometheus.Counter

	// Calibration metrics.
	Calibrations     *prometheus.CounterVec // labels: mode={continuous,stratified,passthrough,empty}
	CalibrationCache *prometheus.CounterVec // labels: result={hit,miss}

	// Generation metrics.
	Generations        *prometheus.CounterVec // labels: outcome={complete,cancelled,failed}
	GenerationDuration prometheus.Histogram
	MissingSamples     prometheus.Counter
	ResultsPublished   *prometheus.CounterVec // labels: outcome={success,error}
}

// NewMetrics creates and registers all engine metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith registers the engine metrics with reg. Command-line tools use
// a private registry so nothing leaks into the process-wide default.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	m := newMetrics(true)
	reg.MustRegister(
		m.ImageFetches,
		m.ImageFetchDuration,
		m.CacheLookups,
		m.CacheEntries,
		m.PrefetchQueued,
		m.DomainSwitches,
		m.Calibrations,
		m.CalibrationCache,
		m.Generations,
		m.GenerationDuration,
		m.MissingSamples,
		m.ResultsPublished,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics(false)
}

func newMetrics(withHelp bool) *Metrics {
	help := func(s string) string {
		if withHelp {
			return s
		}
		return ""
	}
	return &Metrics{
		ImageFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "image_fetches_total",
			Help:      help("Image fetches by outcome."),
		}, []string{"outcome"}),
		ImageFetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "image_fetch_duration_seconds",
			Help:      help("Duration of a single image fetch and decode."),
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      help("Image cache lookups by result."),
		}, []string{"result"}),
		CacheEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_entries",
			Help:      help("Images held by the cache for the active domain."),
		}),
		PrefetchQueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prefetch_queued_total",
			Help:      help("URLs submitted to the background loader by window."),
		}, []string{"window"}),
		DomainSwitches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "domain_switches_total",
			Help:      help("Active domain changes."),
		}),
		Calibrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calibrations_total",
			Help:      help("Legend calibrations by interpolation mode."),
		}, []string{"mode"}),
		CalibrationCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calibration_cache_total",
			Help:      help("Calibration cache lookups by result."),
		}, []string{"result"}),
		Generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      help("Time-series generations by outcome."),
		}, []string{"outcome"}),
		GenerationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      help("Duration of a complete time-series generation."),
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		MissingSamples: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "missing_samples_total",
			Help:      help("Samples left empty because an image failed to load."),
		}),
		ResultsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "results_published_total",
			Help:      help("Finished results published to Kafka by outcome."),
		}, []string{"outcome"}),
	}
}
