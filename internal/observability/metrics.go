package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for flume runs.
type Metrics struct {
	Runs              *prometheus.CounterVec // labels: outcome={success,failure}
	StationsProcessed prometheus.Counter
	StageErrors       *prometheus.CounterVec // labels: stage={extract,analyze,load}
	RunDuration       prometheus.Histogram
	LastSuccess       prometheus.Gauge
	Exports           *prometheus.CounterVec // labels: sink={csv,kafka,sqlite}
	JumpSummary       *prometheus.GaugeVec   // labels: variable=Fr01..L_exp
	ResultCache       *prometheus.CounterVec // labels: result={hit,miss}
	PipelineRunning   prometheus.Gauge

	collectors []prometheus.Collector
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors...)
	return m
}

// NewMetricsForTesting creates Metrics that are not registered anywhere, so
// several tests can build their own without "already registered" panics.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	m := &Metrics{
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flume_etl",
			Name:      "runs_total",
			Help:      "Completed pipeline runs by outcome.",
		}, []string{"outcome"}),
		StationsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flume_etl",
			Name:      "stations_processed_total",
			Help:      "Station rows derived across all successful runs.",
		}),
		StageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flume_etl",
			Name:      "stage_errors_total",
			Help:      "Run failures by pipeline stage.",
		}, []string{"stage"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "flume_etl",
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete load-derive-export run.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "flume_etl",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}),
		Exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flume_etl",
			Name:      "exports_total",
			Help:      "Results delivered by sink.",
		}, []string{"sink"}),
		JumpSummary: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "flume_etl",
			Name:      "jump_summary",
			Help:      "Unrounded jump summary values of the last successful run.",
		}, []string{"variable"}),
		ResultCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flume_etl",
			Name:      "result_cache_total",
			Help:      "Analysis result cache lookups by result.",
		}, []string{"result"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "flume_etl",
			Name:      "pipeline_running",
			Help:      "1 while a run is in progress, 0 otherwise.",
		}),
	}

	m.collectors = []prometheus.Collector{
		m.Runs,
		m.StationsProcessed,
		m.StageErrors,
		m.RunDuration,
		m.LastSuccess,
		m.Exports,
		m.JumpSummary,
		m.ResultCache,
		m.PipelineRunning,
	}
	return m
}

// Register adds every collector to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// WriteTextfile writes everything registered on the default registry to path
// in the Prometheus text format, for node_exporter's textfile collector.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
