package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Drop reason labels for the records_dropped_total counter.
const (
	ReasonMalformed  = "malformed"
	ReasonDegenerate = "degenerate"
	ReasonSampling   = "sampling"
)

// Metrics contains the pipeline's metric set: admission counters owned by
// the feeder, shedding state gauges, and match output counters.
type Metrics struct {
	// Admission metrics
	RecordsSeen      prometheus.Counter
	RecordsAdmitted  prometheus.Counter
	RecordsProtected prometheus.Counter
	RecordsDropped   *prometheus.CounterVec

	// Shedding metrics
	SamplingRate  prometheus.Gauge
	ProtectedKeys prometheus.Gauge
	BatchLatency  prometheus.Histogram

	// Evaluation metrics
	MatchesTotal   prometheus.Counter
	PartialMatches prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all pipeline metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		RecordsSeen: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "streamcep",
				Subsystem: "admission",
				Name:      "records_seen_total",
				Help:      "Total number of raw records read from the source",
			},
		),

		RecordsAdmitted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "streamcep",
				Subsystem: "admission",
				Name:      "records_admitted_total",
				Help:      "Total number of records pushed downstream",
			},
		),

		RecordsProtected: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "streamcep",
				Subsystem: "admission",
				Name:      "records_protected_total",
				Help:      "Total number of records admitted because a correlation key was protected",
			},
		),

		RecordsDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "streamcep",
				Subsystem: "admission",
				Name:      "records_dropped_total",
				Help:      "Total number of records dropped, by reason",
			},
			[]string{"reason"},
		),

		SamplingRate: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "streamcep",
				Subsystem: "shedding",
				Name:      "sampling_rate",
				Help:      "Current admission sampling rate",
			},
		),

		ProtectedKeys: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "streamcep",
				Subsystem: "shedding",
				Name:      "protected_keys",
				Help:      "Size of the current protected correlation-key set",
			},
		),

		BatchLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "streamcep",
				Subsystem: "shedding",
				Name:      "batch_latency_milliseconds",
				Help:      "Per-event batch latency samples fed to the controller",
				Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
			},
		),

		MatchesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "streamcep",
				Subsystem: "evaluation",
				Name:      "matches_total",
				Help:      "Total number of completed pattern matches",
			},
		),

		PartialMatches: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "streamcep",
				Subsystem: "evaluation",
				Name:      "partial_matches",
				Help:      "Partial matches held across the evaluation tree at last inspection",
			},
		),
	}
}
