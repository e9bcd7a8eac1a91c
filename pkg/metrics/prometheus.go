package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain repository.Metrics using Prometheus.
type Recorder struct {
	fetches     *prometheus.CounterVec
	signals     *prometheus.CounterVec
	regimes     *prometheus.CounterVec
	deliveries  *prometheus.CounterVec
	errorsTotal *prometheus.CounterVec
	latency     *prometheus.HistogramVec
}

// New registers the recorder's collectors on the default registry. Call it once
// per process.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		fetches: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "morningbrief_provider_fetch_total",
				Help: "Market data fetches by serving source, data kind and outcome",
			},
			[]string{"source", "kind", "outcome"},
		),
		signals: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "morningbrief_signals_total",
				Help: "Signals emitted by the engine, by level",
			},
			[]string{"level"},
		),
		regimes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "morningbrief_regime_total",
				Help: "Regime classifications, by label",
			},
			[]string{"label"},
		),
		deliveries: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "morningbrief_deliveries_total",
				Help: "Brief deliveries by channel and outcome",
			},
			[]string{"channel", "outcome"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "morningbrief_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "morningbrief_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordFetch(source, kind, outcome string) {
	r.fetches.WithLabelValues(source, kind, outcome).Inc()
}

func (r *Recorder) RecordSignal(level string) {
	r.signals.WithLabelValues(level).Inc()
}

func (r *Recorder) RecordRegime(label string) {
	r.regimes.WithLabelValues(label).Inc()
}

func (r *Recorder) RecordDelivery(channel, outcome string) {
	r.deliveries.WithLabelValues(channel, outcome).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
