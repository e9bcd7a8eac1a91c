package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Trigger labels for brief runs.
const (
	TriggerAPI       = "api"
	TriggerScheduler = "scheduler"
)

var (
	once sync.Once

	BriefRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "morningbrief",
			Subsystem: "brief",
			Name:      "runs_total",
			Help:      "Brief runs by trigger and result",
		},
		[]string{"trigger", "result"},
	)

	BriefDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "morningbrief",
			Subsystem: "brief",
			Name:      "run_seconds",
			Help:      "Wall time of a brief run, including delivery",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"trigger"},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(BriefRuns, BriefDuration)
	})
}

// ObserveRun records one run. result is "ok", "skipped" or "error".
func ObserveRun(trigger, result string, seconds float64) {
	BriefRuns.WithLabelValues(trigger, result).Inc()
	BriefDuration.WithLabelValues(trigger).Observe(seconds)
}
