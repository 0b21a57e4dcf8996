package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	swapsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "swap",
			Name:      "executions_total",
			Help:      "Total number of swap executions by final status",
		},
		[]string{"status", "kind", "stage"}, // kind and stage are empty unless status is failed
	)

	swapDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "swap",
			Name:      "execution_duration_seconds",
			Help:      "Time from request to final swap status",
			Buckets:   []float64{.25, .5, 1, 2.5, 5, 10, 20, 30, 60, 90},
		},
		[]string{"status"},
	)

	swapStageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "swap",
			Name:      "stage_duration_seconds",
			Help:      "Time spent in each swap stage",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	swapLastTimestamp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "swap",
			Name:      "last_execution_timestamp",
			Help:      "Timestamp of the last finished swap",
		},
	)
)

// SwapMetrics provides methods to update swap-related metrics
type SwapMetrics struct{}

func NewSwapMetrics() *SwapMetrics {
	return &SwapMetrics{}
}

func (sm *SwapMetrics) RecordSwap(status, kind, stage string, duration time.Duration) {
	swapsTotal.WithLabelValues(status, kind, stage).Inc()
	swapDuration.WithLabelValues(status).Observe(duration.Seconds())
	swapLastTimestamp.Set(float64(time.Now().Unix()))
}

func (sm *SwapMetrics) RecordStage(stage string, duration time.Duration) {
	swapStageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}
