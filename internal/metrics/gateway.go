package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	gatewayAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "attempts_total",
			Help:      "Ledger operation attempts by endpoint and outcome",
		},
		[]string{"operation", "endpoint", "outcome"}, // outcome: success, incompatible, rejected, transport
	)

	gatewayAttemptDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "attempt_duration_seconds",
			Help:      "Latency of one ledger operation attempt against one endpoint",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation", "endpoint"},
	)
)

// GatewayMetrics records ledger gateway attempts. It satisfies
// gateway.Metrics.
type GatewayMetrics struct{}

func NewGatewayMetrics() *GatewayMetrics {
	return &GatewayMetrics{}
}

func (gm *GatewayMetrics) RecordAttempt(operation, endpoint, outcome string, duration time.Duration) {
	gatewayAttemptsTotal.WithLabelValues(operation, endpoint, outcome).Inc()
	gatewayAttemptDuration.WithLabelValues(operation, endpoint).Observe(duration.Seconds())
}
