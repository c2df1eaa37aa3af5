package vlm

import "github.com/prometheus/client_golang/prometheus"

var (
	upstreamAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vlmcheck",
			Subsystem: "upstream",
			Name:      "attempts_total",
			Help:      "Upstream chat-completion attempts by result",
		},
		[]string{"result"},
	)

	upstreamAttemptDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "vlmcheck",
			Subsystem: "upstream",
			Name:      "attempt_duration_seconds",
			Help:      "Duration of single upstream attempts in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)
)

func init() {
	prometheus.MustRegister(upstreamAttemptsTotal, upstreamAttemptDuration)
}

// attempt result labels
const (
	resultOK        = "ok"
	resultTransient = "transient_error"
	resultProtocol  = "protocol_error"
	resultCanceled  = "canceled"
)
