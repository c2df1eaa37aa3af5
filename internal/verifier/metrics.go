package verifier

import "github.com/prometheus/client_golang/prometheus"

var (
	verificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vlmcheck",
			Name:      "verifications_total",
			Help:      "Verifications by outcome",
		},
		[]string{"outcome"},
	)

	verificationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vlmcheck",
			Name:      "verification_duration_seconds",
			Help:      "End-to-end verification duration in seconds, including queueing",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"outcome"},
	)

	gateInflight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "vlmcheck",
		Subsystem: "gate",
		Name:      "inflight",
		Help:      "Model calls currently holding an admission slot",
	})

	gateWaiting = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "vlmcheck",
		Subsystem: "gate",
		Name:      "waiting",
		Help:      "Verifications waiting for an admission slot",
	})

	gateCapacity = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "vlmcheck",
		Subsystem: "gate",
		Name:      "capacity",
		Help:      "Configured admission slots",
	})
)

func init() {
	prometheus.MustRegister(verificationsTotal, verificationDuration, gateInflight, gateWaiting, gateCapacity)
}
