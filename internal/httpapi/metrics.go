package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

// rejection reasons for verify requests turned away before or at the gate
const (
	rejectTooLarge     = "body_too_large"
	rejectContentType  = "unsupported_content_type"
	rejectMalformed    = "malformed_body"
	rejectQueueTimeout = "queue_timeout"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vlmcheck",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status",
		},
		[]string{"path", "method", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vlmcheck",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"path", "method"},
	)

	httpInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "vlmcheck",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "HTTP requests currently being served",
		},
	)

	verifyRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vlmcheck",
			Subsystem: "http",
			Name:      "verify_rejected_total",
			Help:      "Verify requests rejected by the transport, by reason",
		},
		[]string{"reason"},
	)

	verifyImageBytes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "vlmcheck",
			Subsystem: "http",
			Name:      "verify_image_bytes",
			Help:      "Size of decoded verify images in bytes",
			Buckets:   prometheus.ExponentialBuckets(16<<10, 4, 7),
		},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal, httpRequestDuration, httpInflight, verifyRejectedTotal, verifyImageBytes)
}

// statusRecorder captures the status code for the request counters.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Unwrap() http.ResponseWriter { return sr.ResponseWriter }

// MetricsMiddleware instruments requests for Prometheus. Labels use the chi
// route pattern, which is only resolved once next has routed the request.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpInflight.Inc()
		defer httpInflight.Dec()

		sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sr, r)
		path := routePatternOrPath(r)
		httpRequestsTotal.WithLabelValues(path, r.Method, strconv.Itoa(sr.status)).Inc()
		httpRequestDuration.WithLabelValues(path, r.Method).Observe(time.Since(start).Seconds())
	})
}

// routePatternOrPath keeps label cardinality bounded: unmatched requests
// share a single label instead of one per raw path.
func routePatternOrPath(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// countRejection records a verify request turned away with a 4xx.
func countRejection(status int) {
	var reason string
	switch status {
	case http.StatusRequestEntityTooLarge:
		reason = rejectTooLarge
	case http.StatusUnsupportedMediaType:
		reason = rejectContentType
	case http.StatusTooManyRequests:
		reason = rejectQueueTimeout
	default:
		reason = rejectMalformed
	}
	verifyRejectedTotal.WithLabelValues(reason).Inc()
}
