package attestation

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	attestdRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attestd_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	attestdRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "attestd_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	attestdSubmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attestd_submissions_total",
		Help: "Total attestation submissions by anchoring result.",
	}, []string{"anchor"})

	attestdRevocationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attestd_revocations_total",
		Help: "Total attestation revocations.",
	})

	attestdVerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attestd_verifications_total",
		Help: "Total proof verifications by outcome.",
	}, []string{"result"})

	attestdPendingAnchors = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "attestd_pending_anchors",
		Help: "Records still carrying a synthetic pending transaction hash.",
	})
)

// PrometheusMiddleware returns a Gin middleware that records per-request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		attestdRequestsTotal.WithLabelValues(method, path, status).Inc()
		attestdRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordSubmission records a submission and whether anchoring succeeded
// inline.
func RecordSubmission(anchored bool) {
	if anchored {
		attestdSubmissionsTotal.WithLabelValues("anchored").Inc()
	} else {
		attestdSubmissionsTotal.WithLabelValues("pending").Inc()
	}
}

// RecordRevocation records an attestation revocation.
func RecordRevocation() {
	attestdRevocationsTotal.Inc()
}

// RecordVerification records a proof verification outcome.
func RecordVerification(valid bool) {
	if valid {
		attestdVerificationsTotal.WithLabelValues("valid").Inc()
	} else {
		attestdVerificationsTotal.WithLabelValues("invalid").Inc()
	}
}

// SetPendingAnchors sets the pending anchor backlog gauge.
func SetPendingAnchors(count float64) {
	attestdPendingAnchors.Set(count)
}
