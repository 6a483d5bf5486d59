package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/petition-platform/petition-platform/internal/telemetry"
)

// MetricsMiddleware records two Prometheus metrics for every request that
// passes through the router:
//
//   - http_requests_total{method, path, status}    — CounterVec
//   - http_request_duration_seconds{method, path}  — HistogramVec
//
// The path label is set from c.FullPath(), which returns the matched Gin
// route template (e.g. /petitions/:id/sign) rather than the raw URL, so
// user-supplied path segments such as slugs cannot inflate label cardinality.
// Requests that match no registered route use the literal "<no-route>".
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "<no-route>"
		}

		duration := time.Since(start).Seconds()
		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		telemetry.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		telemetry.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}
