// Package telemetry provides application-level observability for the petition
// platform: the slog default logger and the Prometheus metrics registered
// against the default registry.
//
// Metrics are served on a side-channel HTTP port (default 9090, configured by
// telemetry.metrics.prometheus_port) started by cmd/server, not by the Gin
// router, so the scrape path stays off the public ingress and outside the
// rate-limiting middleware.
//
// HTTP metrics use the Gin route template (c.FullPath(), e.g.
// /petitions/:id/sign) as the path label rather than the raw URL to prevent
// unbounded label cardinality from user-supplied path segments such as slugs.
package telemetry

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal counts processed HTTP requests by method, route
	// template, and status code.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration is a latency histogram by method and route template.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)

	// SignaturesCreatedTotal counts accepted signature submissions.
	SignaturesCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "signatures_created_total",
			Help: "Total number of signatures accepted (before confirmation).",
		},
	)

	// SignaturesConfirmedTotal counts successful confirmation-code redemptions.
	SignaturesConfirmedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "signatures_confirmed_total",
			Help: "Total number of signatures confirmed via emailed code.",
		},
	)

	// SignaturesThrottledTotal counts signature submissions rejected by the
	// per-address throttle.
	SignaturesThrottledTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "signatures_throttled_total",
			Help: "Total number of signature submissions rejected by the address throttle.",
		},
	)

	// ConfirmationEmailsTotal counts outbound confirmation emails by result
	// ("sent" or "error"). Delivery is fire-and-forget; errors here never
	// roll back the signature row.
	ConfirmationEmailsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "confirmation_emails_total",
			Help: "Total number of confirmation email deliveries attempted, by result.",
		},
		[]string{"result"},
	)

	// DBConnectionsInUse gauges the connection pool, polled every 30s.
	DBConnectionsInUse = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_in_use",
			Help: "Number of database connections currently in use.",
		},
	)
)

// StartDBPoolGauge polls db.Stats() every 30 seconds and exports the in-use
// connection count. It returns immediately; the polling goroutine exits when
// stop is closed.
func StartDBPoolGauge(db *sql.DB, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				DBConnectionsInUse.Set(float64(db.Stats().InUse))
			case <-stop:
				slog.Debug("db pool gauge stopped")
				return
			}
		}
	}()
}
