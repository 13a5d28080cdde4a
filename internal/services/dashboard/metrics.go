package dashboard

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	duration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "agritech",
			Name:      "server_request_duration_seconds",
			Help:      "A histogram of the latency in seconds for serving dashboard requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"code", "method"},
	)

	readingsApplied = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "agritech",
			Subsystem: "feed",
			Name:      "readings_applied_total",
			Help:      "Sensor readings applied to the live dashboard",
		},
	)

	readingsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agritech",
			Subsystem: "feed",
			Name:      "readings_dropped_total",
			Help:      "Sensor readings discarded before being applied, by reason",
		}, []string{"reason"},
	)

	activeAlerts = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "agritech",
			Subsystem: "feed",
			Name:      "active_alerts",
			Help:      "Number of alerts derived from the latest reading",
		},
	)

	feedConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "agritech",
			Subsystem: "feed",
			Name:      "connected",
			Help:      "1 while the push transport is connected",
		},
	)

	rateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agritech",
			Name:      "rate_limited_requests",
			Help:      "A counter of rate limited backend requests",
		}, []string{"path"},
	)

	notificationsRaised = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agritech",
			Name:      "notifications_total",
			Help:      "Toasts raised, by type",
		}, []string{"type"},
	)
)

func init() {
	prometheus.MustRegister(duration, readingsApplied, readingsDropped, activeAlerts, feedConnected, rateLimited, notificationsRaised)
}

// MetricsMiddleware records the duration of every request served by the
// dashboard, partitioned by method and status code.
func MetricsMiddleware(next http.Handler) http.Handler {
	return promhttp.InstrumentHandlerDuration(duration, next)
}
