package backend

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker"
)

var (
	roundTrip = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "agritech",
			Subsystem: "backend",
			Name:      "request_duration_seconds",
			Help:      "A histogram of backend request latencies",
			Buckets:   prometheus.DefBuckets,
		}, []string{"code", "method", "host"},
	)

	breakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "agritech",
			Subsystem: "backend",
			Name:      "breaker_state",
			Help:      "Circuit breaker state per operation (0 closed, 1 half-open, 2 open)",
		}, []string{"op"},
	)
)

func init() {
	prometheus.MustRegister(roundTrip, breakerState)
}

// InstrumentRoundTripperDuration is a helper function that copies the
// implementation provided as part of the promhttp package, but we also
// partition by requested host.
func InstrumentRoundTripperDuration(obs prometheus.ObserverVec, next http.RoundTripper) promhttp.RoundTripperFunc {
	return promhttp.RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
		start := time.Now()
		resp, err := next.RoundTrip(r)
		if err == nil {
			obs.With(
				prometheus.Labels{
					"code":   resp.Status,
					"method": r.Method,
					"host":   r.URL.Host,
				},
			).Observe(time.Since(start).Seconds())
		}
		return resp, err
	})
}

func recordBreakerState(op string, state gobreaker.State) {
	breakerState.WithLabelValues(op).Set(float64(state))
}
