package dashboard

import (
	"encoding/json"
	"net/http"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthService is the gRPC health service name tracking the live feed.
const HealthService = "agritech.dashboard.Feed"

// connChecker is satisfied by mqtt.Client.
type connChecker interface {
	IsConnectionOpen() bool
}

// HealthStatus is the body of /healthz.
type HealthStatus struct {
	Status          string  `json:"status"`
	MQTTConnected   bool    `json:"mqtt_connected"`
	FeedConnected   bool    `json:"feed_connected"`
	InfluxEnabled   bool    `json:"influx_enabled"`
	LastWriteErrorS float64 `json:"last_write_error_age_sec"`
	Applied         uint64  `json:"readings_applied"`
	Dropped         uint64  `json:"readings_dropped"`
}

type healthHandler struct {
	mqtt connChecker
	feed *Feed
	sink *ReadingSink
}

// NewHealthHandler always answers 200 with the state of every dependency.
// The history sink is optional.
func NewHealthHandler(m connChecker, feed *Feed, sink *ReadingSink) http.Handler {
	return &healthHandler{mqtt: m, feed: feed, sink: sink}
}

func (h *healthHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	snap := h.feed.Snapshot()
	st := HealthStatus{
		MQTTConnected:   h.mqtt != nil && h.mqtt.IsConnectionOpen(),
		FeedConnected:   snap.Connected,
		InfluxEnabled:   h.sink != nil,
		LastWriteErrorS: h.sink.LastErrorAge().Seconds(),
		Applied:         snap.Applied,
		Dropped:         snap.Dropped,
	}

	influxOK := !st.InfluxEnabled || h.sink.LastErrorAge() > 30*time.Second
	switch {
	case st.MQTTConnected && influxOK:
		st.Status = "ok"
	case st.MQTTConnected || st.FeedConnected:
		st.Status = "degraded"
	default:
		st.Status = "down"
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(st)
}

type readyHandler struct {
	mqtt     connChecker
	sink     *ReadingSink
	minError time.Duration
}

// NewReadyHandler answers 200 only when the broker connection is open and
// the sink, if any, has not failed within minOkErrorAge.
func NewReadyHandler(m connChecker, sink *ReadingSink, minOkErrorAge time.Duration) http.Handler {
	return &readyHandler{mqtt: m, sink: sink, minError: minOkErrorAge}
}

func (h *readyHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	ready := h.mqtt != nil && h.mqtt.IsConnectionOpen() && h.sink.LastErrorAge() > h.minError

	w.Header().Set("Content-Type", "application/json")
	if !ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(struct {
		Ready bool `json:"ready"`
	}{Ready: ready})
}

// RegisterHealthServer exposes the standard gRPC health service on srv and
// keeps HealthService in step with the feed connection.
func RegisterHealthServer(srv *grpc.Server, feed *Feed) *health.Server {
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	TrackFeedHealth(hs, feed)
	return hs
}

// TrackFeedHealth sets HealthService to SERVING while the feed is connected.
func TrackFeedHealth(hs *health.Server, feed *Feed) {
	set := func(snap *Snapshot) {
		status := healthpb.HealthCheckResponse_NOT_SERVING
		if snap.Connected {
			status = healthpb.HealthCheckResponse_SERVING
		}
		hs.SetServingStatus(HealthService, status)
	}
	set(feed.Snapshot())
	feed.Listen(set)
}
