package dashboard

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/proto"
)

type fakeConn bool

func (c fakeConn) IsConnectionOpen() bool { return bool(c) }

func getHealth(t *testing.T, h http.Handler) (int, HealthStatus) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	var st HealthStatus
	require.Nil(t, json.Unmarshal(rec.Body.Bytes(), &st))
	return rec.Code, st
}

func TestHealthHandler(t *testing.T) {
	feed, ctx := startFeed(t, FeedConfig{})

	code, st := getHealth(t, NewHealthHandler(fakeConn(false), feed, nil))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "down", st.Status)
	assert.False(t, st.InfluxEnabled)

	code, st = getHealth(t, NewHealthHandler(fakeConn(true), feed, nil))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", st.Status)

	require.Nil(t, feed.Dispatch(ctx, EventConnect, nil))
	_, st = getHealth(t, NewHealthHandler(fakeConn(false), feed, nil))
	assert.Equal(t, "degraded", st.Status)
	assert.True(t, st.FeedConnected)
}

func TestHealthHandlerRecentSinkError(t *testing.T) {
	feed := NewFeed(FeedConfig{})
	api := newFakeWriteAPI()
	sink := NewReadingSink(api, "test", nil)
	api.errs <- assert.AnError
	require.Eventually(t, func() bool { return sink.LastErrorAge() < time.Minute }, time.Second, 5*time.Millisecond)

	_, st := getHealth(t, NewHealthHandler(fakeConn(true), feed, sink))
	assert.Equal(t, "degraded", st.Status)
	assert.True(t, st.InfluxEnabled)
}

func TestReadyHandler(t *testing.T) {
	testcases := []struct {
		label string
		conn  connChecker
		want  int
	}{
		{"connected", fakeConn(true), http.StatusOK},
		{"disconnected", fakeConn(false), http.StatusServiceUnavailable},
		{"no client", nil, http.StatusServiceUnavailable},
	}

	for _, tc := range testcases {
		t.Run(tc.label, func(t *testing.T) {
			rec := httptest.NewRecorder()
			NewReadyHandler(tc.conn, nil, 30*time.Second).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			assert.Equal(t, tc.want, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		})
	}
}

func TestTrackFeedHealth(t *testing.T) {
	feed, ctx := startFeed(t, FeedConfig{})
	hs := health.NewServer()
	TrackFeedHealth(hs, feed)

	check := func() healthpb.HealthCheckResponse_ServingStatus {
		res, err := hs.Check(context.Background(), &healthpb.HealthCheckRequest{Service: HealthService})
		require.Nil(t, err)
		return res.Status
	}

	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check())
	require.Nil(t, feed.Dispatch(ctx, EventConnect, nil))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check())
	require.Nil(t, feed.Dispatch(ctx, EventDisconnect, nil))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check())
}

func TestHealthServerOverGRPC(t *testing.T) {
	feed, ctx := startFeed(t, FeedConfig{})

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterHealthServer(srv, feed)
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.Nil(t, err)
	t.Cleanup(func() { conn.Close() })

	client := healthpb.NewHealthClient(conn)
	require.Nil(t, feed.Dispatch(ctx, EventConnect, nil))

	res, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: HealthService})
	require.Nil(t, err)
	want := &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}
	assert.True(t, proto.Equal(want, res), "got %v", res)
}
