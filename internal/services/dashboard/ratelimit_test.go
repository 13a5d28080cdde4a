package dashboard

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/agritech_dashboard/internal/model"
)

func limitedRequest(h http.Handler, addr string) int {
	req := httptest.NewRequest(http.MethodPost, "/ui/yield", nil)
	req.RemoteAddr = addr
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestRateLimiterPerClient(t *testing.T) {
	clock := newFakeClock()
	notifier := NewNotifier(nil)
	notifier.now = clock.Now

	rl := NewRateLimiter(1, 2, notifier)
	rl.now = clock.Now

	hits := 0
	h := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		w.WriteHeader(http.StatusNoContent)
	}))

	assert.Equal(t, http.StatusNoContent, limitedRequest(h, "10.0.0.1:4000"))
	assert.Equal(t, http.StatusNoContent, limitedRequest(h, "10.0.0.1:4001"))
	assert.Equal(t, http.StatusTooManyRequests, limitedRequest(h, "10.0.0.1:4002"))
	assert.Equal(t, 2, hits)

	toasts := notifier.Active()
	require.Len(t, toasts, 1)
	assert.Equal(t, model.SeverityWarning, toasts[0].Type)
	assert.Equal(t, MsgTooManyRequests, toasts[0].Message)

	// another client has its own budget
	assert.Equal(t, http.StatusNoContent, limitedRequest(h, "10.0.0.2:4000"))

	// the budget refills with time
	clock.Advance(time.Second)
	assert.Equal(t, http.StatusNoContent, limitedRequest(h, "10.0.0.1:4003"))
	assert.Equal(t, 4, hits)
}

func TestRateLimiterForgetsIdleClients(t *testing.T) {
	clock := newFakeClock()
	rl := NewRateLimiter(0, 0, nil)
	rl.now = clock.Now

	h := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	limitedRequest(h, "10.0.0.1:1")
	limitedRequest(h, "10.0.0.2:1")
	assert.Equal(t, 2, rl.Visitors())

	clock.Advance(2 * defaultVisitorTTL)
	limitedRequest(h, "10.0.0.3:1")
	assert.Equal(t, 1, rl.Visitors())
}
