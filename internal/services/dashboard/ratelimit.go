package dashboard

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/LeonardoBeccarini/agritech_dashboard/internal/model"
)

const (
	defaultRate       = 2
	defaultVisitorTTL = time.Minute
)

// MsgTooManyRequests is the toast raised for a rate limited request.
const MsgTooManyRequests = "Too many requests. Please wait a moment and try again."

// visitor holds the limiter of one client address along with the time it was
// last seen so stale entries can be dropped.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter bounds how fast a single client can drive requests to the farm
// backend. Limited requests get a 429 and a warning toast.
type RateLimiter struct {
	limit  rate.Limit
	burst  int
	expiry time.Duration
	now    func() time.Time

	notifier *Notifier

	mu        sync.Mutex
	visitors  map[string]*visitor
	lastSweep time.Time
}

// NewRateLimiter allows perSecond requests per client with the given burst.
// A zero perSecond uses the default rate and burst.
func NewRateLimiter(perSecond float64, burst int, notifier *Notifier) *RateLimiter {
	if perSecond <= 0 {
		perSecond = defaultRate
	}
	if burst <= 0 {
		burst = int(perSecond * 2)
	}
	return &RateLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		expiry:   defaultVisitorTTL,
		now:      time.Now,
		notifier: notifier,
		visitors: make(map[string]*visitor),
	}
}

// Handler is the middleware handler function.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.getVisitor(clientKey(r)).AllowN(rl.now(), 1) {
			rateLimited.WithLabelValues(r.URL.Path).Inc()
			if rl.notifier != nil {
				rl.notifier.Notify(model.SeverityWarning, MsgTooManyRequests)
			}
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) getVisitor(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastSweep) > rl.expiry {
		for k, v := range rl.visitors {
			if now.Sub(v.lastSeen) > rl.expiry {
				delete(rl.visitors, k)
			}
		}
		rl.lastSweep = now
	}

	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter
}

// Visitors returns the number of tracked clients.
func (rl *RateLimiter) Visitors() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.visitors)
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
