package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	kitlog "github.com/go-kit/kit/log"
	"github.com/pkg/errors"
	"github.com/sony/gobreaker"

	"github.com/LeonardoBeccarini/agritech_dashboard/pkg/version"
)

const (
	defaultTimeout         = 30 * time.Second
	defaultBreakerFailures = 5
	defaultBreakerOpenFor  = 10 * time.Second

	maxResponseBytes = 8 << 20
)

// Config configures the farm backend client.
type Config struct {
	BaseURL string
	Timeout time.Duration

	// BreakerFailures consecutive transport failures open the breaker of an
	// operation for BreakerOpenFor.
	BreakerFailures uint32
	BreakerOpenFor  time.Duration

	Verbose bool
	Logger  kitlog.Logger

	// Transport overrides the base round tripper, mostly for tests.
	Transport http.RoundTripper
}

// Client talks to the farm backend (prediction, vision, ledger and
// gamification endpoints). Every call does a single attempt; failures are
// reported through the error taxonomy in errors.go.
type Client struct {
	base      string
	client    *http.Client
	userAgent string
	verbose   bool
	logger    kitlog.Logger

	failures uint32
	openFor  time.Duration

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewClient returns a client with a timeout, an instrumented transport and a
// breaker per operation.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = defaultBreakerFailures
	}
	if cfg.BreakerOpenFor <= 0 {
		cfg.BreakerOpenFor = defaultBreakerOpenFor
	}
	if cfg.Logger == nil {
		cfg.Logger = kitlog.NewNopLogger()
	}
	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	return &Client{
		base: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: InstrumentRoundTripperDuration(roundTrip, transport),
		},
		userAgent: fmt.Sprintf("%s/%s", version.BinaryName, version.Version),
		verbose:   cfg.Verbose,
		logger:    kitlog.With(cfg.Logger, "module", "backend"),
		failures:  cfg.BreakerFailures,
		openFor:   cfg.BreakerOpenFor,
		breakers:  make(map[string]*gobreaker.CircuitBreaker),
	}
}

func (c *Client) breaker(op string) *gobreaker.CircuitBreaker {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cb, ok := c.breakers[op]; ok {
		return cb
	}
	failures := c.failures
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    op,
		Timeout: c.openFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// a browser going away is not a backend failure
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			recordBreakerState(name, to)
			c.logger.Log("msg", "breaker state change", "op", name, "from", from.String(), "to", to.String())
		},
	})
	c.breakers[op] = cb
	recordBreakerState(op, gobreaker.StateClosed)
	return cb
}

// BreakerState reports the breaker state of op.
func (c *Client) BreakerState(op string) gobreaker.State {
	return c.breaker(op).State()
}

type rawResponse struct {
	status int
	body   []byte
}

// errServerStatus marks 5xx answers without an {error} body as breaker
// failures.
type errServerStatus int

func (e errServerStatus) Error() string { return fmt.Sprintf("server status %d", int(e)) }

// do performs one request and decodes the answer into out.
func (c *Client) do(ctx context.Context, op, method, path, contentType string, body []byte, out response) error {
	if c.base == "" {
		return &TransportError{Op: op, Err: NotConfiguredError}
	}
	url := c.base + path

	if c.verbose {
		c.logger.Log("msg", "backend request", "op", op, "method", method, "url", url)
	}

	res, err := c.breaker(op).Execute(func() (interface{}, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create http request object")
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/json")
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				return nil, TimeoutError
			}
			return nil, err
		}
		defer resp.Body.Close()

		b, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return nil, errors.Wrap(err, "failed to read response body")
		}
		raw := &rawResponse{status: resp.StatusCode, body: b}
		if resp.StatusCode >= http.StatusInternalServerError {
			if _, ok := applicationError(b); !ok {
				return raw, errServerStatus(resp.StatusCode)
			}
		}
		return raw, nil
	})
	if err != nil {
		c.logger.Log("msg", "backend request failed", "op", op, "err", err)
		var status errServerStatus
		if errors.As(err, &status) {
			return &TransportError{Op: op, StatusCode: int(status), Err: err}
		}
		return &TransportError{Op: op, Err: err}
	}

	raw := res.(*rawResponse)
	if msg, ok := applicationError(raw.body); ok {
		return &ApplicationError{Op: op, StatusCode: raw.status, Message: msg}
	}
	if raw.status < 200 || raw.status >= 300 {
		c.logger.Log("msg", "unexpected response code", "op", op, "code", raw.status)
		return &TransportError{Op: op, StatusCode: raw.status}
	}
	if err := decodeResponse(raw.body, out); err != nil {
		c.logger.Log("msg", "malformed backend response", "op", op, "err", err)
		return &MalformedResponseError{Op: op, Err: err}
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, op, path string, out response) error {
	return c.do(ctx, op, http.MethodGet, path, "", nil, out)
}

func (c *Client) postJSON(ctx context.Context, op, path string, in interface{}, out response) error {
	body, err := json.Marshal(in)
	if err != nil {
		return errors.Wrap(err, "failed to encode request")
	}
	return c.do(ctx, op, http.MethodPost, path, "application/json", body, out)
}
