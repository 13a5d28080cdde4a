package dashboard

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	kitlog "github.com/go-kit/kit/log"
	"github.com/gorilla/websocket"

	"github.com/LeonardoBeccarini/agritech_dashboard/internal/model"
	"github.com/LeonardoBeccarini/agritech_dashboard/internal/services/dashboard/views"
)

// Relay events.
const (
	RelaySnapshot     = "snapshot"
	RelayNotification = "notification"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	clientSendSize = 64
)

// RelayEvent is one message pushed to the browser.
type RelayEvent struct {
	Event  string  `json:"event"`
	Seq    uint64  `json:"seq,omitempty"`
	HTML   string  `json:"html"`
	Charts *Charts `json:"charts,omitempty"`
}

type relayClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Relay pushes feed snapshots and toasts to the connected browsers. Slow
// clients are disconnected rather than allowed to block the feed.
type Relay struct {
	upgrader  websocket.Upgrader
	logger    kitlog.Logger
	now       func() time.Time
	afterFunc func(time.Duration, func()) (stop func() bool)

	mu      sync.Mutex
	clients map[*relayClient]struct{}
	last    []byte

	// dismissal of the alerts in the latest snapshot
	dismissGen  uint64
	stopDismiss func() bool
}

func NewRelay(logger kitlog.Logger) *Relay {
	if logger == nil {
		logger = kitlog.NewNopLogger()
	}
	return &Relay{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger:    kitlog.With(logger, "module", "relay"),
		now:       time.Now,
		afterFunc: afterFunc,
		clients:   make(map[*relayClient]struct{}),
	}
}

func afterFunc(d time.Duration, fn func()) func() bool {
	return time.AfterFunc(d, fn).Stop
}

// PublishSnapshot is registered with Feed.Listen. It must not block.
// Alerts in snap are pushed again without the list once they reach HiddenAt,
// unless a newer snapshot arrives first.
func (r *Relay) PublishSnapshot(snap *Snapshot) {
	now := r.now()
	ev, ok := r.snapshotEvent(snap, now)
	if !ok {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.dismissGen++
	if r.stopDismiss != nil {
		r.stopDismiss()
		r.stopDismiss = nil
	}
	if len(snap.Alerts.Visible(now)) > 0 {
		gen := r.dismissGen
		r.stopDismiss = r.afterFunc(snap.Alerts.HiddenAt.Sub(now), func() {
			r.dismissAlerts(snap, gen)
		})
	}
	r.broadcastLocked(ev, true)
}

func (r *Relay) dismissAlerts(snap *Snapshot, gen uint64) {
	ev, ok := r.snapshotEvent(snap, snap.Alerts.HiddenAt)
	if !ok {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if gen != r.dismissGen {
		return
	}
	r.stopDismiss = nil
	r.broadcastLocked(ev, true)
}

func (r *Relay) snapshotEvent(snap *Snapshot, now time.Time) ([]byte, bool) {
	html, err := views.RenderString(views.TplLive, LiveView(snap, now))
	if err != nil {
		r.logger.Log("msg", "failed to render live panel", "err", err)
		return nil, false
	}
	charts := snap.Charts
	return r.marshal(RelayEvent{Event: RelaySnapshot, Seq: snap.Seq, HTML: html, Charts: &charts})
}

// PublishNotification is registered with Notifier.Listen.
func (r *Relay) PublishNotification(n model.Notification) {
	html, err := views.RenderString(views.TplNotifications, []model.Notification{n})
	if err != nil {
		r.logger.Log("msg", "failed to render notification", "err", err)
		return
	}
	r.broadcast(RelayEvent{Event: RelayNotification, HTML: html}, false)
}

func (r *Relay) marshal(ev RelayEvent) ([]byte, bool) {
	data, err := json.Marshal(ev)
	if err != nil {
		r.logger.Log("msg", "failed to marshal relay event", "err", err)
		return nil, false
	}
	return data, true
}

func (r *Relay) broadcast(ev RelayEvent, keep bool) {
	data, ok := r.marshal(ev)
	if !ok {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcastLocked(data, keep)
}

// broadcastLocked must be called with mu held.
func (r *Relay) broadcastLocked(data []byte, keep bool) {
	if keep {
		r.last = data
	}
	for c := range r.clients {
		select {
		case c.send <- data:
		default:
			r.remove(c)
		}
	}
}

// remove must be called with mu held.
func (r *Relay) remove(c *relayClient) {
	if _, ok := r.clients[c]; ok {
		delete(r.clients, c)
		close(c.send)
	}
}

// Clients reports the number of connected browsers.
func (r *Relay) Clients() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// ServeHTTP upgrades the request and streams events until the browser goes
// away. The latest snapshot is sent first.
func (r *Relay) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Log("msg", "websocket upgrade failed", "err", err)
		return
	}

	c := &relayClient{conn: conn, send: make(chan []byte, clientSendSize)}
	r.mu.Lock()
	r.clients[c] = struct{}{}
	if r.last != nil {
		c.send <- r.last
	}
	r.mu.Unlock()

	go c.writePump()
	r.readPump(c)
}

func (r *Relay) readPump(c *relayClient) {
	defer func() {
		r.mu.Lock()
		r.remove(c)
		r.mu.Unlock()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				r.logger.Log("msg", "websocket read error", "err", err)
			}
			return
		}
	}
}

func (c *relayClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
