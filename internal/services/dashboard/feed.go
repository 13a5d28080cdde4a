package dashboard

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	kitlog "github.com/go-kit/kit/log"
	"github.com/pkg/errors"

	"github.com/LeonardoBeccarini/agritech_dashboard/internal/model"
	"github.com/LeonardoBeccarini/agritech_dashboard/internal/model/messages"
	"github.com/LeonardoBeccarini/agritech_dashboard/internal/services/dashboard/views"
	"github.com/LeonardoBeccarini/agritech_dashboard/pkg/dedup"
)

// Feed events.
const (
	EventConnect      = "connect"
	EventDisconnect   = "disconnect"
	EventSensorUpdate = "sensor_update"
)

const (
	// ChartLabelLayout formats the x axis label of a reading.
	ChartLabelLayout = "15:04:05"

	// ConnectedMessage and DisconnectedMessage are the lifecycle toasts.
	ConnectedMessage    = "Connected to real-time monitoring"
	DisconnectedMessage = "Disconnected from real-time monitoring"
)

var (
	// ErrUnknownEvent is returned by Dispatch for events missing from the table.
	ErrUnknownEvent = errors.New("unknown feed event")

	// ErrFeedStopped is returned once the owner goroutine has exited.
	ErrFeedStopped = errors.New("feed stopped")
)

// EventHandler reacts to one feed event.
type EventHandler func(ctx context.Context, payload []byte) error

// MetricDisplay holds the formatted current values.
type MetricDisplay struct {
	Temperature string `json:"temperature"`
	Moisture    string `json:"moisture"`
	PH          string `json:"ph"`
}

// BarChart is a snapshot metric, replaced wholesale on every reading.
type BarChart struct {
	Labels []string  `json:"labels"`
	Data   []float64 `json:"data"`
}

// Charts groups the four dashboard charts.
type Charts struct {
	SoilMoisture ChartSeries `json:"soil_moisture"`
	Temperature  ChartSeries `json:"temperature"`
	Nutrients    BarChart    `json:"nutrients"`
	Environment  BarChart    `json:"environment"`
}

// Snapshot is the immutable state published after every event. Readers must
// not modify it.
type Snapshot struct {
	Seq       uint64               `json:"seq"`
	Connected bool                 `json:"connected"`
	Latest    *model.SensorReading `json:"latest,omitempty"`
	Display   MetricDisplay        `json:"display"`
	Charts    Charts               `json:"charts"`
	Alerts    AlertPanel           `json:"alerts"`
	Applied   uint64               `json:"applied"`
	Dropped   uint64               `json:"dropped"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// FeedConfig configures a Feed.
type FeedConfig struct {
	// Dev makes malformed readings fail fast instead of being dropped.
	Dev bool
	// Location is used for chart labels; defaults to time.Local.
	Location *time.Location
	Notifier *Notifier
	History  *History
	Deduper  *dedup.Deduper
	Logger   kitlog.Logger
	Verbose  bool
	Clock    func() time.Time
}

// feedState is only touched by the owner goroutine.
type feedState struct {
	connected   bool
	latest      *model.SensorReading
	display     MetricDisplay
	moisture    *RollingSeries
	temperature *RollingSeries
	nutrients   BarChart
	environment BarChart
	alerts      AlertPanel
	applied     uint64
	dropped     uint64
	seq         uint64
}

type command struct {
	apply func(st *feedState)
	done  chan struct{}
}

// Feed consumes the live sensor stream. All mutations run on the goroutine
// started by Run; readers use Snapshot.
type Feed struct {
	cfg      FeedConfig
	logger   kitlog.Logger
	handlers map[string]EventHandler

	inbox   chan command
	stopped chan struct{}
	state   *feedState
	snap    atomic.Pointer[Snapshot]

	mu        sync.Mutex
	listeners []func(*Snapshot)
}

func NewFeed(cfg FeedConfig) *Feed {
	if cfg.Logger == nil {
		cfg.Logger = kitlog.NewNopLogger()
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	f := &Feed{
		cfg:     cfg,
		logger:  kitlog.With(cfg.Logger, "module", "feed"),
		inbox:   make(chan command),
		stopped: make(chan struct{}),
		state: &feedState{
			moisture:    NewRollingSeries(SeriesCapacity, "Soil Moisture (%)"),
			temperature: NewRollingSeries(SeriesCapacity, "Ambient Temp (°C)", "Soil Temp (°C)"),
			nutrients: BarChart{
				Labels: []string{"pH", "Nitrogen", "Phosphorus", "Potassium"},
				Data:   []float64{6.8, 35, 25, 30},
			},
			environment: BarChart{
				Labels: []string{"Humidity", "Light Intensity", "Wind Speed"},
				Data:   []float64{70, 850, 12},
			},
			display: MetricDisplay{Temperature: "--", Moisture: "--", PH: "--"},
		},
	}
	f.handlers = f.eventTable()
	f.publish()
	return f
}

// eventTable maps every feed event to its reaction.
func (f *Feed) eventTable() map[string]EventHandler {
	return map[string]EventHandler{
		EventConnect:      f.onConnect,
		EventDisconnect:   f.onDisconnect,
		EventSensorUpdate: f.onSensorUpdate,
	}
}

// Events lists the events the feed reacts to.
func (f *Feed) Events() []string {
	return []string{EventConnect, EventDisconnect, EventSensorUpdate}
}

// Run owns the feed state until ctx is done.
func (f *Feed) Run(ctx context.Context) {
	defer close(f.stopped)
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-f.inbox:
			cmd.apply(f.state)
			f.state.seq++
			f.publish()
			close(cmd.done)
		}
	}
}

// Dispatch routes one event through the table and waits until it has been
// applied.
func (f *Feed) Dispatch(ctx context.Context, event string, payload []byte) error {
	h, ok := f.handlers[event]
	if !ok {
		return errors.Wrap(ErrUnknownEvent, event)
	}
	return h(ctx, payload)
}

// Listen registers fn to receive every published snapshot. fn runs on the
// owner goroutine and must not block.
func (f *Feed) Listen(fn func(*Snapshot)) {
	f.mu.Lock()
	f.listeners = append(f.listeners, fn)
	f.mu.Unlock()
}

// Snapshot returns the latest published state.
func (f *Feed) Snapshot() *Snapshot {
	return f.snap.Load()
}

// HandleMessage adapts the feed to the MQTT consumer. QoS 1 redeliveries carry
// the same payload and are dropped before decoding.
func (f *Feed) HandleMessage(_ string, msg mqtt.Message) error {
	if f.cfg.Deduper != nil {
		h := sha256.Sum256(msg.Payload())
		if !f.cfg.Deduper.ShouldProcess(hex.EncodeToString(h[:])) {
			readingsDropped.WithLabelValues("duplicate").Inc()
			return nil
		}
	}
	return f.Dispatch(context.Background(), EventSensorUpdate, msg.Payload())
}

func (f *Feed) do(ctx context.Context, apply func(st *feedState)) error {
	cmd := command{apply: apply, done: make(chan struct{})}
	select {
	case f.inbox <- cmd:
	case <-f.stopped:
		return ErrFeedStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-cmd.done:
		return nil
	case <-f.stopped:
		return ErrFeedStopped
	}
}

func (f *Feed) onConnect(ctx context.Context, _ []byte) error {
	err := f.do(ctx, func(st *feedState) { st.connected = true })
	if err != nil {
		return err
	}
	feedConnected.Set(1)
	f.logger.Log("msg", "feed connected")
	if f.cfg.Notifier != nil {
		f.cfg.Notifier.Notify(model.SeveritySuccess, ConnectedMessage)
	}
	return nil
}

func (f *Feed) onDisconnect(ctx context.Context, _ []byte) error {
	err := f.do(ctx, func(st *feedState) { st.connected = false })
	if err != nil {
		return err
	}
	feedConnected.Set(0)
	f.logger.Log("msg", "feed disconnected")
	if f.cfg.Notifier != nil {
		f.cfg.Notifier.Notify(model.SeverityWarning, DisconnectedMessage)
	}
	return nil
}

func (f *Feed) onSensorUpdate(ctx context.Context, payload []byte) error {
	r, err := messages.DecodeSensorReading(payload)
	if err != nil {
		readingsDropped.WithLabelValues("malformed").Inc()
		if derr := f.do(ctx, func(st *feedState) { st.dropped++ }); derr != nil {
			return derr
		}
		if f.cfg.Dev {
			f.logger.Log("level", "error", "msg", "malformed reading", "err", err)
			return err
		}
		f.logger.Log("msg", "dropping malformed reading", "err", err)
		return nil
	}
	return f.Apply(ctx, r)
}

// Apply performs the three updates for one reading: chart buffers, current
// value display and alert list.
func (f *Feed) Apply(ctx context.Context, r model.SensorReading) error {
	now := f.cfg.Clock()
	label := r.Timestamp.In(f.cfg.Location).Format(ChartLabelLayout)
	alerts := DeriveAlerts(r)

	err := f.do(ctx, func(st *feedState) {
		st.moisture.Append(label, r.SoilMoisture)
		st.temperature.Append(label, r.AmbientTemperature, r.SoilTemperature)
		st.nutrients.Data = []float64{r.SoilPH, r.NPK.Nitrogen, r.NPK.Phosphorus, r.NPK.Potassium}
		st.environment.Data = []float64{r.Humidity, r.LightIntensity / 20, r.WindSpeed}

		st.display = MetricDisplay{
			Temperature: views.Temperature(r.AmbientTemperature),
			Moisture:    views.Percent(r.SoilMoisture),
			PH:          views.PH(r.SoilPH),
		}

		st.alerts = newAlertPanel(alerts, now)

		reading := r
		st.latest = &reading
		st.applied++
		if f.cfg.History != nil {
			f.cfg.History.Record(r)
		}
	})
	if err != nil {
		return err
	}

	readingsApplied.Inc()
	activeAlerts.Set(float64(len(alerts)))
	if f.cfg.Verbose {
		f.logger.Log("msg", "reading applied", "label", label, "alerts", len(alerts))
	}
	return nil
}

// publish copies the owner state into a new snapshot. It runs on the owner
// goroutine, or in NewFeed before the owner starts.
func (f *Feed) publish() {
	st := f.state
	snap := &Snapshot{
		Seq:       st.seq,
		Connected: st.connected,
		Latest:    st.latest,
		Display:   st.display,
		Charts: Charts{
			SoilMoisture: st.moisture.Snapshot(),
			Temperature:  st.temperature.Snapshot(),
			Nutrients:    copyBar(st.nutrients),
			Environment:  copyBar(st.environment),
		},
		Alerts:    st.alerts,
		Applied:   st.applied,
		Dropped:   st.dropped,
		UpdatedAt: f.cfg.Clock(),
	}
	f.snap.Store(snap)

	f.mu.Lock()
	listeners := make([]func(*Snapshot), len(f.listeners))
	copy(listeners, f.listeners)
	f.mu.Unlock()
	for _, fn := range listeners {
		fn(snap)
	}
}

func copyBar(b BarChart) BarChart {
	return BarChart{
		Labels: append([]string(nil), b.Labels...),
		Data:   append([]float64(nil), b.Data...),
	}
}
