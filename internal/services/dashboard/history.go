package dashboard

import (
	"sync"
	"time"

	kitlog "github.com/go-kit/kit/log"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/LeonardoBeccarini/agritech_dashboard/internal/model"
)

const (
	historySize  = 100
	recentWindow = 10

	// ReadingMeasurement is the Influx measurement readings are stored under.
	ReadingMeasurement = "sensor_reading"
)

// pointWriter is the part of the influx WriteAPI used by ReadingSink.
type pointWriter interface {
	WritePoint(point *write.Point)
	Errors() <-chan error
	Flush()
}

// ReadingSink stores readings in InfluxDB and tracks the last asynchronous
// write error for /readyz.
type ReadingSink struct {
	api    pointWriter
	source string
	logger kitlog.Logger

	mu      sync.RWMutex
	lastErr time.Time
	written int64
}

// NewReadingSink starts draining the write error channel of w.
func NewReadingSink(w pointWriter, source string, logger kitlog.Logger) *ReadingSink {
	if logger == nil {
		logger = kitlog.NewNopLogger()
	}
	s := &ReadingSink{
		api:     w,
		source:  source,
		logger:  kitlog.With(logger, "module", "influx"),
		lastErr: time.Now().Add(-24 * time.Hour),
	}
	go func() {
		for err := range w.Errors() {
			if err != nil {
				s.mu.Lock()
				s.lastErr = time.Now()
				s.mu.Unlock()
				s.logger.Log("msg", "influx write error", "err", err)
			}
		}
	}()
	return s
}

// Write queues one point per reading; the WriteAPI batches and sends them.
func (s *ReadingSink) Write(r model.SensorReading) {
	if s == nil {
		return
	}
	fields := map[string]interface{}{
		"soil_moisture":       r.SoilMoisture,
		"soil_temperature":    r.SoilTemperature,
		"ambient_temperature": r.AmbientTemperature,
		"soil_ph":             r.SoilPH,
		"nitrogen":            r.NPK.Nitrogen,
		"phosphorus":          r.NPK.Phosphorus,
		"potassium":           r.NPK.Potassium,
		"humidity":            r.Humidity,
		"light_intensity":     r.LightIntensity,
		"wind_speed":          r.WindSpeed,
	}
	if r.WeatherCondition != "" {
		fields["weather_condition"] = r.WeatherCondition
		fields["uv_index"] = r.UVIndex
	}
	p := influxdb2.NewPoint(ReadingMeasurement, map[string]string{"source": s.source}, fields, r.Timestamp)
	s.api.WritePoint(p)

	s.mu.Lock()
	s.written++
	s.mu.Unlock()
}

// LastErrorAge returns how long ago the last write error happened.
func (s *ReadingSink) LastErrorAge() time.Duration {
	if s == nil {
		return 99999 * time.Hour
	}
	s.mu.RLock()
	t := s.lastErr
	s.mu.RUnlock()
	return time.Since(t)
}

func (s *ReadingSink) Written() int64 {
	if s == nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.written
}

// Flush forces pending points out.
func (s *ReadingSink) Flush() {
	if s != nil {
		s.api.Flush()
	}
}

// Averages over the recent window.
type Averages struct {
	SoilMoisture       float64 `json:"soil_moisture"`
	SoilTemperature    float64 `json:"soil_temperature"`
	AmbientTemperature float64 `json:"ambient_temperature"`
	Humidity           float64 `json:"humidity"`
	SoilPH             float64 `json:"soil_ph"`
}

// SensorSummary is the body of GET /api/sensor-data.
type SensorSummary struct {
	RecentReadings []model.SensorReading `json:"recent_readings"`
	Averages       Averages              `json:"averages"`
	Status         string                `json:"status"`
	LastUpdate     *time.Time            `json:"last_update"`
}

// History keeps the last hundred readings in memory and mirrors them to the
// optional sink.
type History struct {
	mu       sync.RWMutex
	readings []model.SensorReading
	sink     *ReadingSink
}

func NewHistory(sink *ReadingSink) *History {
	return &History{
		readings: make([]model.SensorReading, 0, historySize),
		sink:     sink,
	}
}

func (h *History) Record(r model.SensorReading) {
	h.mu.Lock()
	h.readings = append(h.readings, r)
	if len(h.readings) > historySize {
		h.readings = append(h.readings[:0:0], h.readings[len(h.readings)-historySize:]...)
	}
	h.mu.Unlock()

	h.sink.Write(r)
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.readings)
}

// Summary reports the last ten readings and their averages.
func (h *History) Summary() SensorSummary {
	h.mu.RLock()
	start := len(h.readings) - recentWindow
	if start < 0 {
		start = 0
	}
	recent := append([]model.SensorReading{}, h.readings[start:]...)
	h.mu.RUnlock()

	out := SensorSummary{RecentReadings: recent, Status: "offline"}
	if len(recent) == 0 {
		return out
	}

	n := float64(len(recent))
	for _, r := range recent {
		out.Averages.SoilMoisture += r.SoilMoisture / n
		out.Averages.SoilTemperature += r.SoilTemperature / n
		out.Averages.AmbientTemperature += r.AmbientTemperature / n
		out.Averages.Humidity += r.Humidity / n
		out.Averages.SoilPH += r.SoilPH / n
	}
	last := recent[len(recent)-1].Timestamp
	out.Status = "online"
	out.LastUpdate = &last
	return out
}
