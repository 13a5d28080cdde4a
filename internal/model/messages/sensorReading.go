package messages

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ErrMalformedReading is returned for payloads that cannot be decoded into a
// SensorReading or lack one of its required fields.
var ErrMalformedReading = errors.New("malformed sensor reading")

// timestamps without a zone are produced by the field gateways; they are read
// as local time.
var localTimestampLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

type NPKLevels struct {
	Nitrogen   float64 `json:"nitrogen"`
	Phosphorus float64 `json:"phosphorus"`
	Potassium  float64 `json:"potassium"`
}

// SensorReading is the payload of a sensor_update event.
type SensorReading struct {
	Timestamp          time.Time `json:"timestamp"`
	SoilMoisture       float64   `json:"soil_moisture"`
	SoilTemperature    float64   `json:"soil_temperature"`
	AmbientTemperature float64   `json:"ambient_temperature"`
	SoilPH             float64   `json:"soil_ph"`
	NPK                NPKLevels `json:"npk_levels"`
	Humidity           float64   `json:"humidity"`
	LightIntensity     float64   `json:"light_intensity"`
	WindSpeed          float64   `json:"wind_speed"`

	// optional, filled by the simulator
	WeatherCondition string  `json:"weather_condition,omitempty"`
	UVIndex          float64 `json:"uv_index,omitempty"`
}

type npkWire struct {
	Nitrogen   *float64 `json:"nitrogen"`
	Phosphorus *float64 `json:"phosphorus"`
	Potassium  *float64 `json:"potassium"`
}

type sensorReadingWire struct {
	Timestamp          *string  `json:"timestamp"`
	SoilMoisture       *float64 `json:"soil_moisture"`
	SoilTemperature    *float64 `json:"soil_temperature"`
	AmbientTemperature *float64 `json:"ambient_temperature"`
	SoilPH             *float64 `json:"soil_ph"`
	NPK                *npkWire `json:"npk_levels"`
	Humidity           *float64 `json:"humidity"`
	LightIntensity     *float64 `json:"light_intensity"`
	WindSpeed          *float64 `json:"wind_speed"`
	WeatherCondition   string   `json:"weather_condition"`
	UVIndex            *float64 `json:"uv_index"`
}

// DecodeSensorReading parses a sensor_update payload. Every field except
// weather_condition and uv_index is required.
func DecodeSensorReading(payload []byte) (SensorReading, error) {
	var w sensorReadingWire
	if err := json.Unmarshal(payload, &w); err != nil {
		return SensorReading{}, errors.Wrap(ErrMalformedReading, err.Error())
	}

	var missing []string
	need := func(name string, v *float64) float64 {
		if v == nil {
			missing = append(missing, name)
			return 0
		}
		return *v
	}

	r := SensorReading{
		SoilMoisture:       need("soil_moisture", w.SoilMoisture),
		SoilTemperature:    need("soil_temperature", w.SoilTemperature),
		AmbientTemperature: need("ambient_temperature", w.AmbientTemperature),
		SoilPH:             need("soil_ph", w.SoilPH),
		Humidity:           need("humidity", w.Humidity),
		LightIntensity:     need("light_intensity", w.LightIntensity),
		WindSpeed:          need("wind_speed", w.WindSpeed),
		WeatherCondition:   w.WeatherCondition,
	}
	if w.UVIndex != nil {
		r.UVIndex = *w.UVIndex
	}
	if w.NPK == nil {
		missing = append(missing, "npk_levels")
	} else {
		r.NPK = NPKLevels{
			Nitrogen:   need("npk_levels.nitrogen", w.NPK.Nitrogen),
			Phosphorus: need("npk_levels.phosphorus", w.NPK.Phosphorus),
			Potassium:  need("npk_levels.potassium", w.NPK.Potassium),
		}
	}
	if w.Timestamp == nil {
		missing = append(missing, "timestamp")
	} else {
		ts, err := ParseTimestamp(*w.Timestamp)
		if err != nil {
			return SensorReading{}, errors.Wrap(ErrMalformedReading, err.Error())
		}
		r.Timestamp = ts
	}

	if len(missing) > 0 {
		return SensorReading{}, errors.Wrapf(ErrMalformedReading, "missing %s", strings.Join(missing, ", "))
	}
	return r, nil
}

// ParseTimestamp accepts RFC3339 instants and zone-less ISO-8601 local times.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts, nil
	}
	for _, layout := range localTimestampLayouts {
		if ts, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, errors.Errorf("unrecognised timestamp %q", s)
}
