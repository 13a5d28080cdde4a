package messages

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullReading = `{
	"timestamp": "2024-05-01T14:03:07.250000",
	"soil_moisture": 42.5,
	"soil_temperature": 21.3,
	"ambient_temperature": 27.8,
	"soil_ph": 6.9,
	"npk_levels": {"nitrogen": 31.2, "phosphorus": 19.8, "potassium": 26.1},
	"humidity": 61.4,
	"light_intensity": 1450.0,
	"wind_speed": 7.2,
	"weather_condition": "sunny",
	"uv_index": 6.4
}`

func TestDecodeSensorReading(t *testing.T) {
	r, err := DecodeSensorReading([]byte(fullReading))
	require.Nil(t, err)

	assert.Equal(t, 42.5, r.SoilMoisture)
	assert.Equal(t, 21.3, r.SoilTemperature)
	assert.Equal(t, 27.8, r.AmbientTemperature)
	assert.Equal(t, 6.9, r.SoilPH)
	assert.Equal(t, NPKLevels{Nitrogen: 31.2, Phosphorus: 19.8, Potassium: 26.1}, r.NPK)
	assert.Equal(t, 61.4, r.Humidity)
	assert.Equal(t, 1450.0, r.LightIntensity)
	assert.Equal(t, 7.2, r.WindSpeed)
	assert.Equal(t, "sunny", r.WeatherCondition)
	assert.Equal(t, 6.4, r.UVIndex)
	assert.Equal(t, "14:03:07", r.Timestamp.Format("15:04:05"))
}

func TestDecodeSensorReadingOptionalFields(t *testing.T) {
	var m map[string]interface{}
	require.Nil(t, json.Unmarshal([]byte(fullReading), &m))
	delete(m, "weather_condition")
	delete(m, "uv_index")
	m["timestamp"] = "2024-05-01T14:03:07Z"
	payload, _ := json.Marshal(m)

	r, err := DecodeSensorReading(payload)
	require.Nil(t, err)
	assert.Empty(t, r.WeatherCondition)
	assert.Zero(t, r.UVIndex)
	assert.True(t, r.Timestamp.Equal(time.Date(2024, 5, 1, 14, 3, 7, 0, time.UTC)))
}

func TestDecodeSensorReadingMalformed(t *testing.T) {
	testcases := []struct {
		label   string
		mutate  func(m map[string]interface{})
		payload string
		want    string
	}{
		{
			label:   "not json",
			payload: `{"soil_moisture":`,
		},
		{
			label:  "missing moisture",
			mutate: func(m map[string]interface{}) { delete(m, "soil_moisture") },
			want:   "soil_moisture",
		},
		{
			label:  "missing npk",
			mutate: func(m map[string]interface{}) { delete(m, "npk_levels") },
			want:   "npk_levels",
		},
		{
			label: "missing potassium",
			mutate: func(m map[string]interface{}) {
				m["npk_levels"] = map[string]interface{}{"nitrogen": 1, "phosphorus": 2}
			},
			want: "npk_levels.potassium",
		},
		{
			label:  "bad timestamp",
			mutate: func(m map[string]interface{}) { m["timestamp"] = "yesterday" },
			want:   "yesterday",
		},
		{
			label:  "wrong type",
			mutate: func(m map[string]interface{}) { m["humidity"] = "high" },
		},
	}

	for _, tc := range testcases {
		t.Run(tc.label, func(t *testing.T) {
			payload := []byte(tc.payload)
			if tc.mutate != nil {
				var m map[string]interface{}
				require.Nil(t, json.Unmarshal([]byte(fullReading), &m))
				tc.mutate(m)
				payload, _ = json.Marshal(m)
			}

			_, err := DecodeSensorReading(payload)
			require.NotNil(t, err)
			assert.Equal(t, ErrMalformedReading, errors.Cause(err))
			if tc.want != "" {
				assert.Contains(t, err.Error(), tc.want)
			}
		})
	}
}

func TestSensorReadingRoundTripThroughDecoder(t *testing.T) {
	in := SensorReading{
		Timestamp:          time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC),
		SoilMoisture:       25,
		SoilTemperature:    18,
		AmbientTemperature: 20,
		SoilPH:             7,
		NPK:                NPKLevels{Nitrogen: 30, Phosphorus: 20, Potassium: 25},
		Humidity:           50,
		LightIntensity:     900,
		WindSpeed:          4,
	}
	payload, err := json.Marshal(in)
	require.Nil(t, err)

	out, err := DecodeSensorReading(payload)
	require.Nil(t, err)
	assert.True(t, in.Timestamp.Equal(out.Timestamp))
	out.Timestamp = in.Timestamp
	assert.Equal(t, in, out)
}
