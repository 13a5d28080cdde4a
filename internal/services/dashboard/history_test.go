package dashboard

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriteAPI struct {
	mu      sync.Mutex
	points  []*write.Point
	errs    chan error
	flushed int
}

func newFakeWriteAPI() *fakeWriteAPI {
	return &fakeWriteAPI{errs: make(chan error, 1)}
}

func (f *fakeWriteAPI) WritePoint(p *write.Point) {
	f.mu.Lock()
	f.points = append(f.points, p)
	f.mu.Unlock()
}

func (f *fakeWriteAPI) Errors() <-chan error { return f.errs }

func (f *fakeWriteAPI) Flush() {
	f.mu.Lock()
	f.flushed++
	f.mu.Unlock()
}

func (f *fakeWriteAPI) lines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.points))
	for _, p := range f.points {
		out = append(out, write.PointToLineProtocol(p, time.Second))
	}
	return out
}

func TestHistorySummaryEmpty(t *testing.T) {
	h := NewHistory(nil)
	s := h.Summary()

	assert.Equal(t, "offline", s.Status)
	assert.Nil(t, s.LastUpdate)
	assert.NotNil(t, s.RecentReadings)
	assert.Empty(t, s.RecentReadings)
	assert.Equal(t, Averages{}, s.Averages)
}

func TestHistorySummaryAveragesLastTen(t *testing.T) {
	h := NewHistory(nil)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 15; i++ {
		r := reading(float64(i), 20, 7, 50)
		r.Timestamp = base.Add(time.Duration(i) * time.Second)
		h.Record(r)
	}

	s := h.Summary()
	require.Len(t, s.RecentReadings, 10)
	assert.Equal(t, "online", s.Status)
	assert.Equal(t, 5.0, s.RecentReadings[0].SoilMoisture)
	assert.InDelta(t, 9.5, s.Averages.SoilMoisture, 1e-9)
	assert.InDelta(t, 20, s.Averages.AmbientTemperature, 1e-9)
	assert.InDelta(t, 7, s.Averages.SoilPH, 1e-9)
	require.NotNil(t, s.LastUpdate)
	assert.True(t, base.Add(14*time.Second).Equal(*s.LastUpdate))
}

func TestHistoryBounded(t *testing.T) {
	h := NewHistory(nil)
	for i := 0; i < historySize+25; i++ {
		h.Record(reading(float64(i), 20, 7, 50))
	}
	assert.Equal(t, historySize, h.Len())
	assert.Equal(t, float64(historySize+24), h.Summary().RecentReadings[9].SoilMoisture)
}

func TestReadingSinkWritesPoints(t *testing.T) {
	api := newFakeWriteAPI()
	sink := NewReadingSink(api, "field-a", nil)
	h := NewHistory(sink)

	r := reading(42, 21, 6.5, 55)
	r.Timestamp = time.Unix(1714564800, 0)
	h.Record(r)
	sink.Flush()

	lines := api.lines()
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "sensor_reading,source=field-a ")
	assert.Contains(t, lines[0], "soil_moisture=42")
	assert.Contains(t, lines[0], "humidity=55")
	assert.Contains(t, lines[0], " 1714564800")
	assert.NotContains(t, lines[0], "weather_condition")
	assert.Equal(t, int64(1), sink.Written())
	assert.Equal(t, 1, api.flushed)
}

func TestReadingSinkTracksErrors(t *testing.T) {
	api := newFakeWriteAPI()
	sink := NewReadingSink(api, "field-a", nil)
	assert.True(t, sink.LastErrorAge() > time.Hour)

	api.errs <- errors.New("bucket not found")
	assert.Eventually(t, func() bool {
		return sink.LastErrorAge() < time.Minute
	}, time.Second, 10*time.Millisecond)
}

func TestNilReadingSink(t *testing.T) {
	var sink *ReadingSink
	sink.Write(reading(1, 1, 1, 1))
	sink.Flush()
	assert.Equal(t, int64(0), sink.Written())
	assert.True(t, sink.LastErrorAge() > time.Hour)
}
