package sensor_simulator

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/LeonardoBeccarini/agritech_dashboard/internal/model"
)

// Weather conditions picked at random for every reading.
var weatherConditions = []string{"sunny", "partly_cloudy", "cloudy", "light_rain"}

// bounds clamps a generated metric.
type bounds struct{ min, max float64 }

var (
	moistureBounds   = bounds{20, 80}
	soilTempBounds   = bounds{15, 35}
	phBounds         = bounds{5.5, 8.5}
	ambientBounds    = bounds{18, 40}
	humidityBounds   = bounds{30, 95}
	lightBounds      = bounds{0, 2000}
	windBounds       = bounds{0, 25}
	nitrogenBounds   = bounds{10, 50}
	phosphorusBounds = bounds{5, 30}
	potassiumBounds  = bounds{15, 45}
	uvBounds         = bounds{0, 11}
)

func (b bounds) clamp(x float64) float64 {
	return math.Max(b.min, math.Min(b.max, x))
}

// DataGenerator produces plausible field readings. Temperature, humidity and
// light follow a daily cycle on the hour of the clock; the rest jitter
// around fixed baselines.
type DataGenerator struct {
	mu  sync.Mutex
	rnd *rand.Rand
	now func() time.Time
}

// NewDataGenerator returns a generator seeded with seed. A nil clock means
// time.Now.
func NewDataGenerator(seed int64, clock func() time.Time) *DataGenerator {
	if clock == nil {
		clock = time.Now
	}
	return &DataGenerator{rnd: rand.New(rand.NewSource(seed)), now: clock}
}

// BaseTemperature is the daily temperature curve, peaking at 18:00.
func BaseTemperature(hour int) float64 {
	return 25 + 8*math.Sin(float64(hour-6)*math.Pi/12)
}

// BaseHumidity is the daily humidity curve, peaking at midnight.
func BaseHumidity(hour int) float64 {
	return 65 + 15*math.Sin(float64(hour-12)*math.Pi/12)
}

// LightIntensity in lux for the given hour.
func LightIntensity(hour int) float64 {
	return lightBounds.clamp(1000 + 800*math.Sin(float64(hour-6)*math.Pi/12))
}

// uniform returns a value in [lo, hi). Callers hold g.mu.
func (g *DataGenerator) uniform(lo, hi float64) float64 {
	return lo + g.rnd.Float64()*(hi-lo)
}

// Next returns a reading stamped with the current clock time.
func (g *DataGenerator) Next() model.SensorReading {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	hour := now.Hour()
	temp := BaseTemperature(hour)
	humidity := BaseHumidity(hour)

	return model.SensorReading{
		Timestamp:          now,
		SoilMoisture:       moistureBounds.clamp(45 + g.uniform(-10, 10)),
		SoilTemperature:    soilTempBounds.clamp(temp + g.uniform(-3, 3)),
		SoilPH:             phBounds.clamp(6.8 + g.uniform(-0.5, 0.5)),
		AmbientTemperature: ambientBounds.clamp(temp + g.uniform(-2, 2)),
		Humidity:           humidityBounds.clamp(humidity + g.uniform(-5, 5)),
		LightIntensity:     LightIntensity(hour),
		WindSpeed:          windBounds.clamp(8 + g.uniform(-3, 7)),
		NPK: model.NPKLevels{
			Nitrogen:   nitrogenBounds.clamp(30 + g.uniform(-5, 5)),
			Phosphorus: phosphorusBounds.clamp(20 + g.uniform(-3, 3)),
			Potassium:  potassiumBounds.clamp(25 + g.uniform(-5, 5)),
		},
		WeatherCondition: weatherConditions[g.rnd.Intn(len(weatherConditions))],
		UVIndex:          uvBounds.clamp(6 + g.uniform(-2, 3)),
	}
}
