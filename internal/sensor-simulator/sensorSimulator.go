package sensor_simulator

import (
	"context"
	"encoding/json"
	"time"

	kitlog "github.com/go-kit/kit/log"
	"github.com/pkg/errors"

	"github.com/LeonardoBeccarini/agritech_dashboard/pkg/rabbitmq"
)

// DefaultInterval between two published readings.
const DefaultInterval = 10 * time.Second

// SensorSimulator publishes generated readings on the live feed topic.
type SensorSimulator struct {
	generator *DataGenerator
	publisher rabbitmq.IPublisher
	logger    kitlog.Logger
	verbose   bool
}

func NewSensorSimulator(publisher rabbitmq.IPublisher, gen *DataGenerator, logger kitlog.Logger, verbose bool) *SensorSimulator {
	if logger == nil {
		logger = kitlog.NewNopLogger()
	}
	return &SensorSimulator{
		generator: gen,
		publisher: publisher,
		logger:    kitlog.With(logger, "module", "simulator"),
		verbose:   verbose,
	}
}

// PublishOnce generates and publishes a single reading.
func (s *SensorSimulator) PublishOnce() error {
	reading := s.generator.Next()
	payload, err := json.Marshal(reading)
	if err != nil {
		return errors.Wrap(err, "failed to encode reading")
	}
	if s.verbose {
		s.logger.Log(
			"msg", "publishing reading",
			"soil_moisture", reading.SoilMoisture,
			"ambient_temperature", reading.AmbientTemperature,
			"soil_ph", reading.SoilPH,
		)
	}
	return s.publisher.PublishMessage(payload)
}

// Start publishes a reading straight away and then once per interval until
// ctx is done, at which point the publisher is closed.
func (s *SensorSimulator) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := s.PublishOnce(); err != nil {
			s.logger.Log("msg", "publish error", "err", err)
		}
		select {
		case <-ctx.Done():
			s.publisher.Close()
			return
		case <-ticker.C:
		}
	}
}
