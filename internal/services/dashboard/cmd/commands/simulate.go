package commands

import (
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	sensorSimulator "github.com/LeonardoBeccarini/agritech_dashboard/internal/sensor-simulator"
	"github.com/LeonardoBeccarini/agritech_dashboard/pkg/logger"
	"github.com/LeonardoBeccarini/agritech_dashboard/pkg/rabbitmq"
)

func init() {
	rootCmd.AddCommand(simulateCmd)

	simulateCmd.Flags().Duration("interval", sensorSimulator.DefaultInterval, "Delay between two published readings")
	simulateCmd.Flags().Int64("seed", 0, "Random seed, the current time when zero")
	simulateCmd.Flags().String("simulator-client-id", "sensorPublisher1", "MQTT client ID of the simulator")

	viper.BindPFlag("interval", simulateCmd.Flags().Lookup("interval"))
	viper.BindPFlag("seed", simulateCmd.Flags().Lookup("seed"))
	viper.BindPFlag("simulator-client-id", simulateCmd.Flags().Lookup("simulator-client-id"))
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Publish simulated sensor readings",
	Long: `Publishes a generated field reading on the sensor topic at a fixed interval.
Temperature, humidity and light follow a daily cycle.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		interval := viper.GetDuration("interval")
		if interval <= 0 {
			return errors.New("Must provide a positive interval")
		}

		seed := viper.GetInt64("seed")
		if seed == 0 {
			seed = time.Now().UnixNano()
		}

		ctx := cmd.Context()
		log := logger.FromContext(ctx)

		cfg := &rabbitmq.RabbitMQConfig{
			Host:     viper.GetString("rabbitmq-host"),
			Port:     viper.GetInt("rabbitmq-port"),
			User:     viper.GetString("rabbitmq-user"),
			Password: viper.GetString("rabbitmq-password"),
			ClientID: viper.GetString("simulator-client-id"),
			Logger:   log,
		}
		client, err := rabbitmq.NewRabbitMQConn(cfg, ctx)
		if err != nil {
			return errors.Wrap(err, "simulator")
		}

		publisher := rabbitmq.NewPublisher(client, viper.GetString("topic"), log)
		generator := sensorSimulator.NewDataGenerator(seed, nil)
		sim := sensorSimulator.NewSensorSimulator(publisher, generator, log, viper.GetBool("verbose"))

		sim.Start(ctx, interval)
		return nil
	},
}
