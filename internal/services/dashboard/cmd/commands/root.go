package commands

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/LeonardoBeccarini/agritech_dashboard/pkg/logger"
	"github.com/LeonardoBeccarini/agritech_dashboard/pkg/version"
)

var rootCmd = &cobra.Command{
	Use:   version.BinaryName,
	Short: "Live farm monitoring dashboard",
	Long: `The AgriTech dashboard consumes the live sensor feed published over MQTT,
derives threshold alerts and serves the monitoring page along with the
prediction, vision, ledger and gamification panels of the farm backend.`,
	Version: version.VersionString(),
}

func init() {
	viper.SetEnvPrefix("agri")
	viper.AutomaticEnv()
	replacer := strings.NewReplacer("-", "_")
	viper.SetEnvKeyReplacer(replacer)

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Boolean flag to enable verbose logging")
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.PersistentFlags().String("rabbitmq-host", "localhost", "Host of the MQTT broker")
	rootCmd.PersistentFlags().Int("rabbitmq-port", 1883, "MQTT port of the broker")
	rootCmd.PersistentFlags().String("rabbitmq-user", "guest", "Broker user name")
	rootCmd.PersistentFlags().String("rabbitmq-password", "guest", "Broker password")
	rootCmd.PersistentFlags().String("topic", "sensor/update", "Topic carrying the sensor readings")

	viper.BindPFlag("rabbitmq-host", rootCmd.PersistentFlags().Lookup("rabbitmq-host"))
	viper.BindPFlag("rabbitmq-port", rootCmd.PersistentFlags().Lookup("rabbitmq-port"))
	viper.BindPFlag("rabbitmq-user", rootCmd.PersistentFlags().Lookup("rabbitmq-user"))
	viper.BindPFlag("rabbitmq-password", rootCmd.PersistentFlags().Lookup("rabbitmq-password"))
	viper.BindPFlag("topic", rootCmd.PersistentFlags().Lookup("topic"))
}

// Execute is the main entry point for our cobra commands. Commands receive a
// context carrying the service logger, cancelled on SIGINT or SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.ToContext(ctx, logger.NewLogger(logger.DefaultService))

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		log.Fatal(err)
	}
}
