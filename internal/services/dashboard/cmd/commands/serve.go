package commands

import (
	"errors"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/LeonardoBeccarini/agritech_dashboard/internal/services/dashboard/app"
	"github.com/LeonardoBeccarini/agritech_dashboard/pkg/logger"
	"github.com/LeonardoBeccarini/agritech_dashboard/pkg/rabbitmq"
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("addr", "a", "0.0.0.0:5000", "Specify the address to which the HTTP server binds")
	serveCmd.Flags().String("grpc-addr", "", "Address of the gRPC health service, disabled when empty")
	serveCmd.Flags().String("client-id", "agritech-dashboard", "MQTT client ID")
	serveCmd.Flags().Int("reconnect-max", 30, "Upper bound in seconds of the delay between broker reconnect attempts")
	serveCmd.Flags().String("influx-url", "", "InfluxDB URL for the reading history, disabled when empty")
	serveCmd.Flags().String("influx-token", "", "InfluxDB API token")
	serveCmd.Flags().String("influx-org", "agritech", "InfluxDB organisation")
	serveCmd.Flags().String("influx-bucket", "sensors", "InfluxDB bucket")
	serveCmd.Flags().String("backend-url", "http://localhost:5001", "Base URL of the farm backend")
	serveCmd.Flags().Int("backend-timeout", 30, "Farm backend request timeout in seconds")
	serveCmd.Flags().Int("breaker-failures", 5, "Consecutive backend failures that open an endpoint breaker")
	serveCmd.Flags().Int("breaker-open-for", 10, "Seconds an open breaker rejects requests")
	serveCmd.Flags().Float64("rate", 2, "The rate of backend submissions permitted per client in req/sec")
	serveCmd.Flags().Int("burst", 4, "The burstable rate of backend submissions per client")
	serveCmd.Flags().String("user", "default_user", "Identifier of the farmer using the dashboard")
	serveCmd.Flags().Bool("dev", false, "Fail fast on malformed readings instead of dropping them")
	serveCmd.Flags().Int("shutdown-grace", 5, "Seconds allowed for in-flight requests on shutdown")

	viper.BindPFlag("addr", serveCmd.Flags().Lookup("addr"))
	viper.BindPFlag("grpc-addr", serveCmd.Flags().Lookup("grpc-addr"))
	viper.BindPFlag("client-id", serveCmd.Flags().Lookup("client-id"))
	viper.BindPFlag("reconnect-max", serveCmd.Flags().Lookup("reconnect-max"))
	viper.BindPFlag("influx-url", serveCmd.Flags().Lookup("influx-url"))
	viper.BindPFlag("influx-token", serveCmd.Flags().Lookup("influx-token"))
	viper.BindPFlag("influx-org", serveCmd.Flags().Lookup("influx-org"))
	viper.BindPFlag("influx-bucket", serveCmd.Flags().Lookup("influx-bucket"))
	viper.BindPFlag("backend-url", serveCmd.Flags().Lookup("backend-url"))
	viper.BindPFlag("backend-timeout", serveCmd.Flags().Lookup("backend-timeout"))
	viper.BindPFlag("breaker-failures", serveCmd.Flags().Lookup("breaker-failures"))
	viper.BindPFlag("breaker-open-for", serveCmd.Flags().Lookup("breaker-open-for"))
	viper.BindPFlag("rate", serveCmd.Flags().Lookup("rate"))
	viper.BindPFlag("burst", serveCmd.Flags().Lookup("burst"))
	viper.BindPFlag("user", serveCmd.Flags().Lookup("user"))
	viper.BindPFlag("dev", serveCmd.Flags().Lookup("dev"))
	viper.BindPFlag("shutdown-grace", serveCmd.Flags().Lookup("shutdown-grace"))
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard",
	Long: `Starts the dashboard HTTP server, subscribes to the live sensor feed and
optionally exposes a gRPC health service tracking the feed connection.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := viper.GetString("addr")
		if addr == "" {
			return errors.New("Must provide a bind address")
		}

		backendURL := viper.GetString("backend-url")
		if backendURL == "" {
			return errors.New("Must provide the farm backend URL")
		}

		backendTimeout := viper.GetInt("backend-timeout")
		if backendTimeout <= 0 {
			return errors.New("Must provide a positive backend timeout")
		}

		influxURL := viper.GetString("influx-url")
		if influxURL != "" && viper.GetString("influx-bucket") == "" {
			return errors.New("Must provide an InfluxDB bucket")
		}

		verbose := viper.GetBool("verbose")
		cfg := &app.Config{
			Addr:     addr,
			GRPCAddr: viper.GetString("grpc-addr"),
			Rabbit: rabbitmq.RabbitMQConfig{
				Host:         viper.GetString("rabbitmq-host"),
				Port:         viper.GetInt("rabbitmq-port"),
				User:         viper.GetString("rabbitmq-user"),
				Password:     viper.GetString("rabbitmq-password"),
				ClientID:     viper.GetString("client-id"),
				ReconnectMax: time.Duration(viper.GetInt("reconnect-max")) * time.Second,
			},
			Topic:           viper.GetString("topic"),
			InfluxURL:       influxURL,
			InfluxToken:     viper.GetString("influx-token"),
			InfluxOrg:       viper.GetString("influx-org"),
			InfluxBucket:    viper.GetString("influx-bucket"),
			BackendURL:      backendURL,
			BackendTimeout:  time.Duration(backendTimeout) * time.Second,
			BreakerFailures: uint32(viper.GetInt("breaker-failures")),
			BreakerOpenFor:  time.Duration(viper.GetInt("breaker-open-for")) * time.Second,
			Rate:            viper.GetFloat64("rate"),
			Burst:           viper.GetInt("burst"),
			User:            viper.GetString("user"),
			Dev:             viper.GetBool("dev"),
			Verbose:         verbose,
			ShutdownGrace:   time.Duration(viper.GetInt("shutdown-grace")) * time.Second,
			Logger:          logger.FromContext(cmd.Context()),
		}
		if verbose {
			cfg.AccessLog = os.Stdout
		}

		return app.NewApp(cfg).Start(cmd.Context())
	},
}
