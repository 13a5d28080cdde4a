package app

import (
	"context"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	kitlog "github.com/go-kit/kit/log"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/pkg/errors"
	"google.golang.org/grpc"

	"github.com/LeonardoBeccarini/agritech_dashboard/internal/services/dashboard"
	"github.com/LeonardoBeccarini/agritech_dashboard/internal/services/dashboard/backend"
	"github.com/LeonardoBeccarini/agritech_dashboard/pkg/dedup"
	"github.com/LeonardoBeccarini/agritech_dashboard/pkg/logger"
	"github.com/LeonardoBeccarini/agritech_dashboard/pkg/rabbitmq"
)

const (
	// DefaultTopic carries the sensor_update events.
	DefaultTopic = "sensor/update"

	defaultShutdownGrace = 5 * time.Second
	readyErrorAge        = 2 * time.Second
)

// Config holds everything the serve command reads from flags and env.
type Config struct {
	Addr     string
	GRPCAddr string

	Rabbit rabbitmq.RabbitMQConfig
	Topic  string

	// Influx is disabled when InfluxURL is empty.
	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string

	BackendURL      string
	BackendTimeout  time.Duration
	BreakerFailures uint32
	BreakerOpenFor  time.Duration

	// Rate and Burst bound the backend submissions of one client.
	Rate  float64
	Burst int

	User          string
	Dev           bool
	Verbose       bool
	ShutdownGrace time.Duration

	// AccessLog receives one combined log line per HTTP request when set.
	AccessLog io.Writer
	Logger    kitlog.Logger
}

// App holds the dashboard components. They are wired by NewApp but nothing
// touches the network until Start.
type App struct {
	cfg    Config
	logger kitlog.Logger

	feed     *dashboard.Feed
	notifier *dashboard.Notifier
	history  *dashboard.History
	relay    *dashboard.Relay
	ctrl     *dashboard.Controller
	limiter  *dashboard.RateLimiter

	influx influxdb2.Client
	sink   *dashboard.ReadingSink
}

func NewApp(cfg *Config) *App {
	c := *cfg
	if c.Logger == nil {
		c.Logger = logger.NewLogger(logger.DefaultService)
	}
	if c.Topic == "" {
		c.Topic = DefaultTopic
	}
	if c.ShutdownGrace <= 0 {
		c.ShutdownGrace = defaultShutdownGrace
	}
	log := kitlog.With(c.Logger, "module", "app")

	a := &App{cfg: c, logger: log}

	if c.InfluxURL != "" {
		a.influx = influxdb2.NewClientWithOptions(c.InfluxURL, c.InfluxToken,
			influxdb2.DefaultOptions().SetBatchSize(10).SetFlushInterval(200))
		a.sink = dashboard.NewReadingSink(a.influx.WriteAPI(c.InfluxOrg, c.InfluxBucket), c.Topic, c.Logger)
	}

	a.notifier = dashboard.NewNotifier(c.Logger)
	a.history = dashboard.NewHistory(a.sink)
	a.feed = dashboard.NewFeed(dashboard.FeedConfig{
		Dev:      c.Dev,
		Notifier: a.notifier,
		History:  a.history,
		Deduper:  dedup.New(10*time.Minute, 20000),
		Logger:   c.Logger,
		Verbose:  c.Verbose,
	})

	a.relay = dashboard.NewRelay(c.Logger)
	a.feed.Listen(a.relay.PublishSnapshot)
	a.notifier.Listen(a.relay.PublishNotification)

	client := backend.NewClient(backend.Config{
		BaseURL:         c.BackendURL,
		Timeout:         c.BackendTimeout,
		BreakerFailures: c.BreakerFailures,
		BreakerOpenFor:  c.BreakerOpenFor,
		Verbose:         c.Verbose,
		Logger:          c.Logger,
	})
	a.limiter = dashboard.NewRateLimiter(c.Rate, c.Burst, a.notifier)
	a.ctrl = dashboard.NewController(dashboard.ControllerConfig{
		Feed:     a.feed,
		Notifier: a.notifier,
		History:  a.history,
		Backend:  client,
		User:     c.User,
		Logger:   c.Logger,
	})
	return a
}

// Feed exposes the live feed, mostly for tests.
func (a *App) Feed() *dashboard.Feed { return a.feed }

// Handler builds the HTTP surface. client backs the probes and may be nil
// before Start.
func (a *App) Handler(client mqtt.Client) http.Handler {
	return dashboard.NewRouter(dashboard.RouterConfig{
		Controller:  a.ctrl,
		Relay:       a.relay,
		Health:      dashboard.NewHealthHandler(client, a.feed, a.sink),
		Ready:       dashboard.NewReadyHandler(client, a.sink, readyErrorAge),
		RateLimiter: a.limiter,
		AccessLog:   a.cfg.AccessLog,
		Logger:      a.cfg.Logger,
	})
}

// connect opens the broker connection. Every (re)connect restores the
// subscription and is reported to the feed, every loss likewise.
func (a *App) connect(ctx context.Context) (mqtt.Client, *rabbitmq.Consumer, error) {
	var consumer atomic.Pointer[rabbitmq.Consumer]

	rcfg := a.cfg.Rabbit
	rcfg.Logger = a.cfg.Logger
	rcfg.OnConnect = func() {
		if c := consumer.Load(); c != nil {
			if err := c.Subscribe(); err != nil {
				a.logger.Log("msg", "resubscribe failed", "err", err)
			}
		}
		if err := a.feed.Dispatch(ctx, dashboard.EventConnect, nil); err != nil {
			a.logger.Log("msg", "connect event not applied", "err", err)
		}
	}
	rcfg.OnConnectionLost = func(err error) {
		a.logger.Log("msg", "MQTT connection lost", "err", err)
		if derr := a.feed.Dispatch(ctx, dashboard.EventDisconnect, nil); derr != nil {
			a.logger.Log("msg", "disconnect event not applied", "err", derr)
		}
	}

	client, err := rabbitmq.NewRabbitMQConn(&rcfg, ctx)
	if err != nil {
		return nil, nil, err
	}
	c := rabbitmq.NewConsumer(client, a.cfg.Topic, a.feed.HandleMessage, a.cfg.Logger)
	consumer.Store(c)
	return client, c, nil
}

// Start runs the feed, the broker subscription, the HTTP server and the
// optional gRPC health server until ctx is done or one of them fails.
func (a *App) Start(ctx context.Context) error {
	a.logger.Log("msg", "starting app", "addr", a.cfg.Addr, "grpc_addr", a.cfg.GRPCAddr)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go a.feed.Run(ctx)
	defer a.closeInflux()

	client, consumer, err := a.connect(ctx)
	if err != nil {
		return err
	}
	go consumer.ConsumeMessage(ctx)

	errChan := make(chan error, 2)

	var grpcServer *grpc.Server
	if a.cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", a.cfg.GRPCAddr)
		if err != nil {
			return errors.Wrap(err, "failed to listen for gRPC")
		}
		grpcServer = grpc.NewServer()
		dashboard.RegisterHealthServer(grpcServer, a.feed)
		go func() {
			a.logger.Log("msg", "gRPC health listening", "addr", a.cfg.GRPCAddr)
			if err := grpcServer.Serve(lis); err != nil {
				errChan <- errors.Wrap(err, "grpc server error")
			}
		}()
	}

	srv := &http.Server{
		Addr:              a.cfg.Addr,
		Handler:           a.Handler(client),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		a.logger.Log("msg", "HTTP listening", "addr", a.cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- errors.Wrap(err, "http server error")
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Log("msg", "stopping app")
	case err = <-errChan:
	}

	shCtx, shCancel := context.WithTimeout(context.Background(), a.cfg.ShutdownGrace)
	defer shCancel()
	if serr := srv.Shutdown(shCtx); serr != nil {
		a.logger.Log("msg", "http shutdown", "err", serr)
	}
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	return err
}

func (a *App) closeInflux() {
	if a.influx == nil {
		return
	}
	a.sink.Flush()
	a.influx.Close()
}
