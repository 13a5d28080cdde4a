package rabbitmq

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	kitlog "github.com/go-kit/kit/log"
	"github.com/pkg/errors"
)

const (
	defaultMaxRetries     = 5
	defaultReconnectMax   = 30 * time.Second
	defaultConnectTimeout = 10 * time.Second
	disconnectQuiesceMs   = 250
)

// RabbitMQConfig describes the MQTT endpoint exposed by the broker (RabbitMQ
// with the MQTT plugin in our deployments) and the lifecycle hooks invoked on
// connect and connection loss.
type RabbitMQConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	ClientID string

	// MaxRetries bounds the attempts made for the first connection.
	MaxRetries int
	// ConnectTimeout bounds a single connection attempt.
	ConnectTimeout time.Duration
	// ReconnectMax caps the exponential delay paho applies between
	// automatic reconnect attempts after a connection loss.
	ReconnectMax time.Duration

	// OnConnect runs after every successful (re)connection. Subscriptions are
	// not persisted by the broker (clean session) so this is where they are
	// restored.
	OnConnect func()
	// OnConnectionLost runs when an established connection drops.
	OnConnectionLost func(err error)

	Logger kitlog.Logger
}

// BrokerURL returns the tcp:// address of the broker.
func (cfg *RabbitMQConfig) BrokerURL() string {
	return fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port)
}

func (cfg *RabbitMQConfig) clientOptions() *mqtt.ClientOptions {
	reconnectMax := cfg.ReconnectMax
	if reconnectMax <= 0 {
		reconnectMax = defaultReconnectMax
	}
	connectTimeout := cfg.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = defaultConnectTimeout
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL())
	opts.SetUsername(cfg.User)
	opts.SetPassword(cfg.Password)
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)
	opts.SetOrderMatters(true)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(reconnectMax)

	onConnect := cfg.OnConnect
	opts.SetOnConnectHandler(func(mqtt.Client) {
		if onConnect != nil {
			onConnect()
		}
	})
	onLost := cfg.OnConnectionLost
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		if onLost != nil {
			onLost(err)
		}
	})
	return opts
}

// NewRabbitMQConn connects to the broker, retrying the first connection with
// exponential backoff. Once connected, paho's automatic reconnect takes over.
// The connection is closed when ctx is done.
func NewRabbitMQConn(cfg *RabbitMQConfig, ctx context.Context) (mqtt.Client, error) {
	log := cfg.Logger
	if log == nil {
		log = kitlog.NewNopLogger()
	}
	log = kitlog.With(log, "module", "rabbitmq")

	opts := cfg.clientOptions()

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 10 * time.Second
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	var client mqtt.Client
	err := backoff.Retry(func() error {
		client = mqtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			log.Log("msg", "failed to connect to MQTT broker", "broker", cfg.BrokerURL(), "err", token.Error())
			return token.Error()
		}
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(maxRetries-1)), ctx))

	if err != nil {
		return nil, errors.Wrap(err, "could not establish MQTT connection after retries")
	}

	log.Log("msg", "connected to MQTT broker", "broker", cfg.BrokerURL())

	go func() {
		<-ctx.Done()
		client.Disconnect(disconnectQuiesceMs)
		log.Log("msg", "MQTT connection is closed")
	}()

	return client, nil
}

// CloseRabbitMQConn disconnects the client if it is still connected.
func CloseRabbitMQConn(client mqtt.Client) {
	if client != nil && client.IsConnected() {
		client.Disconnect(disconnectQuiesceMs)
	}
}
