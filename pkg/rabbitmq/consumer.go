package rabbitmq

import (
	"context"
	"strings"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	kitlog "github.com/go-kit/kit/log"
	"github.com/pkg/errors"
)

// Handler processes one message delivered on topic.
type Handler func(topic string, message mqtt.Message) error

// IConsumer is implemented by anything that can deliver messages to a handler
// until its context is cancelled.
type IConsumer interface {
	ConsumeMessage(ctx context.Context)
	SetHandler(handler Handler)
}

// Consumer subscribes a single topic filter on a shared client.
type Consumer struct {
	client mqtt.Client
	topic  string
	logger kitlog.Logger

	mu      sync.RWMutex
	handler Handler
}

// NewConsumer creates a new Consumer instance using the shared MQTT client and topic
func NewConsumer(client mqtt.Client, topic string, handler Handler, logger kitlog.Logger) *Consumer {
	if logger == nil {
		logger = kitlog.NewNopLogger()
	}
	return &Consumer{
		client:  client,
		topic:   topic,
		handler: handler,
		logger:  kitlog.With(logger, "module", "consumer", "topic", topic),
	}
}

func (c *Consumer) SetHandler(handler Handler) {
	c.mu.Lock()
	c.handler = handler
	c.mu.Unlock()
}

// Topic returns the topic filter this consumer subscribes.
func (c *Consumer) Topic() string {
	return c.topic
}

func qosFor(topic string) byte {
	t := strings.TrimSpace(topic)
	if strings.HasPrefix(t, "sensor/update") {
		return 1
	}
	return 0
}

func (c *Consumer) onMessage(_ mqtt.Client, message mqtt.Message) {
	c.mu.RLock()
	h := c.handler
	c.mu.RUnlock()

	if h == nil {
		c.logger.Log("msg", "no handler set")
		return
	}
	if err := h(c.topic, message); err != nil {
		c.logger.Log("msg", "error handling message", "err", err)
	}
}

// Subscribe (re)registers the subscription. It is safe to call again after a
// reconnect: the broker replaces the previous subscription.
func (c *Consumer) Subscribe() error {
	token := c.client.Subscribe(c.topic, qosFor(c.topic), c.onMessage)
	if token.Wait() && token.Error() != nil {
		return errors.Wrapf(token.Error(), "subscribe %s", c.topic)
	}
	c.logger.Log("msg", "subscribed", "qos", qosFor(c.topic))
	return nil
}

// ConsumeMessage subscribes to the topic and processes messages using the handler
// It blocks until the context is cancelled.
func (c *Consumer) ConsumeMessage(ctx context.Context) {
	if err := c.Subscribe(); err != nil {
		c.logger.Log("msg", "error subscribing", "err", err)
		return
	}

	<-ctx.Done()

	unsubToken := c.client.Unsubscribe(c.topic)
	unsubToken.Wait()
}
