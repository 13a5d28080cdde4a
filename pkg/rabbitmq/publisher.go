package rabbitmq

import (
	mqtt "github.com/eclipse/paho.mqtt.golang"
	kitlog "github.com/go-kit/kit/log"
	"github.com/pkg/errors"
)

// IPublisher interface defines the method to publish a message
type IPublisher interface {
	PublishMessage(message interface{}) error
	Close()
}

// Publisher publishes to a fixed topic on a shared client.
type Publisher struct {
	client mqtt.Client
	topic  string
	qos    byte
	logger kitlog.Logger
}

// NewPublisher creates a new Publisher instance using the shared MQTT client and topic
func NewPublisher(client mqtt.Client, topic string, logger kitlog.Logger) *Publisher {
	if logger == nil {
		logger = kitlog.NewNopLogger()
	}
	return &Publisher{
		client: client,
		topic:  topic,
		qos:    qosFor(topic),
		logger: kitlog.With(logger, "module", "publisher", "topic", topic),
	}
}

// PublishMessage publishes a string or []byte payload to the topic.
func (p *Publisher) PublishMessage(message interface{}) error {
	switch message.(type) {
	case string, []byte:
	default:
		return errors.New("invalid message format, expected string or []byte")
	}

	token := p.client.Publish(p.topic, p.qos, false, message)
	token.Wait()

	if token.Error() != nil {
		return errors.Wrap(token.Error(), "failed to publish message")
	}
	return nil
}

// Close gracefully closes the MQTT connection for the publisher
func (p *Publisher) Close() {
	if p.client.IsConnected() {
		p.client.Disconnect(disconnectQuiesceMs)
		p.logger.Log("msg", "MQTT client disconnected")
	}
}
