// Package rabbitmqtest provides in-memory stand-ins for the paho client,
// token and message types so consumers can be exercised without a broker.
package rabbitmqtest

import (
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Token is an already completed mqtt.Token.
type Token struct {
	Err error
}

func (t *Token) Wait() bool                     { return true }
func (t *Token) WaitTimeout(time.Duration) bool { return true }
func (t *Token) Error() error                   { return t.Err }

func (t *Token) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// Message is a minimal mqtt.Message.
type Message struct {
	TopicName string
	Body      []byte
	QoS       byte
	Dup       bool
}

func (m *Message) Duplicate() bool   { return m.Dup }
func (m *Message) Qos() byte         { return m.QoS }
func (m *Message) Retained() bool    { return false }
func (m *Message) Topic() string     { return m.TopicName }
func (m *Message) MessageID() uint16 { return 1 }
func (m *Message) Payload() []byte   { return m.Body }
func (m *Message) Ack()              {}

// Published records one Publish call.
type Published struct {
	Topic   string
	QoS     byte
	Payload interface{}
}

// Client records subscriptions and publications and lets tests deliver
// messages to subscribed handlers.
type Client struct {
	mu            sync.Mutex
	connected     bool
	handlers      map[string]mqtt.MessageHandler
	qos           map[string]byte
	published     []Published
	subscribeErr  error
	subscriptions int
}

// NewClient returns a connected fake client.
func NewClient() *Client {
	return &Client{
		connected: true,
		handlers:  make(map[string]mqtt.MessageHandler),
		qos:       make(map[string]byte),
	}
}

// FailSubscribe makes every later Subscribe call fail with err.
func (c *Client) FailSubscribe(err error) {
	c.mu.Lock()
	c.subscribeErr = err
	c.mu.Unlock()
}

func (c *Client) IsConnected() bool      { c.mu.Lock(); defer c.mu.Unlock(); return c.connected }
func (c *Client) IsConnectionOpen() bool { return c.IsConnected() }
func (c *Client) Connect() mqtt.Token {
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
	return &Token{}
}

func (c *Client) Disconnect(uint) {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
}

func (c *Client) Publish(topic string, qos byte, _ bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	c.published = append(c.published, Published{Topic: topic, QoS: qos, Payload: payload})
	c.mu.Unlock()
	return &Token{}
}

func (c *Client) Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.subscribeErr != nil {
		return &Token{Err: c.subscribeErr}
	}
	c.handlers[topic] = callback
	c.qos[topic] = qos
	c.subscriptions++
	return &Token{}
}

func (c *Client) SubscribeMultiple(filters map[string]byte, callback mqtt.MessageHandler) mqtt.Token {
	for topic, qos := range filters {
		if tok := c.Subscribe(topic, qos, callback); tok.Error() != nil {
			return tok
		}
	}
	return &Token{}
}

func (c *Client) Unsubscribe(topics ...string) mqtt.Token {
	c.mu.Lock()
	for _, t := range topics {
		delete(c.handlers, t)
	}
	c.mu.Unlock()
	return &Token{}
}

func (c *Client) AddRoute(topic string, callback mqtt.MessageHandler) {
	c.mu.Lock()
	c.handlers[topic] = callback
	c.mu.Unlock()
}

func (c *Client) OptionsReader() mqtt.ClientOptionsReader {
	return mqtt.ClientOptionsReader{}
}

// Deliver invokes the handler registered for topic, reporting whether one
// was found.
func (c *Client) Deliver(topic string, payload []byte) bool {
	c.mu.Lock()
	h, ok := c.handlers[topic]
	qos := c.qos[topic]
	c.mu.Unlock()
	if !ok {
		return false
	}
	h(c, &Message{TopicName: topic, Body: payload, QoS: qos})
	return true
}

// Subscribed reports whether topic currently has a handler and its QoS.
func (c *Client) Subscribed(topic string) (byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.handlers[topic]
	return c.qos[topic], ok
}

// Subscriptions counts successful Subscribe calls.
func (c *Client) Subscriptions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subscriptions
}

// Published returns a copy of all publications so far.
func (c *Client) Published() []Published {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Published, len(c.published))
	copy(out, c.published)
	return out
}
