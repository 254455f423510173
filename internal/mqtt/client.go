package mqtt

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"bluelink-bridge/internal/observability/metrics"
)

const connectTimeout = 10 * time.Second

// MessageHandler receives an inbound message's topic and payload.
type MessageHandler func(topic string, payload []byte)

// Options configures the broker connection.
type Options struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string
	QoS       byte
}

// Client wraps the paho client with reconnect-safe subscriptions:
// every filter registered through Subscribe is replayed on reconnect.
type Client struct {
	client paho.Client
	qos    byte
	logger *log.Logger

	mu            sync.Mutex
	subscriptions map[string]MessageHandler
	willTopic     string
}

// NewClient constructs a broker client. Connect must be called before
// publishing.
func NewClient(opts Options, willTopic string, logger *log.Logger) (*Client, error) {
	if opts.BrokerURL == "" {
		return nil, errors.New("mqtt: empty broker url")
	}
	if opts.ClientID == "" {
		return nil, errors.New("mqtt: empty client id")
	}
	if logger == nil {
		logger = log.Default()
	}

	c := &Client{
		qos:           opts.QoS,
		logger:        logger,
		subscriptions: make(map[string]MessageHandler),
		willTopic:     willTopic,
	}

	pahoOpts := paho.NewClientOptions().
		AddBroker(opts.BrokerURL).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOrderMatters(false)
	if opts.Username != "" {
		pahoOpts.SetUsername(opts.Username)
		pahoOpts.SetPassword(opts.Password)
	}
	if willTopic != "" {
		pahoOpts.SetWill(willTopic, "offline", opts.QoS, true)
	}
	pahoOpts.SetOnConnectHandler(func(client paho.Client) {
		logger.Printf("connected to broker %s", opts.BrokerURL)
		c.resubscribe()
		if willTopic != "" {
			client.Publish(willTopic, c.qos, true, "online")
		}
	})
	pahoOpts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logger.Printf("broker connection lost: %v", err)
	})

	c.client = paho.NewClient(pahoOpts)
	return c, nil
}

// Connect opens the broker connection and waits for it.
func (c *Client) Connect() error {
	token := c.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return errors.New("mqtt: connect timed out")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt: connect: %w", err)
	}
	return nil
}

// Subscribe registers a handler for a topic filter. The subscription
// survives reconnects.
func (c *Client) Subscribe(filter string, handler MessageHandler) error {
	c.mu.Lock()
	c.subscriptions[filter] = handler
	c.mu.Unlock()
	token := c.client.Subscribe(filter, c.qos, func(_ paho.Client, msg paho.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt: subscribe %s: %w", filter, err)
	}
	return nil
}

func (c *Client) resubscribe() {
	c.mu.Lock()
	subs := make(map[string]MessageHandler, len(c.subscriptions))
	for filter, handler := range c.subscriptions {
		subs[filter] = handler
	}
	c.mu.Unlock()

	for filter, handler := range subs {
		h := handler
		token := c.client.Subscribe(filter, c.qos, func(_ paho.Client, msg paho.Message) {
			h(msg.Topic(), msg.Payload())
		})
		token.Wait()
		if err := token.Error(); err != nil {
			c.logger.Printf("resubscribe %s failed: %v", filter, err)
		}
	}
}

// Publish sends a payload. Failures are logged and counted but never
// block the caller beyond the broker handshake.
func (c *Client) Publish(topic string, payload []byte, retain bool) {
	token := c.client.Publish(topic, c.qos, retain, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		metrics.IncMQTTPublishError()
		c.logger.Printf("publish to %s failed: %v", topic, err)
	}
}

// Disconnect announces offline and closes the connection.
func (c *Client) Disconnect() {
	if c.willTopic != "" && c.client.IsConnected() {
		c.Publish(c.willTopic, []byte("offline"), true)
	}
	c.client.Disconnect(250)
}
