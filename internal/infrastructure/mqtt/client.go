package mqtt

import (
	"context"
	"fmt"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/vehicle-ai-core/internal/infrastructure/config"
)

// Logger is the logging surface the client needs. *logging.Logger
// satisfies it.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// MessageHandler receives one inbound message. Handlers run on paho's
// goroutines; a returned error is logged and the message is still acked.
type MessageHandler func(topic string, payload []byte) error

// Option configures a Client at Connect time.
type Option func(*Client)

// WithLogger routes connection events and handler failures to l.
func WithLogger(l Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// Client is one vehicle's connection to the broker.
//
// It speaks only the vehicle/{id}/ topic tree: retained state snapshots
// out, commands in, results out, and presence on the status topic (LWT
// on an unexpected drop, "online" on every connect, "offline" on Close).
// Command subscriptions survive reconnects.
//
// All methods are safe for concurrent use.
type Client struct {
	paho   pahomqtt.Client
	topics Topics
	qos    byte
	logger Logger

	mu        sync.RWMutex
	connected bool
	handlers  map[string]MessageHandler
}

// Connect dials the broker described by cfg and blocks until the first
// session is up or defaultConnectTimeout passes.
//
// Parameters:
//   - cfg: mqtt section of config.yaml
//   - topics: Topic tree of the vehicle this process serves
//   - opts: Optional settings such as WithLogger
//
// Returns:
//   - *Client: Connected client; Close it to publish the offline status
//   - error: ErrInvalidQoS, or wraps ErrConnectionFailed
func Connect(cfg config.MQTTConfig, topics Topics, opts ...Option) (*Client, error) {
	if cfg.QoS < 0 || cfg.QoS > maxQoS {
		return nil, ErrInvalidQoS
	}
	c := &Client{
		topics:   topics,
		qos:      byte(cfg.QoS), //nolint:gosec // QoS validated to 0..2
		logger:   noopLogger{},
		handlers: make(map[string]MessageHandler),
	}
	for _, opt := range opts {
		opt(c)
	}

	po := buildClientOptions(cfg)
	configureLWT(po, topics)
	po.SetOnConnectHandler(func(pahomqtt.Client) { c.onSession() })
	po.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.setConnected(false)
		c.logger.Warn("MQTT connection lost", "vehicle_id", topics.VehicleID, "error", err)
	})
	po.SetReconnectingHandler(func(pahomqtt.Client, *pahomqtt.ClientOptions) {
		c.logger.Info("MQTT reconnecting", "broker", cfg.Broker.Host)
	})

	c.paho = pahomqtt.NewClient(po)
	token := c.paho.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// The connect handler runs asynchronously and may not have fired yet.
	c.setConnected(true)
	return c, nil
}

// onSession runs for the first connect and every reconnect: it restores
// subscriptions and announces the vehicle online.
func (c *Client) onSession() {
	c.setConnected(true)

	c.mu.RLock()
	for topic, h := range c.handlers {
		c.paho.Subscribe(topic, c.qos, c.wrapHandler(h))
	}
	c.mu.RUnlock()

	c.paho.Publish(c.topics.Status(), c.qos, true, buildStatusPayload(c.topics.VehicleID, statusOnline, ""))
	c.logger.Info("MQTT session established", "vehicle_id", c.topics.VehicleID)
}

func (c *Client) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}

// Close publishes the graceful offline status and disconnects. Closing an
// unconnected client is a no-op.
func (c *Client) Close() error {
	if c.paho == nil {
		return nil
	}
	if c.IsConnected() {
		token := c.paho.Publish(c.topics.Status(), c.qos, true,
			buildStatusPayload(c.topics.VehicleID, statusOffline, "graceful_shutdown"))
		token.WaitTimeout(defaultPublishTimeout)
	}
	c.paho.Disconnect(defaultDisconnectQuiesce)
	c.setConnected(false)
	return nil
}

// HealthCheck reports ErrNotConnected while the session is down.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected reports the last known session state.
func (c *Client) IsConnected() bool {
	if c.paho == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected && c.paho.IsConnected()
}

// wrapHandler adapts h to paho, recovering panics so one bad command
// cannot take down the router goroutine.
func (c *Client) wrapHandler(h MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("MQTT handler panic recovered", "topic", msg.Topic(), "panic", r)
			}
		}()
		if err := h(msg.Topic(), msg.Payload()); err != nil {
			c.logger.Warn("MQTT handler returned error", "topic", msg.Topic(), "error", err)
		}
	}
}
