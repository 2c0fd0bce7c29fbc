package mqtt

import (
	"context"
	"fmt"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/traffic-relay/internal/infrastructure/config"
)

// Client wraps paho.mqtt.golang for the traffic relay.
//
// Unlike a self-healing client, every Connect is a single attempt: the
// caller owns the retry loop and decides how long to wait between
// attempts. Each attempt builds a fresh clean session, so subscriptions
// must be re-issued after every successful Connect.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	cfg config.MQTTConfig

	// newClient builds the underlying paho client. Replaced in tests.
	newClient func(*pahomqtt.ClientOptions) pahomqtt.Client

	// client is the paho client of the current attempt.
	client    pahomqtt.Client
	connected bool
	closed    bool
	connMu    sync.RWMutex

	// subscriptions tracks topics subscribed on the current session.
	subscriptions map[string]byte
	subMu         sync.RWMutex

	// Callbacks for connection events (optional, set via SetOnConnect/SetOnDisconnect).
	onConnect    func()
	onDisconnect func(err error)
	callbackMu   sync.RWMutex

	// logger for error/panic logging (optional, set via SetLogger).
	logger   Logger
	loggerMu sync.RWMutex
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// MessageHandler is the callback signature for received messages.
//
// With ordered delivery enabled, handlers run one at a time in arrival
// order. They should not block for extended periods.
//
// Returns:
//   - error: Logged but does not affect message acknowledgment
type MessageHandler func(topic string, payload []byte) error

// New creates a disconnected client for cfg. Call Connect to attach to
// the broker.
func New(cfg config.MQTTConfig) *Client {
	return &Client{
		cfg:           cfg,
		newClient:     pahomqtt.NewClient,
		subscriptions: make(map[string]byte),
	}
}

// Connect makes a single connection attempt to the broker.
//
// On success the online status is published (when a status topic is
// configured) and the OnConnect callback fires. Any previous session is
// discarded first.
//
// Returns:
//   - error: ErrConnectionFailed wrapping the cause, or ErrClosed
func (c *Client) Connect(ctx context.Context) error {
	opts := buildClientOptions(c.cfg)
	configureLWT(opts, c.cfg)
	opts.SetConnectionLostHandler(func(lost pahomqtt.Client, err error) {
		c.handleConnectionLost(lost, err)
	})

	c.connMu.Lock()
	if c.closed {
		c.connMu.Unlock()
		return ErrClosed
	}
	previous := c.client
	pc := c.newClient(opts)
	c.client = pc
	c.connected = false
	c.connMu.Unlock()

	if previous != nil {
		previous.Disconnect(0)
	}
	c.resetSubscriptions()

	token := pc.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		pc.Disconnect(0)
		return fmt.Errorf("%w: %w", ErrConnectionFailed, ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	c.connMu.Lock()
	if c.client != pc {
		// Superseded by Close or a concurrent Connect.
		c.connMu.Unlock()
		pc.Disconnect(0)
		return fmt.Errorf("%w: attempt superseded", ErrConnectionFailed)
	}
	c.connected = true
	c.connMu.Unlock()

	c.publishStatus(StatusOnline, "")

	c.callbackMu.RLock()
	callback := c.onConnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback()
	}

	return nil
}

// handleConnectionLost is called by paho when the connection drops.
// Losses reported by a superseded session are ignored.
func (c *Client) handleConnectionLost(lost pahomqtt.Client, err error) {
	c.connMu.Lock()
	if c.client != lost {
		c.connMu.Unlock()
		return
	}
	c.connected = false
	c.connMu.Unlock()

	c.callbackMu.RLock()
	callback := c.onDisconnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback(err)
	}
}

// publishStatus publishes a retained status message. Failures are logged.
func (c *Client) publishStatus(status, reason string) {
	if c.cfg.StatusTopic == "" {
		return
	}
	payload := buildStatusPayload(c.cfg.Broker.ClientID, status, reason)
	if err := c.Publish(c.cfg.StatusTopic, payload, 1, true); err != nil {
		if logger := c.getLogger(); logger != nil {
			logger.Warn("MQTT status publish failed", "status", status, "error", err)
		}
	}
}

// Disconnect drops the current session without closing the client.
// A later Connect starts a new session.
func (c *Client) Disconnect() {
	c.connMu.Lock()
	pc := c.client
	c.client = nil
	c.connected = false
	c.connMu.Unlock()

	if pc != nil {
		pc.Disconnect(defaultDisconnectQuiesce)
	}
	c.resetSubscriptions()
}

// Close gracefully disconnects from the MQTT broker.
//
// It publishes a graceful offline status (different from the LWT crash
// status) and disconnects. Connect fails with ErrClosed afterwards.
//
// Returns:
//   - error: always nil; a connection that is already gone is not an error
func (c *Client) Close() error {
	if c.IsConnected() {
		c.publishStatus(StatusOffline, "graceful_shutdown")
	}

	c.connMu.Lock()
	c.closed = true
	c.connMu.Unlock()

	c.Disconnect()
	return nil
}

// HealthCheck verifies the MQTT connection is alive.
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	return nil
}

// IsConnected reports whether the current session is up. Both the last
// known state and paho's own view must agree.
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected && c.client != nil && c.client.IsConnected()
}

// current returns the paho client if the session is up.
func (c *Client) current() (pahomqtt.Client, bool) {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	if !c.connected || c.client == nil || !c.client.IsConnected() {
		return nil, false
	}
	return c.client, true
}

// SetOnConnect sets a callback to be invoked after every successful Connect.
func (c *Client) SetOnConnect(callback func()) {
	c.callbackMu.Lock()
	c.onConnect = callback
	c.callbackMu.Unlock()
}

// SetOnDisconnect sets a callback to be invoked when an established
// connection is lost. The error parameter describes why.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.callbackMu.Lock()
	c.onDisconnect = callback
	c.callbackMu.Unlock()
}

// SetLogger sets a logger for error and panic logging.
// If not set, errors in handlers are silently ignored.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

// getLogger returns the current logger (may be nil).
func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

// wrapHandler wraps a MessageHandler with panic recovery and optional logging.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				if logger := c.getLogger(); logger != nil {
					logger.Error("MQTT handler panic recovered",
						"topic", msg.Topic(),
						"panic", r,
					)
				}
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			if logger := c.getLogger(); logger != nil {
				logger.Warn("MQTT handler returned error",
					"topic", msg.Topic(),
					"error", err,
				)
			}
		}
	}
}
