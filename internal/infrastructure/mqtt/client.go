package mqtt

import (
	"context"
	"errors"
	"fmt"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/eb3nezer/mqtt-fan/internal/infrastructure/config"
)

// Client wraps paho.mqtt.golang for a single device session.
//
// A Client is created once and connected many times. Each Connect builds a
// fresh paho client from the options passed in, so broker settings edited
// through the provisioning portal take effect on the next attempt.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Message handlers run on paho goroutines.
type Client struct {
	cfg config.MQTTConfig

	clientMu     sync.RWMutex
	client       pahomqtt.Client
	availability string

	// connected tracks current connection state.
	connected bool
	connMu    sync.RWMutex

	onDisconnect func(err error)
	callbackMu   sync.RWMutex

	// logger for error/panic logging (optional, set via SetLogger).
	logger   Logger
	loggerMu sync.RWMutex

	// newClient is replaceable in tests.
	newClient func(*pahomqtt.ClientOptions) pahomqtt.Client
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// MessageHandler is the callback signature for received messages.
//
// Handlers are invoked on paho goroutines and should hand the message off
// rather than block.
type MessageHandler func(topic string, payload []byte) error

// New creates a disconnected client.
func New(cfg config.MQTTConfig) *Client {
	return &Client{
		cfg:       cfg,
		newClient: pahomqtt.NewClient,
	}
}

// QoS returns the configured quality of service level.
func (c *Client) QoS() byte {
	return byte(c.cfg.QoS)
}

// Connect makes one connection attempt and returns when the broker has
// answered, the connect timeout expires or ctx is cancelled.
//
// Any previous connection is dropped first. Failures are returned as
// *ConnectError so the caller can log the broker's return code.
func (c *Client) Connect(ctx context.Context, co ConnectOptions) error {
	opts, err := buildClientOptions(c.cfg, co)
	if err != nil {
		return &ConnectError{ReturnCode: ReturnCodeNetworkError, Err: err}
	}

	c.Disconnect()

	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleDisconnect(err)
	})

	pc := c.newClient(opts)
	token := pc.Connect()

	select {
	case <-token.Done():
	case <-ctx.Done():
		pc.Disconnect(0)
		return &ConnectError{ReturnCode: ReturnCodeTimeout, Err: ctx.Err()}
	}

	if err := token.Error(); err != nil {
		rc := ReturnCodeNetworkError
		if ct, ok := token.(*pahomqtt.ConnectToken); ok && ct.ReturnCode() != 0 {
			rc = ct.ReturnCode()
		}
		return &ConnectError{ReturnCode: rc, Err: err}
	}

	availability := ""
	if c.cfg.Availability && co.ClientID != "" {
		availability = Topics{}.Availability(co.ClientID)
	}

	c.clientMu.Lock()
	c.client = pc
	c.availability = availability
	c.clientMu.Unlock()

	c.connMu.Lock()
	c.connected = true
	c.connMu.Unlock()

	if availability != "" {
		if err := c.Publish(availability, []byte(PayloadOnline), 1, true); err != nil {
			c.logWarn("failed to publish availability", "topic", availability, "error", err)
		}
	}

	return nil
}

// handleDisconnect is called by paho when an established connection drops.
func (c *Client) handleDisconnect(err error) {
	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()

	c.callbackMu.RLock()
	callback := c.onDisconnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback(err)
	}
}

// Disconnect publishes "offline" (when availability is enabled) and closes
// the connection. Safe to call when not connected.
func (c *Client) Disconnect() {
	c.clientMu.Lock()
	pc := c.client
	availability := c.availability
	c.client = nil
	c.availability = ""
	c.clientMu.Unlock()

	if pc == nil {
		return
	}

	if availability != "" && pc.IsConnected() {
		token := pc.Publish(availability, 1, true, PayloadOffline)
		token.WaitTimeout(defaultPublishTimeout)
	}

	pc.Disconnect(defaultDisconnectQuiesce)

	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()
}

// Close disconnects from the broker. It implements io.Closer.
func (c *Client) Close() error {
	c.Disconnect()
	return nil
}

// HealthCheck reports whether the connection is alive.
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

// IsConnected returns the current connection state.
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	connected := c.connected
	c.connMu.RUnlock()
	if !connected {
		return false
	}

	pc := c.current()
	return pc != nil && pc.IsConnectionOpen()
}

// SetOnDisconnect sets a callback invoked when an established connection is lost.
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

func (c *Client) current() pahomqtt.Client {
	c.clientMu.RLock()
	defer c.clientMu.RUnlock()
	return c.client
}

// getLogger returns the current logger (may be nil).
func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

func (c *Client) logWarn(msg string, args ...any) {
	if logger := c.getLogger(); logger != nil {
		logger.Warn(msg, args...)
	}
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
			c.logWarn("MQTT handler returned error",
				"topic", msg.Topic(),
				"error", err,
			)
		}
	}
}

// waitToken waits for a token with the publish timeout and wraps failures in sentinel.
func waitToken(token pahomqtt.Token, sentinel error) error {
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", sentinel, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		if errors.Is(err, sentinel) {
			return err
		}
		return fmt.Errorf("%w: %w", sentinel, err)
	}
	return nil
}
