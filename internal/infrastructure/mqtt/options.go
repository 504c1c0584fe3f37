package mqtt

import (
	"crypto/tls"
	"fmt"
	"net"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/eb3nezer/mqtt-fan/internal/infrastructure/config"
)

// Connection constants.
const (
	// defaultConnectTimeout is the maximum time to wait for a CONNACK.
	defaultConnectTimeout = 10 * time.Second

	// defaultPublishTimeout is the maximum time to wait for publish acknowledgment.
	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 250 // milliseconds

	// defaultKeepAlive is the keepalive interval for the connection.
	defaultKeepAlive = 30 * time.Second

	// maxQoS is the maximum QoS level supported.
	maxQoS = 2

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12
)

// ConnectOptions are the per-attempt connection parameters. They come from
// the settings record and may change between attempts after provisioning.
type ConnectOptions struct {
	// Broker is "host:port".
	Broker string

	// ClientID identifies the session; the device name is used.
	ClientID string

	Username string
	Password string
}

// brokerURL converts host:port into a paho broker URL.
func brokerURL(broker string, useTLS bool) (string, error) {
	host, port, err := net.SplitHostPort(broker)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidBroker, err)
	}
	if host == "" {
		return "", fmt.Errorf("%w: empty host", ErrInvalidBroker)
	}

	scheme := "tcp"
	if useTLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s", scheme, net.JoinHostPort(host, port)), nil
}

// buildClientOptions creates paho MQTT options for one connection attempt.
//
// This configures:
//   - Broker URL (tcp:// or ssl:// based on TLS setting)
//   - Client ID and credentials (if provided)
//   - Clean session with automatic reconnection disabled
//   - TLS configuration (if enabled)
//   - The availability will (if enabled and a client ID is set)
func buildClientOptions(cfg config.MQTTConfig, co ConnectOptions) (*pahomqtt.ClientOptions, error) {
	url, err := brokerURL(co.Broker, cfg.TLS)
	if err != nil {
		return nil, err
	}

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(url)
	opts.SetClientID(co.ClientID)

	if co.Username != "" {
		opts.SetUsername(co.Username)
		opts.SetPassword(co.Password)
	}

	opts.SetCleanSession(true)

	// Retries are paced by the caller
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)

	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)

	// Handlers run on paho goroutines; callers must not block the router
	opts.SetOrderMatters(false)

	if cfg.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tlsMinVersion})
	}

	if cfg.Availability && co.ClientID != "" {
		configureLWT(opts, co.ClientID)
	}

	return opts, nil
}

// configureLWT sets up Last Will and Testament for offline detection.
//
// Topic: <device>/availability
// QoS: 1
// Retained: true (new subscribers see last status)
func configureLWT(opts *pahomqtt.ClientOptions, device string) {
	opts.SetWill(Topics{}.Availability(device), PayloadOffline, 1, true)
}
