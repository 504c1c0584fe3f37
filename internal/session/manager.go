package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eb3nezer/mqtt-fan/internal/fan"
	"github.com/eb3nezer/mqtt-fan/internal/infrastructure/mqtt"
	"github.com/eb3nezer/mqtt-fan/internal/settings"
	"github.com/eb3nezer/mqtt-fan/internal/status"
)

const (
	// ReconnectInterval is the minimum time between connection attempts.
	ReconnectInterval = 5 * time.Second

	// inboundQueueSize bounds messages waiting for the loop.
	inboundQueueSize = 64

	// maxPumpBatch bounds how many messages one Pump call dispatches.
	maxPumpBatch = 16
)

// State is the bus session state.
type State int

// Session states.
const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Transport is the MQTT client the manager drives. *mqtt.Client satisfies it.
type Transport interface {
	Connect(ctx context.Context, opts mqtt.ConnectOptions) error
	IsConnected() bool
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Disconnect()
}

// Handler applies a command. *fan.Processor satisfies it.
type Handler interface {
	Handle(cmd fan.Command, payload []byte) error
}

// Logger defines the logging interface for the manager.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type message struct {
	topic   string
	payload []byte
}

// Manager owns the bus session. It is driven from a single goroutine;
// only the inbound queue is written from transport goroutines.
type Manager struct {
	record    *settings.Record
	transport Transport
	handler   Handler
	indicator status.Indicator
	logger    Logger
	qos       byte
	now       func() time.Time

	state         State
	lastAttempt   time.Time
	onStateChange func(State)

	inbound chan message
}

// NewManager creates a manager reading broker settings and topics from record.
func NewManager(record *settings.Record, transport Transport, handler Handler, indicator status.Indicator) *Manager {
	return &Manager{
		record:    record,
		transport: transport,
		handler:   handler,
		indicator: indicator,
		logger:    noopLogger{},
		now:       time.Now,
		inbound:   make(chan message, inboundQueueSize),
	}
}

// SetLogger sets the logger for the manager.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
}

// SetQoS sets the QoS used for subscriptions and publishes.
func (m *Manager) SetQoS(qos byte) {
	m.qos = qos
}

// SetOnStateChange registers a callback for state transitions.
func (m *Manager) SetOnStateChange(fn func(State)) {
	m.onStateChange = fn
}

// State returns the current session state.
func (m *Manager) State() State {
	return m.state
}

// Connected reports whether the session is up.
func (m *Manager) Connected() bool {
	return m.state == Connected
}

// PollReconnect makes one connection attempt when disconnected and the
// pacing interval has passed. It returns immediately otherwise.
func (m *Manager) PollReconnect(ctx context.Context) {
	if m.state == Connected {
		if m.transport.IsConnected() {
			return
		}
		m.logger.Warn("mqtt connection lost")
		m.setState(Disconnected)
	}

	now := m.now()
	if !m.lastAttempt.IsZero() && now.Sub(m.lastAttempt) < ReconnectInterval {
		return
	}
	m.lastAttempt = now

	m.attempt(ctx)
}

// Reset drops the connection so the next poll reconnects with the current
// settings record.
func (m *Manager) Reset() {
	m.transport.Disconnect()
	m.lastAttempt = time.Time{}
	m.setState(Disconnected)
}

func (m *Manager) attempt(ctx context.Context) {
	m.setState(Connecting)
	m.indicator.StartBlink(status.RateBusConnect)
	defer m.indicator.StopBlink()

	broker, err := m.record.BrokerAddress()
	if err != nil {
		m.logger.Warn("mqtt connect skipped", "error", err)
		m.setState(Disconnected)
		return
	}

	m.logger.Info("attempting mqtt connection", "broker", broker, "client_id", m.record.Device.String())

	err = m.transport.Connect(ctx, mqtt.ConnectOptions{
		Broker:   broker,
		ClientID: m.record.Device.String(),
		Username: m.record.User.String(),
		Password: m.record.Password.String(),
	})
	if err != nil {
		var connErr *mqtt.ConnectError
		if errors.As(err, &connErr) {
			m.logger.Warn("mqtt connect failed, retrying",
				"rc", connErr.ReturnCode,
				"reason", connErr.Reason(),
				"retry_in", ReconnectInterval,
				"error", err,
			)
		} else {
			m.logger.Warn("mqtt connect failed, retrying", "retry_in", ReconnectInterval, "error", err)
		}
		m.setState(Disconnected)
		return
	}

	m.logger.Info("mqtt connected", "broker", broker)
	m.setState(Connected)

	m.subscribe("power set", m.record.PowerSetTopic.String())
	m.subscribe("speed set", m.record.SpeedSetTopic.String())
	m.subscribe("oscillation set", m.record.OscSetTopic.String())
}

func (m *Manager) subscribe(name, topic string) {
	if topic == "" {
		m.logger.Warn("topic not configured", "topic_name", name)
		return
	}

	if err := m.transport.Subscribe(topic, m.qos, m.enqueue); err != nil {
		m.logger.Error("subscribe failed", "topic_name", name, "topic", topic, "error", err)
		return
	}
	m.logger.Info("subscribed", "topic_name", name, "topic", topic)
}

// enqueue runs on transport goroutines. It never blocks.
func (m *Manager) enqueue(topic string, payload []byte) error {
	msg := message{topic: topic, payload: append([]byte(nil), payload...)}
	select {
	case m.inbound <- msg:
		return nil
	default:
		return fmt.Errorf("inbound queue full, dropped message on %q", topic)
	}
}

// Pump dispatches queued messages on the calling goroutine.
// It returns the number dispatched.
func (m *Manager) Pump() int {
	for n := 0; n < maxPumpBatch; n++ {
		select {
		case msg := <-m.inbound:
			if err := m.Dispatch(msg.topic, msg.payload); err != nil {
				m.logger.Warn("message dropped", "topic", msg.topic, "error", err)
			}
		default:
			return n
		}
	}
	return maxPumpBatch
}

// Dispatch routes a message to the handler by exact topic match, checking
// power, then oscillation, then speed. Empty configured topics never match.
func (m *Manager) Dispatch(topic string, payload []byte) error {
	m.logger.Debug("message arrived", "topic", topic, "payload", string(payload))

	cmd, ok := m.route(topic)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnrecognisedTopic, topic)
	}

	if err := m.handler.Handle(cmd, payload); err != nil {
		return fmt.Errorf("handling %s command: %w", cmd, err)
	}
	return nil
}

func (m *Manager) route(topic string) (fan.Command, bool) {
	if topic == "" {
		return 0, false
	}
	switch topic {
	case m.record.PowerSetTopic.String():
		return fan.CommandPower, true
	case m.record.OscSetTopic.String():
		return fan.CommandOscillation, true
	case m.record.SpeedSetTopic.String():
		return fan.CommandSpeed, true
	default:
		return 0, false
	}
}

// Publish sends a retained message. An empty topic is a no-op.
func (m *Manager) Publish(topic, payload string) error {
	if topic == "" {
		return nil
	}

	if err := m.transport.Publish(topic, []byte(payload), m.qos, true); err != nil {
		return fmt.Errorf("publishing to %q: %w", topic, err)
	}
	m.logger.Debug("published", "topic", topic, "payload", payload)
	return nil
}

// PublishPower publishes "ON" or "OFF" on the power state topic.
func (m *Manager) PublishPower(on bool) error {
	return m.Publish(m.record.PowerStateTopic.String(), fan.OnOffPayload(on))
}

// PublishOscillation publishes "ON" or "OFF" on the oscillation state topic.
func (m *Manager) PublishOscillation(on bool) error {
	return m.Publish(m.record.OscStateTopic.String(), fan.OnOffPayload(on))
}

// PublishSpeed publishes the speed token on the speed state topic.
// SpeedUnknown is never published.
func (m *Manager) PublishSpeed(speed fan.Speed) error {
	token, ok := speed.Token()
	if !ok {
		return fmt.Errorf("%w: %v has no wire form", fan.ErrUnknownSpeed, speed)
	}
	return m.Publish(m.record.SpeedStateTopic.String(), token)
}

func (m *Manager) setState(s State) {
	if m.state == s {
		return
	}
	m.state = s
	if m.onStateChange != nil {
		m.onStateChange(s)
	}
}
