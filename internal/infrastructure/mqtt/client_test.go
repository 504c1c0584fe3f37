package mqtt

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/eb3nezer/mqtt-fan/internal/infrastructure/config"
)

// =============================================================================
// Fakes
// =============================================================================

type fakeToken struct {
	done chan struct{}
	err  error
}

func newFakeToken(err error) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  string
}

// fakePaho records calls. connectErr fails Connect; block makes Connect hang.
type fakePaho struct {
	opts       *pahomqtt.ClientOptions
	connectErr error
	block      bool

	mu           sync.Mutex
	open         bool
	published    []published
	subscribed   map[string]pahomqtt.MessageHandler
	disconnected bool
}

func (f *fakePaho) IsConnected() bool { return f.IsConnectionOpen() }

func (f *fakePaho) IsConnectionOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

func (f *fakePaho) Connect() pahomqtt.Token {
	if f.block {
		return &fakeToken{done: make(chan struct{})}
	}
	if f.connectErr == nil {
		f.mu.Lock()
		f.open = true
		f.mu.Unlock()
	}
	return newFakeToken(f.connectErr)
}

func (f *fakePaho) Disconnect(uint) {
	f.mu.Lock()
	f.open = false
	f.disconnected = true
	f.mu.Unlock()
}

func (f *fakePaho) Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token {
	var body string
	switch p := payload.(type) {
	case string:
		body = p
	case []byte:
		body = string(p)
	}
	f.mu.Lock()
	f.published = append(f.published, published{topic, qos, retained, body})
	f.mu.Unlock()
	return newFakeToken(nil)
}

func (f *fakePaho) Subscribe(topic string, _ byte, callback pahomqtt.MessageHandler) pahomqtt.Token {
	f.mu.Lock()
	if f.subscribed == nil {
		f.subscribed = make(map[string]pahomqtt.MessageHandler)
	}
	f.subscribed[topic] = callback
	f.mu.Unlock()
	return newFakeToken(nil)
}

func (f *fakePaho) SubscribeMultiple(map[string]byte, pahomqtt.MessageHandler) pahomqtt.Token {
	return newFakeToken(nil)
}

func (f *fakePaho) Unsubscribe(...string) pahomqtt.Token { return newFakeToken(nil) }

func (f *fakePaho) AddRoute(string, pahomqtt.MessageHandler) {}

func (f *fakePaho) OptionsReader() pahomqtt.ClientOptionsReader {
	return pahomqtt.NewOptionsReader(f.opts)
}

func (f *fakePaho) lastPublished() (published, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.published) == 0 {
		return published{}, false
	}
	return f.published[len(f.published)-1], true
}

// fakeMessage implements pahomqtt.Message.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 0 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type recordingLogger struct {
	mu     sync.Mutex
	errors []string
	warns  []string
}

func (l *recordingLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}

func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}

func testConfig() config.MQTTConfig {
	return config.MQTTConfig{QoS: 0, Availability: true}
}

func testOptions() ConnectOptions {
	return ConnectOptions{Broker: "192.0.2.10:1883", ClientID: "bedroom-fan", Username: "fan", Password: "secret"}
}

// newTestClient returns a client whose paho clients are fakes.
func newTestClient(cfg config.MQTTConfig, fake *fakePaho) *Client {
	c := New(cfg)
	c.newClient = func(opts *pahomqtt.ClientOptions) pahomqtt.Client {
		fake.opts = opts
		return fake
	}
	return c
}

// =============================================================================
// Options Tests
// =============================================================================

func TestBuildClientOptions(t *testing.T) {
	opts, err := buildClientOptions(testConfig(), testOptions())
	if err != nil {
		t.Fatalf("buildClientOptions() error = %v", err)
	}

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://192.0.2.10:1883" {
		t.Errorf("Servers = %v, want [tcp://192.0.2.10:1883]", opts.Servers)
	}
	if opts.ClientID != "bedroom-fan" {
		t.Errorf("ClientID = %q, want bedroom-fan", opts.ClientID)
	}
	if opts.Username != "fan" || opts.Password != "secret" {
		t.Errorf("credentials = %q/%q, want fan/secret", opts.Username, opts.Password)
	}
	if opts.AutoReconnect {
		t.Error("AutoReconnect = true, want false")
	}
	if opts.ConnectRetry {
		t.Error("ConnectRetry = true, want false")
	}
	if !opts.CleanSession {
		t.Error("CleanSession = false, want true")
	}
	if !opts.WillEnabled || opts.WillTopic != "bedroom-fan/availability" {
		t.Errorf("will = %v %q, want enabled on bedroom-fan/availability", opts.WillEnabled, opts.WillTopic)
	}
	if string(opts.WillPayload) != PayloadOffline || !opts.WillRetained {
		t.Errorf("will payload = %q retained=%v, want offline retained", opts.WillPayload, opts.WillRetained)
	}
}

func TestBuildClientOptions_TLSAndNoAvailability(t *testing.T) {
	cfg := config.MQTTConfig{TLS: true}
	co := testOptions()
	co.Username = ""

	opts, err := buildClientOptions(cfg, co)
	if err != nil {
		t.Fatalf("buildClientOptions() error = %v", err)
	}

	if got := opts.Servers[0].Scheme; got != "ssl" {
		t.Errorf("scheme = %q, want ssl", got)
	}
	if opts.TLSConfig == nil {
		t.Error("TLSConfig = nil, want set")
	}
	if opts.WillEnabled {
		t.Error("WillEnabled = true with availability off")
	}
	if opts.Username != "" {
		t.Errorf("Username = %q, want empty", opts.Username)
	}
}

func TestBrokerURL(t *testing.T) {
	tests := []struct {
		name    string
		broker  string
		want    string
		wantErr bool
	}{
		{"ipv4", "10.0.0.2:1883", "tcp://10.0.0.2:1883", false},
		{"hostname", "broker.local:8883", "tcp://broker.local:8883", false},
		{"ipv6", "[fe80::1]:1883", "tcp://[fe80::1]:1883", false},
		{"missing port", "10.0.0.2", "", true},
		{"empty host", ":1883", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := brokerURL(tt.broker, false)
			if (err != nil) != tt.wantErr {
				t.Fatalf("brokerURL(%q) error = %v, wantErr %v", tt.broker, err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidBroker) {
					t.Errorf("error = %v, want ErrInvalidBroker", err)
				}
				return
			}
			if got != tt.want {
				t.Errorf("brokerURL(%q) = %q, want %q", tt.broker, got, tt.want)
			}
		})
	}
}

// =============================================================================
// Connection Tests
// =============================================================================

func TestConnect_PublishesOnline(t *testing.T) {
	fake := &fakePaho{}
	client := newTestClient(testConfig(), fake)

	if err := client.Connect(context.Background(), testOptions()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if !client.IsConnected() {
		t.Fatal("IsConnected() = false after Connect")
	}

	got, ok := fake.lastPublished()
	if !ok {
		t.Fatal("nothing published on connect")
	}
	want := published{"bedroom-fan/availability", 1, true, PayloadOnline}
	if got != want {
		t.Errorf("published %+v, want %+v", got, want)
	}
}

func TestConnect_Failure(t *testing.T) {
	fake := &fakePaho{connectErr: errors.New("not authorised")}
	client := newTestClient(testConfig(), fake)

	err := client.Connect(context.Background(), testOptions())
	if !errors.Is(err, ErrConnectionFailed) {
		t.Fatalf("Connect() error = %v, want ErrConnectionFailed", err)
	}

	var connErr *ConnectError
	if !errors.As(err, &connErr) {
		t.Fatalf("Connect() error type = %T, want *ConnectError", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after failed Connect")
	}
}

func TestConnect_InvalidBroker(t *testing.T) {
	client := newTestClient(testConfig(), &fakePaho{})

	err := client.Connect(context.Background(), ConnectOptions{Broker: "no-port"})
	if !errors.Is(err, ErrInvalidBroker) {
		t.Errorf("Connect() error = %v, want ErrInvalidBroker", err)
	}
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestConnect_ContextCancelled(t *testing.T) {
	fake := &fakePaho{block: true}
	client := newTestClient(testConfig(), fake)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := client.Connect(ctx, testOptions())
	var connErr *ConnectError
	if !errors.As(err, &connErr) {
		t.Fatalf("Connect() error = %v, want *ConnectError", err)
	}
	if connErr.ReturnCode != ReturnCodeTimeout {
		t.Errorf("ReturnCode = %d, want %d", connErr.ReturnCode, ReturnCodeTimeout)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want context.DeadlineExceeded", err)
	}
}

func TestConnect_RefusedByNetwork(t *testing.T) {
	// Reserve a port and release it so nothing is listening.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	client := New(config.MQTTConfig{})
	err = client.Connect(context.Background(), ConnectOptions{Broker: addr, ClientID: "refused"})

	var connErr *ConnectError
	if !errors.As(err, &connErr) {
		t.Fatalf("Connect() error = %v, want *ConnectError", err)
	}
	if connErr.ReturnCode != ReturnCodeNetworkError {
		t.Errorf("ReturnCode = %d, want %d", connErr.ReturnCode, ReturnCodeNetworkError)
	}
}

func TestDisconnect_PublishesOffline(t *testing.T) {
	fake := &fakePaho{}
	client := newTestClient(testConfig(), fake)

	if err := client.Connect(context.Background(), testOptions()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	client.Disconnect()

	got, _ := fake.lastPublished()
	if got.payload != PayloadOffline || got.topic != "bedroom-fan/availability" {
		t.Errorf("last publish = %+v, want offline on availability topic", got)
	}
	if !fake.disconnected {
		t.Error("paho Disconnect not called")
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Disconnect")
	}

	// Second call is a no-op
	client.Disconnect()
}

func TestClose_NeverConnected(t *testing.T) {
	client := New(testConfig())
	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v, want nil", err)
	}
}

func TestConnectionLost_InvokesCallback(t *testing.T) {
	fake := &fakePaho{}
	client := newTestClient(testConfig(), fake)

	var lost error
	client.SetOnDisconnect(func(err error) { lost = err })

	if err := client.Connect(context.Background(), testOptions()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	cause := errors.New("EOF")
	fake.opts.OnConnectionLost(fake, cause)

	if !errors.Is(lost, cause) {
		t.Errorf("callback got %v, want %v", lost, cause)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after connection lost")
	}
}

func TestHealthCheck(t *testing.T) {
	client := New(testConfig())

	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() = %v, want ErrNotConnected", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := client.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck(cancelled) = %v, want context.Canceled", err)
	}
}

// =============================================================================
// Publish / Subscribe Tests
// =============================================================================

func TestPublish_Validation(t *testing.T) {
	client := New(testConfig())

	tests := []struct {
		name    string
		topic   string
		qos     byte
		payload []byte
		want    error
	}{
		{"empty topic", "", 0, nil, ErrInvalidTopic},
		{"wildcard", "fan/+/state", 0, nil, ErrInvalidTopic},
		{"bad qos", "fan/state", 3, nil, ErrInvalidQoS},
		{"too large", "fan/state", 0, make([]byte, maxPayloadSize+1), ErrPublishFailed},
		{"not connected", "fan/state", 0, []byte("ON"), ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.Publish(tt.topic, tt.payload, tt.qos, true)
			if !errors.Is(err, tt.want) {
				t.Errorf("Publish() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestPublishRetained(t *testing.T) {
	fake := &fakePaho{}
	client := newTestClient(config.MQTTConfig{QoS: 1}, fake)

	if err := client.Connect(context.Background(), testOptions()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := client.Publish("fan/speed/state", []byte("low"), client.QoS(), true); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	got, _ := fake.lastPublished()
	want := published{"fan/speed/state", 1, true, "low"}
	if got != want {
		t.Errorf("published %+v, want %+v", got, want)
	}
}

func TestSubscribe(t *testing.T) {
	fake := &fakePaho{}
	client := newTestClient(testConfig(), fake)

	if err := client.Subscribe("fan/power/set", 0, func(string, []byte) error { return nil }); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Subscribe() before connect = %v, want ErrNotConnected", err)
	}

	if err := client.Connect(context.Background(), testOptions()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	var gotTopic, gotPayload string
	err := client.Subscribe("fan/power/set", 0, func(topic string, payload []byte) error {
		gotTopic, gotPayload = topic, string(payload)
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	fake.subscribed["fan/power/set"](fake, fakeMessage{topic: "fan/power/set", payload: []byte("ON")})
	if gotTopic != "fan/power/set" || gotPayload != "ON" {
		t.Errorf("handler got %q=%q, want fan/power/set=ON", gotTopic, gotPayload)
	}

}

func TestSubscribe_Validation(t *testing.T) {
	client := New(testConfig())
	noop := func(string, []byte) error { return nil }

	if err := client.Subscribe("", 0, noop); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic: %v, want ErrInvalidTopic", err)
	}
	if err := client.Subscribe("fan/#/x", 0, noop); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("misplaced #: %v, want ErrInvalidTopic", err)
	}
	if err := client.Subscribe("fan/set", 3, noop); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("bad qos: %v, want ErrInvalidQoS", err)
	}
	if err := client.Subscribe("fan/set", 0, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("nil handler: %v, want ErrSubscribeFailed", err)
	}
}

func TestWrapHandler_RecoversPanic(t *testing.T) {
	client := New(testConfig())
	logger := &recordingLogger{}
	client.SetLogger(logger)

	wrapped := client.wrapHandler(func(string, []byte) error {
		panic("boom")
	})
	wrapped(nil, fakeMessage{topic: "fan/power/set"})

	if len(logger.errors) != 1 {
		t.Errorf("logged %d errors, want 1", len(logger.errors))
	}
}

func TestWrapHandler_LogsError(t *testing.T) {
	client := New(testConfig())
	logger := &recordingLogger{}
	client.SetLogger(logger)

	wrapped := client.wrapHandler(func(string, []byte) error {
		return errors.New("bad payload")
	})
	wrapped(nil, fakeMessage{topic: "fan/speed/set"})

	if len(logger.warns) != 1 {
		t.Errorf("logged %d warnings, want 1", len(logger.warns))
	}
}

// =============================================================================
// ConnectError Tests
// =============================================================================

func TestConnectError(t *testing.T) {
	tests := []struct {
		rc     byte
		reason string
	}{
		{4, "Connection Refused: Username or Password in unknown format"},
		{5, "Connection Refused: Not Authorised"},
		{ReturnCodeTimeout, "Connection Timed Out"},
		{0x42, "Unknown Return Code"},
	}

	for _, tt := range tests {
		err := &ConnectError{ReturnCode: tt.rc}
		if got := err.Reason(); got != tt.reason {
			t.Errorf("Reason(rc=%d) = %q, want %q", tt.rc, got, tt.reason)
		}
		if !strings.Contains(err.Error(), tt.reason) {
			t.Errorf("Error() = %q, want it to contain %q", err.Error(), tt.reason)
		}
		if !errors.Is(err, ErrConnectionFailed) {
			t.Errorf("rc=%d: errors.Is(ErrConnectionFailed) = false", tt.rc)
		}
	}
}
