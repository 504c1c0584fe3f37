package influxdb_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/eb3nezer/mqtt-fan/internal/infrastructure/config"
	"github.com/eb3nezer/mqtt-fan/internal/infrastructure/influxdb"
)

// fakeServer answers pings and records line protocol writes.
type fakeServer struct {
	*httptest.Server

	mu       sync.Mutex
	lines    []string
	query    []string
	pingCode int
	failCode int
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	f := &fakeServer{pingCode: http.StatusNoContent}
	f.Server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeServer) handle(w http.ResponseWriter, r *http.Request) {
	switch {
	case strings.HasSuffix(r.URL.Path, "/ping"):
		w.WriteHeader(f.pingCode)
	case strings.HasSuffix(r.URL.Path, "/write"):
		body, _ := io.ReadAll(r.Body) //nolint:errcheck // Test server
		f.mu.Lock()
		f.query = append(f.query, r.URL.RawQuery)
		for _, line := range strings.Split(strings.TrimSpace(string(body)), "\n") {
			if line != "" {
				f.lines = append(f.lines, line)
			}
		}
		code := f.failCode
		f.mu.Unlock()
		if code != 0 {
			http.Error(w, `{"code":"invalid","message":"rejected"}`, code)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeServer) written() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.lines...)
}

func testConfig(url string) config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           url,
		Token:         "test-token",
		Org:           "home",
		Bucket:        "fans",
		BatchSize:     10,
		FlushInterval: 60,
	}
}

func connect(t *testing.T, f *fakeServer) *influxdb.Client {
	t.Helper()
	client, err := influxdb.Connect(context.Background(), testConfig(f.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { client.Close() }) //nolint:errcheck // Cleanup
	return client
}

// =============================================================================
// Connect Tests
// =============================================================================

func TestConnect(t *testing.T) {
	f := newFakeServer(t)
	client := connect(t, f)

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect()")
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.Enabled = false

	if _, err := influxdb.Connect(context.Background(), cfg); !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	f := newFakeServer(t)
	url := f.URL
	f.Close()

	if _, err := influxdb.Connect(context.Background(), testConfig(url)); !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestConnect_Unhealthy(t *testing.T) {
	f := newFakeServer(t)
	f.pingCode = http.StatusServiceUnavailable

	if _, err := influxdb.Connect(context.Background(), testConfig(f.URL)); !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestConnect_DefaultBatchSettings(t *testing.T) {
	f := newFakeServer(t)
	cfg := testConfig(f.URL)
	cfg.BatchSize = -5
	cfg.FlushInterval = 0

	client, err := influxdb.Connect(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	client.Close() //nolint:errcheck // Test cleanup
}

// =============================================================================
// Write Tests
// =============================================================================

func TestWritePointWithTime(t *testing.T) {
	f := newFakeServer(t)
	client := connect(t, f)

	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	client.WritePointWithTime("fan_state",
		map[string]string{"device": "bedroom-fan", "command": "speed"},
		map[string]interface{}{"speed": "high", "power": true},
		ts,
	)
	client.Flush()

	lines := f.written()
	if len(lines) != 1 {
		t.Fatalf("lines = %v, want 1", lines)
	}
	line := lines[0]
	for _, want := range []string{
		"fan_state,",
		"device=bedroom-fan",
		"service=fancontrol",
		`speed="high"`,
		"power=true",
		" 1772366400000000000",
	} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}

	f.mu.Lock()
	query := f.query[0]
	f.mu.Unlock()
	if !strings.Contains(query, "org=home") || !strings.Contains(query, "bucket=fans") {
		t.Errorf("write query = %q", query)
	}
}

func TestWriteConnectivity(t *testing.T) {
	f := newFakeServer(t)
	client := connect(t, f)

	client.WriteConnectivity("bedroom-fan", "mqtt", "connected")
	client.WriteConnectivity("bedroom-fan", "wifi", "disassociated")
	client.Flush()

	lines := f.written()
	if len(lines) != 2 {
		t.Fatalf("lines = %v, want 2", lines)
	}
	if !strings.HasPrefix(lines[0], "connectivity,") || !strings.Contains(lines[0], "up=true") {
		t.Errorf("line 0 = %q", lines[0])
	}
	if !strings.Contains(lines[1], "link=wifi") || !strings.Contains(lines[1], "up=false") {
		t.Errorf("line 1 = %q", lines[1])
	}
}

func TestWrite_AfterCloseDropped(t *testing.T) {
	f := newFakeServer(t)
	client := connect(t, f)

	client.Close() //nolint:errcheck // Close under test
	client.WritePoint("fan_state", nil, map[string]interface{}{"power": true})
	client.Flush()

	if lines := f.written(); len(lines) != 0 {
		t.Errorf("wrote %v after Close", lines)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close")
	}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestSetOnError(t *testing.T) {
	f := newFakeServer(t)
	f.failCode = http.StatusBadRequest
	client := connect(t, f)

	errCh := make(chan error, 1)
	client.SetOnError(func(err error) {
		select {
		case errCh <- err:
		default:
		}
	})

	client.WritePoint("fan_state", map[string]string{"device": "x"}, map[string]interface{}{"power": true})
	client.Flush()

	select {
	case err := <-errCh:
		if err == nil {
			t.Error("callback received nil error")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("write error not reported")
	}
}
