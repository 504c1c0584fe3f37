//go:build integration

package mqtt

import (
	"context"
	"testing"
	"time"

	"github.com/eb3nezer/mqtt-fan/internal/infrastructure/config"
)

// Integration tests against a running MQTT broker at 127.0.0.1:1883.
//
// Run with:
//   go test -tags=integration -v ./internal/infrastructure/mqtt/...

func integrationOptions(clientID string) ConnectOptions {
	return ConnectOptions{Broker: "127.0.0.1:1883", ClientID: clientID}
}

// TestIntegration_MessageRoundtrip verifies retained pub/sub works end-to-end.
func TestIntegration_MessageRoundtrip(t *testing.T) {
	cfg := config.MQTTConfig{QoS: 1, Availability: true}
	ctx := context.Background()

	pub := New(cfg)
	if err := pub.Connect(ctx, integrationOptions("fancontrol-int-pub")); err != nil {
		t.Fatalf("publisher Connect() error = %v", err)
	}
	defer pub.Close()

	topic := "fancontrol/int/speed/state"
	if err := pub.Publish(topic, []byte("medium"), pub.QoS(), true); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	sub := New(cfg)
	if err := sub.Connect(ctx, integrationOptions("fancontrol-int-sub")); err != nil {
		t.Fatalf("subscriber Connect() error = %v", err)
	}
	defer sub.Close()

	received := make(chan string, 1)
	err := sub.Subscribe(topic, 1, func(_ string, payload []byte) error {
		select {
		case received <- string(payload):
		default:
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	select {
	case got := <-received:
		if got != "medium" {
			t.Errorf("received %q, want medium", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for retained message")
	}
}

// TestIntegration_Availability verifies the birth message is retained.
func TestIntegration_Availability(t *testing.T) {
	cfg := config.MQTTConfig{QoS: 1, Availability: true}
	ctx := context.Background()

	fan := New(cfg)
	if err := fan.Connect(ctx, integrationOptions("fancontrol-int-avail")); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer fan.Close()

	watcher := New(config.MQTTConfig{QoS: 1})
	if err := watcher.Connect(ctx, integrationOptions("fancontrol-int-watch")); err != nil {
		t.Fatalf("watcher Connect() error = %v", err)
	}
	defer watcher.Close()

	received := make(chan string, 4)
	topic := Topics{}.Availability("fancontrol-int-avail")
	if err := watcher.Subscribe(topic, 1, func(_ string, payload []byte) error {
		received <- string(payload)
		return nil
	}); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	select {
	case got := <-received:
		if got != PayloadOnline {
			t.Errorf("availability = %q, want %q", got, PayloadOnline)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for availability")
	}
}
