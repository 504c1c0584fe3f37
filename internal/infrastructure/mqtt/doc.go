// Package mqtt provides the MQTT transport for the fan controller.
//
// It wraps paho.mqtt.golang and manages:
//   - Single connection attempts with a bounded timeout
//   - Retained publishing with input validation
//   - Exact-topic subscriptions on a clean session
//   - Last Will and Testament (LWT) on the device availability topic
//
// # Reconnection
//
// Automatic reconnection in paho is disabled. The session manager decides
// when to retry so that attempts are paced by the control loop and each
// failure can be logged with the broker's CONNACK return code:
//
//	err := client.Connect(ctx, mqtt.ConnectOptions{Broker: "10.0.0.2:1883", ClientID: "fan"})
//	var connErr *mqtt.ConnectError
//	if errors.As(err, &connErr) {
//	    log.Printf("rc=%d (%s)", connErr.ReturnCode, connErr.Reason())
//	}
//
// # Availability
//
// When availability is enabled the client registers "<device>/availability"
// as its will topic with payload "offline", publishes "online" (retained)
// after every successful connect and "offline" on a graceful Disconnect.
package mqtt
