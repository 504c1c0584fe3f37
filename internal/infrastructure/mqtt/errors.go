package mqtt

import (
	"errors"
	"fmt"

	"github.com/eclipse/paho.mqtt.golang/packets"
)

// Domain-specific errors for MQTT operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotConnected is returned when attempting operations on a disconnected client.
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrConnectionFailed is returned when a connection attempt fails.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrPublishFailed is returned when a publish operation fails.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrSubscribeFailed is returned when a subscribe operation fails.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrInvalidQoS is returned when an invalid QoS level is specified.
	// Valid QoS levels are 0, 1, or 2.
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")

	// ErrInvalidTopic is returned when an empty or invalid topic is provided.
	ErrInvalidTopic = errors.New("mqtt: invalid topic")

	// ErrInvalidBroker is returned when the broker address cannot be parsed.
	ErrInvalidBroker = errors.New("mqtt: invalid broker address")
)

// Return codes that do not come from a CONNACK packet.
const (
	// ReturnCodeNetworkError means no CONNACK was received (refused, unreachable, reset).
	ReturnCodeNetworkError byte = packets.ErrNetworkError

	// ReturnCodeTimeout means the attempt was abandoned before the broker answered.
	ReturnCodeTimeout byte = 0xFD
)

// ConnectError describes a failed connection attempt.
//
// ReturnCode is the broker's CONNACK code (1-5 for refusals) or one of the
// local codes above. It unwraps to ErrConnectionFailed and to the cause.
type ConnectError struct {
	ReturnCode byte
	Err        error
}

// Reason returns a human-readable description of the return code.
func (e *ConnectError) Reason() string {
	if e.ReturnCode == ReturnCodeTimeout {
		return "Connection Timed Out"
	}
	if text, ok := packets.ConnackReturnCodes[e.ReturnCode]; ok {
		return text
	}
	return "Unknown Return Code"
}

func (e *ConnectError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v: rc=%d (%s)", ErrConnectionFailed, e.ReturnCode, e.Reason())
	}
	return fmt.Sprintf("%v: rc=%d (%s): %v", ErrConnectionFailed, e.ReturnCode, e.Reason(), e.Err)
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *ConnectError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrConnectionFailed}
	}
	return []error{ErrConnectionFailed, e.Err}
}
