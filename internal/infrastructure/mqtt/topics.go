package mqtt

import (
	"fmt"
	"strings"
)

// Availability payloads published on the availability topic.
const (
	PayloadOnline  = "online"
	PayloadOffline = "offline"
)

// availabilitySuffix is appended to the device name to form the will topic.
const availabilitySuffix = "availability"

// maxTopicLength is the MQTT limit on topic length in bytes.
const maxTopicLength = 65535

// Topics provides builders for the topics the transport owns itself.
// Command and state topics are user-configured and not built here.
type Topics struct{}

// Availability returns the availability topic for a device.
//
// Example: bedroom-fan/availability
func (Topics) Availability(device string) string {
	return fmt.Sprintf("%s/%s", strings.TrimSuffix(device, "/"), availabilitySuffix)
}

// ValidatePublishTopic checks a topic before publishing.
// Publish topics must be non-empty and may not contain wildcards.
func ValidatePublishTopic(topic string) error {
	if err := validateTopic(topic); err != nil {
		return err
	}
	if strings.ContainsAny(topic, "+#") {
		return fmt.Errorf("%w: wildcards not allowed in publish topic %q", ErrInvalidTopic, topic)
	}
	return nil
}

// ValidateSubscribeTopic checks a topic filter before subscribing.
// '#' is only valid as the last level and '+' only as a whole level.
func ValidateSubscribeTopic(topic string) error {
	if err := validateTopic(topic); err != nil {
		return err
	}

	levels := strings.Split(topic, "/")
	for i, level := range levels {
		if strings.Contains(level, "#") && (level != "#" || i != len(levels)-1) {
			return fmt.Errorf("%w: misplaced '#' in %q", ErrInvalidTopic, topic)
		}
		if strings.Contains(level, "+") && level != "+" {
			return fmt.Errorf("%w: misplaced '+' in %q", ErrInvalidTopic, topic)
		}
	}
	return nil
}

func validateTopic(topic string) error {
	if topic == "" {
		return fmt.Errorf("%w: topic cannot be empty", ErrInvalidTopic)
	}
	if len(topic) > maxTopicLength {
		return fmt.Errorf("%w: topic exceeds %d bytes", ErrInvalidTopic, maxTopicLength)
	}
	if strings.ContainsRune(topic, 0) {
		return fmt.Errorf("%w: topic contains NUL", ErrInvalidTopic)
	}
	return nil
}
