package fan

import (
	"fmt"
	"time"
)

// Speed is the fan speed setting.
type Speed int

// Speed values. SpeedUnknown is a sentinel for "did not map to a speed"
// and is never actuated or published.
const (
	SpeedUnknown Speed = iota
	SpeedOff
	SpeedLow
	SpeedMedium
	SpeedHigh
)

// Wire tokens.
const (
	PayloadOn  = "ON"
	PayloadOff = "OFF"

	speedTokenOff    = "off"
	speedTokenLow    = "low"
	speedTokenMedium = "medium"
	speedTokenHigh   = "high"
)

// String returns the wire token, or "unknown" for SpeedUnknown.
func (s Speed) String() string {
	if token, ok := s.Token(); ok {
		return token
	}
	return "unknown"
}

// Token returns the wire token for s. ok is false for SpeedUnknown and
// out-of-range values, which have no wire form.
func (s Speed) Token() (token string, ok bool) {
	switch s {
	case SpeedOff:
		return speedTokenOff, true
	case SpeedLow:
		return speedTokenLow, true
	case SpeedMedium:
		return speedTokenMedium, true
	case SpeedHigh:
		return speedTokenHigh, true
	default:
		return "", false
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Speed) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. "unknown" decodes to SpeedUnknown.
func (s *Speed) UnmarshalText(text []byte) error {
	if string(text) == "unknown" {
		*s = SpeedUnknown
		return nil
	}
	parsed, err := ParseSpeed(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseSpeed maps a wire token to a Speed. Matching is exact and lowercase.
func ParseSpeed(token string) (Speed, error) {
	switch token {
	case speedTokenOff:
		return SpeedOff, nil
	case speedTokenLow:
		return SpeedLow, nil
	case speedTokenMedium:
		return SpeedMedium, nil
	case speedTokenHigh:
		return SpeedHigh, nil
	default:
		return SpeedUnknown, fmt.Errorf("%w: %q", ErrUnknownSpeed, token)
	}
}

// OnOffPayload returns "ON" or "OFF".
func OnOffPayload(on bool) string {
	if on {
		return PayloadOn
	}
	return PayloadOff
}

// State is the fan's confirmed state.
type State struct {
	Power       bool  `json:"power"`
	Speed       Speed `json:"speed"`
	Oscillation bool  `json:"oscillation"`
}

// Command identifies which set topic a message arrived on.
type Command int

// Command kinds.
const (
	CommandPower Command = iota + 1
	CommandOscillation
	CommandSpeed
)

func (c Command) String() string {
	switch c {
	case CommandPower:
		return "power"
	case CommandOscillation:
		return "oscillation"
	case CommandSpeed:
		return "speed"
	default:
		return fmt.Sprintf("command(%d)", int(c))
	}
}

// Transition sources.
const (
	SourceBus    = "mqtt"
	SourceSwitch = "switch"
)

// Transition is a confirmed state change offered to recorders.
type Transition struct {
	Device  string
	Command Command
	Source  string
	State   State
	At      time.Time
}
