package fan

import "context"

// Actuator drives the fan hardware.
type Actuator interface {
	SetPower(on bool) error
	SetSpeed(speed Speed) error
	SetOscillation(on bool) error

	// ReadSpeedSwitch returns the physical switch position, or SpeedUnknown
	// when it cannot be read.
	ReadSpeedSwitch() Speed
}

// StatePublisher republishes confirmed state on the configured state topics.
type StatePublisher interface {
	PublishPower(on bool) error
	PublishSpeed(speed Speed) error
	PublishOscillation(on bool) error
}

// Recorder receives confirmed transitions.
type Recorder interface {
	RecordTransition(ctx context.Context, t Transition) error
}

// Logger defines the logging interface for the processor.
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

type noopPublisher struct{}

func (noopPublisher) PublishPower(bool) error       { return nil }
func (noopPublisher) PublishSpeed(Speed) error      { return nil }
func (noopPublisher) PublishOscillation(bool) error { return nil }
