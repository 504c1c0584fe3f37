package fan

import "errors"

// Domain-specific errors for the command processor.
var (
	// ErrUnknownSpeed is returned when a speed payload is not one of the wire tokens.
	ErrUnknownSpeed = errors.New("fan: unknown speed")

	// ErrUnknownCommand is returned for a Command value outside the defined kinds.
	ErrUnknownCommand = errors.New("fan: unknown command")

	// ErrActuation is returned when the actuator rejects a call.
	ErrActuation = errors.New("fan: actuation failed")
)
