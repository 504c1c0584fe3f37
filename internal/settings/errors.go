package settings

import "errors"

// Domain-specific errors for settings operations.
var (
	// ErrNoDocument is returned by Storage when nothing has been persisted yet.
	ErrNoDocument = errors.New("settings: no document stored")

	// ErrStorageUnavailable is returned when the backing storage cannot be used.
	ErrStorageUnavailable = errors.New("settings: storage unavailable")

	// ErrUnknownKey is returned when setting a key that is not part of the record.
	ErrUnknownKey = errors.New("settings: unknown key")

	// ErrInvalidPort is returned when the broker port is not a valid TCP port.
	ErrInvalidPort = errors.New("settings: invalid broker port")

	// ErrMissingServer is returned when no broker host is configured.
	ErrMissingServer = errors.New("settings: broker server not configured")
)
