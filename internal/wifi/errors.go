package wifi

import "errors"

// Domain errors for network management.
var (
	// ErrRestartRequired is returned when startup provisioning ends without
	// a network. The process should exit and be restarted.
	ErrRestartRequired = errors.New("provisioning exhausted, restart required")

	// ErrCommandFailed is returned when a network tool exits with an error.
	ErrCommandFailed = errors.New("network command failed")

	// ErrInterfaceNotFound is returned when the configured interface does not exist.
	ErrInterfaceNotFound = errors.New("network interface not found")

	// ErrNotAssociated is returned when an association attempt completes
	// without a link.
	ErrNotAssociated = errors.New("not associated")
)
