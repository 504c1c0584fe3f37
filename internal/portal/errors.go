package portal

import "errors"

// Domain errors for the provisioning portal.
var (
	// ErrInvalidFormToken is returned when a submission does not carry the
	// token issued with the form.
	ErrInvalidFormToken = errors.New("invalid form token")

	// ErrListen is returned when the portal cannot bind its listen address.
	ErrListen = errors.New("portal listen failed")

	// ErrServerStopped is returned when the HTTP server exits before the
	// session completes.
	ErrServerStopped = errors.New("portal server stopped")
)
