package session

import "errors"

var (
	// ErrUnrecognisedTopic is returned by Dispatch when no set topic matches.
	ErrUnrecognisedTopic = errors.New("session: unrecognised message topic")
)
