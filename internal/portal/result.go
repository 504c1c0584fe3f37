package portal

import (
	"fmt"

	"github.com/eb3nezer/mqtt-fan/internal/settings"
)

// Outcome is how a portal session ended.
type Outcome int

// Portal outcomes.
const (
	Failed Outcome = iota
	Completed
	Aborted
)

func (o Outcome) String() string {
	switch o {
	case Completed:
		return "completed"
	case Aborted:
		return "aborted"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Network credential bounds, in bytes.
const (
	MaxSSIDLength       = 32
	MaxPassphraseLength = 64
)

// Credentials are the network credentials entered in the form.
type Credentials struct {
	SSID       string
	Passphrase string
}

// Result is returned by Serve.
type Result struct {
	Outcome Outcome

	// Record holds the submitted settings. Only meaningful when Completed.
	Record settings.Record

	// Network holds the submitted credentials. Only meaningful when Completed.
	Network Credentials

	// Err explains a Failed outcome.
	Err error
}
