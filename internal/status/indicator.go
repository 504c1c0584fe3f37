package status

import (
	"math"
	"sync"
	"sync/atomic"
)

// Blink rates used by the networking components, in Hz.
const (
	// RateProvisioning is used while the provisioning portal is open (0.2s period).
	RateProvisioning = 5.0

	// RateNetworkReconnect is used while a network association attempt runs.
	RateNetworkReconnect = 5.0

	// RateBusConnect is used while a broker connection attempt runs (0.05s period).
	RateBusConnect = 20.0
)

// Indicator is the status collaborator.
type Indicator interface {
	StartBlink(rateHz float64)
	StopBlink()
}

// Light is an Indicator that keeps the current rate in an atomic value and
// notifies observers on every change.
type Light struct {
	rate atomic.Uint64

	mu        sync.RWMutex
	observers []func(rateHz float64)
}

// NewLight returns a Light in the idle (off) state.
func NewLight() *Light {
	return &Light{}
}

// StartBlink sets the blink rate. A rate <= 0 is the same as StopBlink.
func (l *Light) StartBlink(rateHz float64) {
	if rateHz <= 0 {
		rateHz = 0
	}
	l.set(rateHz)
}

// StopBlink restores the idle indication.
func (l *Light) StopBlink() {
	l.set(0)
}

// Rate returns the current blink rate in Hz (0 when idle).
func (l *Light) Rate() float64 {
	return math.Float64frombits(l.rate.Load())
}

// Blinking reports whether the light is blinking.
func (l *Light) Blinking() bool {
	return l.Rate() > 0
}

// Observe registers fn to be called with the new rate after each change.
func (l *Light) Observe(fn func(rateHz float64)) {
	l.mu.Lock()
	l.observers = append(l.observers, fn)
	l.mu.Unlock()
}

func (l *Light) set(rateHz float64) {
	prev := l.rate.Swap(math.Float64bits(rateHz))
	if prev == math.Float64bits(rateHz) {
		return
	}

	l.mu.RLock()
	observers := l.observers
	l.mu.RUnlock()

	for _, fn := range observers {
		fn(rateHz)
	}
}
