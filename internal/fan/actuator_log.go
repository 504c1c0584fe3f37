package fan

import "sync"

// LogActuator is a host actuator that logs calls and remembers the last
// values. It stands in for a hardware driver. The switch reading can be set
// with SetSwitch.
type LogActuator struct {
	logger Logger

	mu          sync.Mutex
	power       bool
	speed       Speed
	oscillation bool
	switchPos   Speed
}

// NewLogActuator creates an actuator that logs through logger.
func NewLogActuator(logger Logger) *LogActuator {
	if logger == nil {
		logger = noopLogger{}
	}
	return &LogActuator{logger: logger}
}

func (a *LogActuator) SetPower(on bool) error {
	a.mu.Lock()
	a.power = on
	a.mu.Unlock()
	a.logger.Info("actuate power", "on", on)
	return nil
}

func (a *LogActuator) SetSpeed(speed Speed) error {
	a.mu.Lock()
	a.speed = speed
	a.mu.Unlock()
	a.logger.Info("actuate speed", "speed", speed.String())
	return nil
}

func (a *LogActuator) SetOscillation(on bool) error {
	a.mu.Lock()
	a.oscillation = on
	a.mu.Unlock()
	a.logger.Info("actuate oscillation", "on", on)
	return nil
}

func (a *LogActuator) ReadSpeedSwitch() Speed {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.switchPos
}

// SetSwitch sets the position ReadSpeedSwitch reports.
func (a *LogActuator) SetSwitch(speed Speed) {
	a.mu.Lock()
	a.switchPos = speed
	a.mu.Unlock()
}

// Snapshot returns the last actuated values.
func (a *LogActuator) Snapshot() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return State{Power: a.power, Speed: a.speed, Oscillation: a.oscillation}
}
