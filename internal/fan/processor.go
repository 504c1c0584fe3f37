package fan

import (
	"context"
	"fmt"
	"time"
)

// recordTimeout bounds each recorder call so a slow store cannot stall the loop.
const recordTimeout = 2 * time.Second

// Processor maps commands to state transitions, actuation and republication.
//
// It is not safe for concurrent use. The control loop goroutine owns it.
type Processor struct {
	actuator  Actuator
	publisher StatePublisher
	recorders []Recorder
	logger    Logger
	now       func() time.Time
	device    string

	state      State
	lastSwitch Speed
}

// NewProcessor creates a processor in the initial state
// {Power: false, Speed: Unknown, Oscillation: false}.
func NewProcessor(actuator Actuator) *Processor {
	return &Processor{
		actuator:  actuator,
		publisher: noopPublisher{},
		logger:    noopLogger{},
		now:       time.Now,
	}
}

// SetPublisher sets where confirmed state is republished.
func (p *Processor) SetPublisher(publisher StatePublisher) {
	p.publisher = publisher
}

// SetLogger sets the logger for the processor.
func (p *Processor) SetLogger(logger Logger) {
	p.logger = logger
}

// SetDevice sets the device name attached to recorded transitions.
func (p *Processor) SetDevice(name string) {
	p.device = name
}

// AddRecorder registers a recorder for confirmed transitions.
func (p *Processor) AddRecorder(r Recorder) {
	p.recorders = append(p.recorders, r)
}

// State returns a snapshot of the confirmed state.
func (p *Processor) State() State {
	return p.state
}

// Handle applies a command received from the message bus.
//
// Power and oscillation treat any payload other than exactly "ON" as off.
// Speed rejects tokens it does not know with ErrUnknownSpeed and leaves the
// state unchanged.
func (p *Processor) Handle(cmd Command, payload []byte) error {
	return p.apply(cmd, string(payload), SourceBus)
}

func (p *Processor) apply(cmd Command, payload, source string) error {
	switch cmd {
	case CommandPower:
		return p.setPower(payload == PayloadOn, source)
	case CommandOscillation:
		return p.setOscillation(payload == PayloadOn, source)
	case CommandSpeed:
		speed, err := ParseSpeed(payload)
		if err != nil {
			return err
		}
		return p.setSpeed(speed, source)
	default:
		return fmt.Errorf("%w: %v", ErrUnknownCommand, cmd)
	}
}

// PollSwitch applies the physical speed switch when its position differs
// from the last one applied. Unknown readings are ignored. A position the
// actuator rejected is tried again on the next poll.
func (p *Processor) PollSwitch() {
	reading := p.actuator.ReadSpeedSwitch()
	if reading == SpeedUnknown || reading == p.lastSwitch {
		return
	}

	p.logger.Info("speed switch moved", "speed", reading.String())
	if err := p.setSpeed(reading, SourceSwitch); err != nil {
		p.logger.Warn("switch override failed", "speed", reading.String(), "error", err)
		return
	}
	p.lastSwitch = reading
}

func (p *Processor) setPower(on bool, source string) error {
	if err := p.actuator.SetPower(on); err != nil {
		return fmt.Errorf("%w: power %s: %w", ErrActuation, OnOffPayload(on), err)
	}
	p.state.Power = on

	p.publish("power", p.publisher.PublishPower(on))
	if !on {
		// Power off is reported as speed off; the speed axis is not actuated
		p.publish("speed", p.publisher.PublishSpeed(SpeedOff))
	}

	p.record(CommandPower, source)
	return nil
}

func (p *Processor) setOscillation(on bool, source string) error {
	if err := p.actuator.SetOscillation(on); err != nil {
		return fmt.Errorf("%w: oscillation %s: %w", ErrActuation, OnOffPayload(on), err)
	}
	p.state.Oscillation = on

	p.publish("oscillation", p.publisher.PublishOscillation(on))
	p.record(CommandOscillation, source)
	return nil
}

func (p *Processor) setSpeed(speed Speed, source string) error {
	switch speed {
	case SpeedOff:
		return p.setPower(false, source)
	case SpeedLow, SpeedMedium, SpeedHigh:
	default:
		return fmt.Errorf("%w: %v", ErrUnknownSpeed, speed)
	}

	if err := p.actuator.SetSpeed(speed); err != nil {
		return fmt.Errorf("%w: speed %s: %w", ErrActuation, speed, err)
	}
	p.state.Speed = speed

	p.publish("speed", p.publisher.PublishSpeed(speed))
	p.record(CommandSpeed, source)
	return nil
}

// publish logs a failed republication. The transition itself stands.
func (p *Processor) publish(axis string, err error) {
	if err != nil {
		p.logger.Warn("failed to publish state", "axis", axis, "error", err)
	}
}

func (p *Processor) record(cmd Command, source string) {
	if len(p.recorders) == 0 {
		return
	}

	t := Transition{
		Device:  p.device,
		Command: cmd,
		Source:  source,
		State:   p.state,
		At:      p.now().UTC(),
	}

	for _, r := range p.recorders {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		if err := r.RecordTransition(ctx, t); err != nil {
			p.logger.Warn("failed to record transition", "command", cmd.String(), "error", err)
		}
		cancel()
	}
}
