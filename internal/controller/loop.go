package controller

import (
	"context"
	"errors"
	"time"

	"github.com/eb3nezer/mqtt-fan/internal/settings"
	"github.com/eb3nezer/mqtt-fan/internal/wifi"
)

// TickInterval is the loop period.
const TickInterval = 50 * time.Millisecond

// Network is the connectivity manager. *wifi.Manager satisfies it.
type Network interface {
	RunProvisioning(ctx context.Context, force bool) error
	PollReconnect(ctx context.Context)
	IsAssociated() bool
}

// Session is the broker session. *session.Manager satisfies it.
type Session interface {
	PollReconnect(ctx context.Context)
	Pump() int
	Reset()
}

// Processor is the fan command processor. *fan.Processor satisfies it.
type Processor interface {
	PollSwitch()
	SetDevice(name string)
}

// Logger defines the logging interface for the loop.
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

// Loop drives the components from one goroutine.
type Loop struct {
	network   Network
	session   Session
	processor Processor
	record    *settings.Record
	logger    Logger
	tick      time.Duration

	provision chan struct{}
}

// New creates a loop. record is the live settings record shared with the
// network and session managers.
func New(network Network, session Session, processor Processor, record *settings.Record) *Loop {
	return &Loop{
		network:   network,
		session:   session,
		processor: processor,
		record:    record,
		logger:    noopLogger{},
		tick:      TickInterval,
		provision: make(chan struct{}, 1),
	}
}

// SetLogger sets the logger for the loop.
func (l *Loop) SetLogger(logger Logger) {
	l.logger = logger
}

// RequestProvisioning queues a forced provisioning run. It is safe to call
// from any goroutine; requests made while one is pending are merged.
func (l *Loop) RequestProvisioning() {
	select {
	case l.provision <- struct{}{}:
	default:
	}
}

// Run provisions the network and then ticks until ctx is done. When
// forceProvisioning is set the portal opens at startup even if stored
// credentials work.
//
// Run returns wifi.ErrRestartRequired when startup provisioning fails, and
// nil when ctx is cancelled.
func (l *Loop) Run(ctx context.Context, forceProvisioning bool) error {
	if err := l.provisionNow(ctx, forceProvisioning); err != nil {
		return err
	}

	ticker := time.NewTicker(l.tick)
	defer ticker.Stop()

	l.logger.Info("control loop started", "tick", l.tick)
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("control loop stopped")
			return nil
		case <-l.provision:
			if err := l.provisionNow(ctx, true); err != nil {
				l.logger.Error("provisioning failed", "error", err)
			}
		case <-ticker.C:
			l.Step(ctx)
		}
	}
}

// Step runs one iteration of the loop.
func (l *Loop) Step(ctx context.Context) {
	l.network.PollReconnect(ctx)
	if l.network.IsAssociated() {
		l.session.PollReconnect(ctx)
	}
	l.session.Pump()
	l.processor.PollSwitch()
}

// provisionNow runs provisioning. When it changed the settings record the
// session reconnects with the new values on the next tick; otherwise the
// current broker connection is kept.
func (l *Loop) provisionNow(ctx context.Context, force bool) error {
	l.logger.Info("provisioning", "forced", force)
	before := *l.record

	err := l.network.RunProvisioning(ctx, force)
	if errors.Is(err, wifi.ErrRestartRequired) {
		return err
	}
	if err != nil && ctx.Err() == nil {
		l.logger.Warn("provisioning ended with error", "error", err)
	}

	if !before.Equal(*l.record) {
		l.logger.Info("settings changed, restarting bus session")
		l.session.Reset()
	}
	l.processor.SetDevice(l.record.Device.String())
	return nil
}
