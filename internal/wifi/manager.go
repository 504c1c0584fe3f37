package wifi

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/eb3nezer/mqtt-fan/internal/portal"
	"github.com/eb3nezer/mqtt-fan/internal/settings"
	"github.com/eb3nezer/mqtt-fan/internal/status"
)

const (
	// ReconnectInterval is the minimum time between association attempts.
	ReconnectInterval = 5 * time.Second

	// RestartDelay is how long a failed startup waits before reporting
	// ErrRestartRequired.
	RestartDelay = 3 * time.Second

	// DefaultAccessPointPrefix names the provisioning access point.
	DefaultAccessPointPrefix = "FanControl"

	// associateTimeout bounds a single association attempt.
	associateTimeout = 30 * time.Second

	// radioTimeout bounds access point commands.
	radioTimeout = 15 * time.Second

	// statusTimeout bounds one link status check made from the control loop.
	statusTimeout = 2 * time.Second
)

// LinkCheckInterval is the minimum time between link status checks while
// associated.
const LinkCheckInterval = time.Second

// State is the connectivity state.
type State int

// Connectivity states.
const (
	Disassociated State = iota
	Provisioning
	Associated
)

func (s State) String() string {
	switch s {
	case Disassociated:
		return "disassociated"
	case Provisioning:
		return "provisioning"
	case Associated:
		return "associated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Portal runs an interactive provisioning session. *portal.Portal satisfies it.
type Portal interface {
	Serve(ctx context.Context, accessPoint string, current settings.Record) portal.Result
}

// SettingsStore loads and persists the settings record. *settings.Store satisfies it.
type SettingsStore interface {
	Load() settings.Record
	Save(rec settings.Record) error
}

// Logger defines the logging interface for the manager.
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

// Manager owns network association. It is driven from the control loop
// goroutine and is not safe for concurrent use.
type Manager struct {
	radio     Radio
	store     SettingsStore
	record    *settings.Record
	portal    Portal
	indicator status.Indicator
	logger    Logger
	apPrefix  string

	now           func() time.Time
	sleep         func(ctx context.Context, d time.Duration)
	statusTimeout time.Duration

	state         State
	lastAttempt   time.Time
	lastCheck     time.Time
	onAssociated  func()
	onStateChange func(State)
}

// NewManager creates a manager. record is the live settings record that
// provisioning updates in place.
func NewManager(radio Radio, store SettingsStore, record *settings.Record, p Portal, indicator status.Indicator) *Manager {
	return &Manager{
		radio:     radio,
		store:     store,
		record:    record,
		portal:    p,
		indicator: indicator,
		logger:    noopLogger{},
		apPrefix:  DefaultAccessPointPrefix,
		now:       time.Now,
		sleep:     sleepContext,

		statusTimeout: statusTimeout,
	}
}

// SetLogger sets the logger for the manager.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
}

// SetAccessPointPrefix sets the access point name prefix.
func (m *Manager) SetAccessPointPrefix(prefix string) {
	if prefix != "" {
		m.apPrefix = prefix
	}
}

// OnAssociated registers a callback run each time the link comes up.
func (m *Manager) OnAssociated(fn func()) {
	m.onAssociated = fn
}

// SetOnStateChange registers a callback for state transitions.
func (m *Manager) SetOnStateChange(fn func(State)) {
	m.onStateChange = fn
}

// State returns the connectivity state.
func (m *Manager) State() State {
	return m.state
}

// IsAssociated reports whether the link is up.
func (m *Manager) IsAssociated() bool {
	return m.state == Associated
}

// RunProvisioning brings the network up, blocking until it is associated or
// provisioning ends.
//
// When force is false (startup) one silent attempt with the stored
// credentials is made first, and the portal only opens if it fails. If a
// startup run ends without a network, RunProvisioning waits RestartDelay
// and returns ErrRestartRequired. A forced run always opens the portal and
// leaves later retries to PollReconnect.
func (m *Manager) RunProvisioning(ctx context.Context, force bool) error {
	m.setState(Provisioning)
	m.indicator.StartBlink(status.RateProvisioning)
	defer m.indicator.StopBlink()

	loaded := m.store.Load()
	m.record.CopyFrom(loaded)

	if !force {
		m.logger.Info("auto connecting to wifi")
		err := m.associate(ctx)
		if err == nil {
			m.associated()
			return nil
		}
		m.logger.Info("auto connect failed, opening portal", "error", err)
	} else {
		m.logger.Info("reconfiguring")
	}

	m.runPortal(ctx, loaded)

	if m.linkUp(ctx) {
		m.associated()
		return nil
	}

	m.setState(Disassociated)
	m.lastAttempt = m.now()

	if !force {
		m.logger.Error("provisioning ended without a network, restarting", "delay", RestartDelay)
		m.sleep(ctx, RestartDelay)
		return ErrRestartRequired
	}

	m.logger.Warn("reconfigure failed to connect to wifi")
	return nil
}

// runPortal opens the access point and applies the portal result.
func (m *Manager) runPortal(ctx context.Context, loaded settings.Record) {
	ssid := m.accessPointName(ctx)

	if err := m.withTimeout(ctx, radioTimeout, func(ctx context.Context) error {
		return m.radio.StartAccessPoint(ctx, ssid)
	}); err != nil {
		m.logger.Error("failed to start access point", "ssid", ssid, "error", err)
		return
	}
	m.logger.Info("entered config mode", "ssid", ssid)

	res := m.portal.Serve(ctx, ssid, loaded)

	if err := m.withTimeout(context.WithoutCancel(ctx), radioTimeout, m.radio.StopAccessPoint); err != nil {
		m.logger.Warn("failed to stop access point", "error", err)
	}

	switch res.Outcome {
	case portal.Completed:
		m.apply(res.Record)
		if res.Network.SSID != "" {
			m.join(ctx, res.Network)
		} else if err := m.associate(ctx); err != nil {
			m.logger.Warn("wifi association failed", "error", err)
		}
	case portal.Aborted:
		m.logger.Info("config was not updated")
	default:
		m.logger.Error("provisioning portal failed", "error", res.Err)
	}
}

// apply copies the submitted record into the live record and persists it
// when it differs from what was loaded.
func (m *Manager) apply(submitted settings.Record) {
	changed := !m.record.Equal(submitted)
	m.record.CopyFrom(submitted)
	m.logger.Info("settings updated", "settings", *m.record)

	if !changed {
		m.logger.Debug("settings unchanged, not saving")
		return
	}
	if err := m.store.Save(*m.record); err != nil {
		m.logger.Error("failed to save settings", "error", err)
	}
}

func (m *Manager) join(ctx context.Context, creds portal.Credentials) {
	err := m.withTimeout(ctx, associateTimeout, func(ctx context.Context) error {
		return m.radio.Join(ctx, creds.SSID, creds.Passphrase)
	})
	if err != nil {
		m.logger.Warn("failed to join network", "ssid", creds.SSID, "error", err)
		return
	}
	m.logger.Info("joined network", "ssid", creds.SSID)
}

// PollReconnect makes one association attempt when the link is down and
// ReconnectInterval has passed since the last one. It returns immediately
// otherwise.
//
// While associated the link is checked at most once per LinkCheckInterval.
// After a loss the first attempt is immediate. The fast blink started by a
// failed attempt keeps running until a later attempt succeeds.
func (m *Manager) PollReconnect(ctx context.Context) {
	if m.state == Provisioning {
		return
	}

	now := m.now()
	if m.state == Associated {
		if now.Sub(m.lastCheck) < LinkCheckInterval {
			return
		}
		m.lastCheck = now
		if m.linkUp(ctx) {
			return
		}
		m.logger.Warn("wifi connection lost")
		m.setState(Disassociated)
	}

	if !m.lastAttempt.IsZero() && now.Sub(m.lastAttempt) < ReconnectInterval {
		return
	}
	m.lastAttempt = now

	// The host may have brought the link back on its own.
	if m.linkUp(ctx) {
		m.indicator.StopBlink()
		m.associated()
		return
	}

	m.logger.Info("reconnecting to wifi")
	m.indicator.StartBlink(status.RateNetworkReconnect)

	if err := m.associate(ctx); err != nil {
		m.logger.Warn("failed to connect to wifi", "retry_in", ReconnectInterval, "error", err)
		return
	}
	m.indicator.StopBlink()
	m.associated()
}

// associate makes one attempt with the stored credentials.
func (m *Manager) associate(ctx context.Context) error {
	if err := m.withTimeout(ctx, associateTimeout, m.radio.Associate); err != nil {
		return err
	}
	if !m.linkUp(ctx) {
		return ErrNotAssociated
	}
	return nil
}

// linkUp asks the radio for the link status, giving up after statusTimeout.
func (m *Manager) linkUp(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, m.statusTimeout)
	defer cancel()
	return m.radio.Associated(ctx)
}

func (m *Manager) associated() {
	m.logger.Info("wifi connected")
	m.lastAttempt = time.Time{}
	m.lastCheck = m.now()
	m.setState(Associated)
	if m.onAssociated != nil {
		m.onAssociated()
	}
}

// accessPointName is the prefix followed by the MAC address without colons.
func (m *Manager) accessPointName(ctx context.Context) string {
	mac, err := m.radio.HardwareAddr(ctx)
	if err != nil {
		m.logger.Warn("hardware address unavailable", "error", err)
		return m.apPrefix
	}
	return m.apPrefix + strings.ToUpper(strings.ReplaceAll(mac.String(), ":", ""))
}

func (m *Manager) withTimeout(ctx context.Context, d time.Duration, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return fn(ctx)
}

func (m *Manager) setState(s State) {
	if m.state == s {
		return
	}
	m.logger.Debug("wifi state changed", "from", m.state.String(), "to", s.String())
	m.state = s
	if m.onStateChange != nil {
		m.onStateChange(s)
	}
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
