package discovery

import (
	"errors"
	"fmt"
	"sync"

	"github.com/grandcat/zeroconf"

	"github.com/eb3nezer/mqtt-fan/internal/infrastructure/config"
	"github.com/eb3nezer/mqtt-fan/internal/settings"
)

// ErrNoInstance is returned when Advertise is called without an instance name.
var ErrNoInstance = errors.New("mdns instance name is empty")

// Logger defines the logging interface for the advertiser.
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

// registration is a live mDNS responder. *zeroconf.Server satisfies it.
type registration interface {
	Shutdown()
}

type registerFunc func(instance, service, domain string, port int, text []string) (registration, error)

func zeroconfRegister(instance, service, domain string, port int, text []string) (registration, error) {
	return zeroconf.Register(instance, service, domain, port, text, nil)
}

// Advertiser registers one mDNS service instance and replaces it on each
// call to Advertise.
type Advertiser struct {
	cfg      config.DiscoveryConfig
	register registerFunc
	logger   Logger

	mu       sync.Mutex
	current  registration
	instance string
}

// NewAdvertiser creates an advertiser for the configured service type.
func NewAdvertiser(cfg config.DiscoveryConfig) *Advertiser {
	return &Advertiser{
		cfg:      cfg,
		register: zeroconfRegister,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the advertiser.
func (a *Advertiser) SetLogger(logger Logger) {
	a.logger = logger
}

// Advertise (re)registers instance with the given TXT records. Any previous
// registration is withdrawn first, so it is safe to call after every
// network reassociation.
func (a *Advertiser) Advertise(instance string, text []string) error {
	if instance == "" {
		return ErrNoInstance
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.shutdownLocked()

	reg, err := a.register(instance, a.cfg.ServiceType, a.cfg.Domain, a.cfg.Port, text)
	if err != nil {
		return fmt.Errorf("registering mdns service %q: %w", instance, err)
	}
	a.current = reg
	a.instance = instance

	a.logger.Info("mdns service advertised",
		"instance", instance,
		"service", a.cfg.ServiceType,
		"port", a.cfg.Port,
	)
	return nil
}

// Instance returns the advertised instance name, or "" when not advertising.
func (a *Advertiser) Instance() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.instance
}

// Close withdraws the advertisement.
func (a *Advertiser) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.shutdownLocked()
}

func (a *Advertiser) shutdownLocked() {
	if a.current == nil {
		return
	}
	a.current.Shutdown()
	a.logger.Debug("mdns service withdrawn", "instance", a.instance)
	a.current = nil
	a.instance = ""
}

// TXTRecords describes the controller's topics for hubs that auto-configure
// from the advertisement. Empty topics are omitted.
func TXTRecords(rec settings.Record, version string) []string {
	txt := []string{"version=" + version}
	if !rec.Device.Empty() {
		txt = append(txt, "device="+rec.Device.String())
	}
	topics := []struct {
		name  string
		field settings.Field
	}{
		{"power_set", rec.PowerSetTopic},
		{"power_state", rec.PowerStateTopic},
		{"speed_set", rec.SpeedSetTopic},
		{"speed_state", rec.SpeedStateTopic},
		{"osc_set", rec.OscSetTopic},
		{"osc_state", rec.OscStateTopic},
	}
	for _, t := range topics {
		if t.field.Empty() {
			continue
		}
		txt = append(txt, t.name+"="+t.field.String())
	}
	return txt
}
