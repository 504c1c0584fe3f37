package wifi

import (
	"context"
	"fmt"
	"net"
)

// Radio is the network interface the manager drives.
type Radio interface {
	// HardwareAddr returns the MAC address used to name the access point.
	HardwareAddr(ctx context.Context) (net.HardwareAddr, error)

	// Associated reports whether the station link is up.
	Associated(ctx context.Context) bool

	// Associate reconnects with the stored credentials.
	Associate(ctx context.Context) error

	// Join connects to a network with new credentials and stores them.
	Join(ctx context.Context, ssid, passphrase string) error

	// StartAccessPoint opens an unsecured provisioning access point.
	StartAccessPoint(ctx context.Context, ssid string) error

	// StopAccessPoint closes the provisioning access point.
	StopAccessPoint(ctx context.Context) error
}

// HostRadio is a Radio for hosts whose networking is managed elsewhere.
// It is always associated and never opens an access point.
type HostRadio struct {
	iface string
}

// NewHostRadio returns a HostRadio. iface names the interface whose address
// is reported; when empty the first non-loopback interface is used.
func NewHostRadio(iface string) *HostRadio {
	return &HostRadio{iface: iface}
}

// HardwareAddr returns the interface MAC address.
func (h *HostRadio) HardwareAddr(context.Context) (net.HardwareAddr, error) {
	if h.iface != "" {
		ifi, err := net.InterfaceByName(h.iface)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInterfaceNotFound, h.iface, err)
		}
		return ifi.HardwareAddr, nil
	}

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("listing interfaces: %w", err)
	}
	for _, ifi := range ifaces {
		if ifi.Flags&net.FlagLoopback != 0 || len(ifi.HardwareAddr) == 0 {
			continue
		}
		return ifi.HardwareAddr, nil
	}
	return nil, ErrInterfaceNotFound
}

// Associated always reports true.
func (h *HostRadio) Associated(context.Context) bool { return true }

// Associate is a no-op.
func (h *HostRadio) Associate(context.Context) error { return nil }

// Join is a no-op. Credentials are managed by the host.
func (h *HostRadio) Join(context.Context, string, string) error { return nil }

// StartAccessPoint is a no-op. The portal is reachable on the host network.
func (h *HostRadio) StartAccessPoint(context.Context, string) error { return nil }

// StopAccessPoint is a no-op.
func (h *HostRadio) StopAccessPoint(context.Context) error { return nil }
