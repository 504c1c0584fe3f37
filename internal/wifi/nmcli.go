package wifi

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os/exec"
	"strings"
)

// accessPointConnection is the NetworkManager connection profile used for
// the provisioning access point.
const accessPointConnection = "fancontrol-provisioning"

// CommandRunner runs an external command and returns its combined output.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run executes name with args. A non-zero exit is returned as
// ErrCommandFailed with the command output attached.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec // Binary path comes from daemon config
	out, err := cmd.CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(out))
		return out, fmt.Errorf("%w: %s %s: %w: %s", ErrCommandFailed, name, firstArg(args), err, msg)
	}
	return out, nil
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

// NMCLIRadio drives a wireless interface through NetworkManager's nmcli.
type NMCLIRadio struct {
	runner CommandRunner
	binary string
	iface  string
}

// NewNMCLIRadio returns a radio for iface using the nmcli at binary.
func NewNMCLIRadio(runner CommandRunner, binary, iface string) *NMCLIRadio {
	if binary == "" {
		binary = "nmcli"
	}
	return &NMCLIRadio{runner: runner, binary: binary, iface: iface}
}

func (n *NMCLIRadio) run(ctx context.Context, args ...string) ([]byte, error) {
	return n.runner.Run(ctx, n.binary, args...)
}

// HardwareAddr reads GENERAL.HWADDR for the interface.
func (n *NMCLIRadio) HardwareAddr(ctx context.Context) (net.HardwareAddr, error) {
	out, err := n.run(ctx, "-g", "GENERAL.HWADDR", "device", "show", n.iface)
	if err != nil {
		return nil, err
	}
	// Terse output escapes the colons: AA\:BB\:...
	raw := strings.ReplaceAll(strings.TrimSpace(string(out)), `\`, "")
	mac, err := net.ParseMAC(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing hardware address %q: %w", raw, err)
	}
	return mac, nil
}

// Associated reports whether nmcli lists the interface as connected.
func (n *NMCLIRadio) Associated(ctx context.Context) bool {
	out, err := n.run(ctx, "-t", "-f", "DEVICE,TYPE,STATE", "device", "status")
	if err != nil {
		return false
	}
	for _, line := range bytes.Split(out, []byte("\n")) {
		fields := strings.Split(strings.TrimSpace(string(line)), ":")
		if len(fields) < 3 || fields[0] != n.iface {
			continue
		}
		return fields[1] == "wifi" && fields[2] == "connected"
	}
	return false
}

// Associate asks NetworkManager to bring the interface up with its stored profile.
func (n *NMCLIRadio) Associate(ctx context.Context) error {
	if _, err := n.run(ctx, "device", "connect", n.iface); err != nil {
		return err
	}
	return nil
}

// Join connects to ssid. NetworkManager keeps the resulting profile, so
// later Associate calls reuse the credentials.
func (n *NMCLIRadio) Join(ctx context.Context, ssid, passphrase string) error {
	args := []string{"device", "wifi", "connect", ssid}
	if passphrase != "" {
		args = append(args, "password", passphrase)
	}
	args = append(args, "ifname", n.iface)

	if _, err := n.run(ctx, args...); err != nil {
		// The error text would carry the passphrase from the argument list.
		return fmt.Errorf("%w: joining %q", ErrCommandFailed, ssid)
	}
	return nil
}

// StartAccessPoint creates and activates an open access point profile with
// shared IPv4 so clients receive an address.
func (n *NMCLIRadio) StartAccessPoint(ctx context.Context, ssid string) error {
	// A stale profile from an interrupted run may still exist.
	n.run(ctx, "connection", "delete", accessPointConnection) //nolint:errcheck // Absent profile is fine

	if _, err := n.run(ctx,
		"connection", "add",
		"type", "wifi",
		"ifname", n.iface,
		"con-name", accessPointConnection,
		"autoconnect", "no",
		"ssid", ssid,
		"802-11-wireless.mode", "ap",
		"ipv4.method", "shared",
	); err != nil {
		return fmt.Errorf("creating access point profile: %w", err)
	}

	if _, err := n.run(ctx, "connection", "up", accessPointConnection); err != nil {
		return fmt.Errorf("activating access point: %w", err)
	}
	return nil
}

// StopAccessPoint deactivates and removes the access point profile.
func (n *NMCLIRadio) StopAccessPoint(ctx context.Context) error {
	n.run(ctx, "connection", "down", accessPointConnection) //nolint:errcheck // May already be down
	if _, err := n.run(ctx, "connection", "delete", accessPointConnection); err != nil {
		return fmt.Errorf("removing access point profile: %w", err)
	}
	return nil
}
