package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the fan controller daemon.
// All configuration is loaded from YAML and can be overridden by environment variables.
//
// Broker address, credentials and topics are not part of this file. They live in the
// settings document edited through the provisioning portal (see internal/settings).
type Config struct {
	Device    DeviceConfig    `yaml:"device"`
	Network   NetworkConfig   `yaml:"network"`
	Portal    PortalConfig    `yaml:"portal"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Status    StatusConfig    `yaml:"status"`
	Database  DatabaseConfig  `yaml:"database"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DeviceConfig contains device identity and settings storage.
type DeviceConfig struct {
	// ProductName prefixes the provisioning access point SSID.
	ProductName string `yaml:"product_name"`

	// SettingsPath is the JSON document holding the broker settings record.
	SettingsPath string `yaml:"settings_path"`
}

// NetworkConfig selects how WiFi association is driven.
type NetworkConfig struct {
	// Backend is "nmcli" (NetworkManager) or "none" (wired/host networking, always associated).
	Backend string `yaml:"backend"`

	// Interface is the wireless interface name (e.g. "wlan0").
	Interface string `yaml:"interface"`

	// NMCLIBinary is the path to the nmcli executable.
	NMCLIBinary string `yaml:"nmcli_binary"`
}

// PortalConfig contains provisioning portal settings.
type PortalConfig struct {
	// Listen is the address the captive form is served on while provisioning.
	Listen string `yaml:"listen"`
}

// MQTTConfig contains transport-level MQTT settings.
type MQTTConfig struct {
	QoS          int  `yaml:"qos"`
	TLS          bool `yaml:"tls"`
	Availability bool `yaml:"availability"`
}

// StatusConfig contains the remote status indicator settings.
type StatusConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Listen       string `yaml:"listen"`
	PingInterval int    `yaml:"ping_interval"`
	PongTimeout  int    `yaml:"pong_timeout"`
}

// DatabaseConfig contains the SQLite state history settings.
type DatabaseConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Path          string `yaml:"path"`
	WALMode       bool   `yaml:"wal_mode"`
	BusyTimeout   int    `yaml:"busy_timeout"`
	RetentionDays int    `yaml:"retention_days"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// DiscoveryConfig contains mDNS advertisement settings.
type DiscoveryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceType string `yaml:"service_type"`
	Domain      string `yaml:"domain"`
	Port        int    `yaml:"port"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Network backends.
const (
	BackendNMCLI = "nmcli"
	BackendNone  = "none"
)

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// A missing file is not an error: a freshly flashed device boots on defaults.
//
// Environment variables follow the pattern: FANCONTROL_SECTION_KEY
// For example: FANCONTROL_DEVICE_SETTINGS_PATH, FANCONTROL_NETWORK_INTERFACE
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// Defaults only
	case err != nil:
		return nil, fmt.Errorf("reading config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration without reading any file.
func Default() *Config {
	return defaultConfig()
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			ProductName:  "FanControl",
			SettingsPath: "./data/config.json",
		},
		Network: NetworkConfig{
			Backend:     BackendNMCLI,
			Interface:   "wlan0",
			NMCLIBinary: "/usr/bin/nmcli",
		},
		Portal: PortalConfig{
			Listen: ":80",
		},
		MQTT: MQTTConfig{
			QoS:          0,
			Availability: true,
		},
		Status: StatusConfig{
			Enabled:      false,
			Listen:       ":8081",
			PingInterval: 30,
			PongTimeout:  10,
		},
		Database: DatabaseConfig{
			Enabled:       false,
			Path:          "./data/history.db",
			WALMode:       true,
			BusyTimeout:   5,
			RetentionDays: 30,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Discovery: DiscoveryConfig{
			Enabled:     false,
			ServiceType: "_fancontrol._tcp",
			Domain:      "local.",
			Port:        8081,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FANCONTROL_DEVICE_SETTINGS_PATH"); v != "" {
		cfg.Device.SettingsPath = v
	}
	if v := os.Getenv("FANCONTROL_NETWORK_BACKEND"); v != "" {
		cfg.Network.Backend = v
	}
	if v := os.Getenv("FANCONTROL_NETWORK_INTERFACE"); v != "" {
		cfg.Network.Interface = v
	}
	if v := os.Getenv("FANCONTROL_PORTAL_LISTEN"); v != "" {
		cfg.Portal.Listen = v
	}
	if v := os.Getenv("FANCONTROL_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("FANCONTROL_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
	if v := os.Getenv("FANCONTROL_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Device.ProductName == "" {
		errs = append(errs, "device.product_name is required")
	}
	if c.Device.SettingsPath == "" {
		errs = append(errs, "device.settings_path is required")
	}

	switch c.Network.Backend {
	case BackendNMCLI:
		if c.Network.Interface == "" {
			errs = append(errs, "network.interface is required for the nmcli backend")
		}
	case BackendNone:
	default:
		errs = append(errs, fmt.Sprintf("network.backend must be %q or %q", BackendNMCLI, BackendNone))
	}

	if c.Portal.Listen == "" {
		errs = append(errs, "portal.listen is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.Status.Enabled && c.Status.Listen == "" {
		errs = append(errs, "status.listen is required when status is enabled")
	}

	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when database is enabled")
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required when influxdb is enabled")
		}
	}

	if c.Discovery.Enabled && (c.Discovery.Port < 1 || c.Discovery.Port > 65535) {
		errs = append(errs, "discovery.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
