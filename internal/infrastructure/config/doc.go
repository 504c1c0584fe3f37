// Package config handles loading and validating the fan controller daemon configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// The daemon configuration describes the host (network backend, listen addresses,
// optional history and telemetry sinks). The broker settings record edited through
// the provisioning portal is a separate document owned by internal/settings.
//
// Usage:
//
//	cfg, err := config.Load("/etc/fancontrol/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Device.ProductName)
package config
