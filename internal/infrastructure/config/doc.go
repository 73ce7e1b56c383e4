// Package config handles loading and validating the virtual twin configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables (VIRTUALTWIN_SECTION_KEY)
//   - Validation of required fields
//   - Default value handling
//
// Credentials for MQTT and InfluxDB should be set via environment variables
// rather than committed to the config file.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Vehicle.Name, cfg.Mode)
package config
