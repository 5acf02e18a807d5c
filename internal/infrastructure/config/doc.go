// Package config handles loading and validating Vehicle AI Core configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with VEHICLE_* environment variables
//   - Validation of required fields and value ranges
//   - Default value handling
//
// Security Considerations:
//   - The speech API key, MQTT password and InfluxDB token should be set via
//     environment variables rather than committed to the config file
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.API.Port)
package config
