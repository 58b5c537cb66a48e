// Package config loads and validates Signage Core configuration.
//
// Configuration is read from a YAML file and can be overridden by
// SIGNAGE_* environment variables. Secrets (JWT secret, MQTT password,
// InfluxDB token) should be supplied through the environment.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.API.Port)
package config
