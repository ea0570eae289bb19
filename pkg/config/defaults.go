package config

import (
	"strings"

	"github.com/marmos91/endpointd/pkg/server"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Default Strategy:
//   - Zero values (0, "", nil) are replaced with defaults
//   - Explicit values are preserved
//   - A configuration with no endpoints gets a healthz endpoint, so a bare
//     process still answers something
//   - Endpoint-specific defaults are handled by the endpoint factories
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)

	if len(cfg.Endpoints) == 0 {
		cfg.Endpoints = []EndpointConfig{
			{Type: "healthz", URI: "/healthz"},
		}
	}

	applyEndpointDefaults(cfg.Endpoints)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyServerDefaults(cfg *server.Config) {
	cfg.ApplyDefaults()
}

// applyEndpointDefaults normalizes endpoint types and initializes option maps.
func applyEndpointDefaults(endpoints []EndpointConfig) {
	for i := range endpoints {
		endpoints[i].Type = strings.ToLower(endpoints[i].Type)
		if endpoints[i].Options == nil {
			endpoints[i].Options = make(map[string]any)
		}
	}
}

// GetDefaultConfig returns the configuration written by InitConfig: every
// built-in endpoint mounted on its conventional URI, metrics enabled.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Metrics: MetricsConfig{Enabled: true},
		Endpoints: []EndpointConfig{
			{Type: "healthz", URI: "/healthz"},
			{Type: "varz", URI: "/varz", Options: map[string]any{"type": "endpointd"}},
			{Type: "metrics", URI: "/metrics"},
		},
	}
	cfg.Server.Address = "127.0.0.1:8080"

	ApplyDefaults(cfg)
	return cfg
}
