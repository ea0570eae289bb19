package config

import (
	"fmt"
	"time"

	"github.com/marmos91/endpointd/internal/logger"
	"github.com/marmos91/endpointd/pkg/endpoints"
	"github.com/marmos91/endpointd/pkg/server"
	"github.com/mitchellh/mapstructure"
	"github.com/prometheus/client_golang/prometheus"
)

// EndpointDeps carries what endpoint factories need beyond their options.
type EndpointDeps struct {
	// Gatherer backs "metrics" endpoints. Nil means metrics are disabled.
	Gatherer prometheus.Gatherer

	// Connections reports active connections to "varz" endpoints.
	Connections endpoints.ConnectionCounter

	// Start is the process start time reported by "varz" endpoints.
	Start time.Time
}

// EndpointHost is where RegisterEndpoints mounts handlers. *server.Server
// implements it.
type EndpointHost interface {
	endpoints.ConnectionCounter
	AddHandler(uri string, h server.Handler)
}

// CreateEndpoint creates the handler for an endpoint definition.
//
// This factory function uses the Type field to determine which handler to
// create, then decodes the type-specific options into the handler's own
// options struct. Unknown option keys are rejected.
//
// Supported types:
//   - "healthz": options {body}
//   - "varz": options {type, index, uuid, host, extra}
//   - "metrics": no options
func CreateEndpoint(cfg *EndpointConfig, deps EndpointDeps) (server.Handler, error) {
	switch cfg.Type {
	case "healthz":
		return createHealthzEndpoint(cfg.Options)
	case "varz":
		return createVarzEndpoint(cfg.Options, deps)
	case "metrics":
		return createMetricsEndpoint(cfg.Options, deps)
	default:
		return nil, fmt.Errorf("unknown endpoint type: %q", cfg.Type)
	}
}

func createHealthzEndpoint(options map[string]any) (server.Handler, error) {
	type HealthzEndpointConfig struct {
		Body string `mapstructure:"body"`
	}

	var epCfg HealthzEndpointConfig
	if err := decodeOptions(options, &epCfg); err != nil {
		return nil, fmt.Errorf("failed to decode healthz endpoint config: %w", err)
	}

	return endpoints.Healthz(epCfg.Body), nil
}

func createVarzEndpoint(options map[string]any, deps EndpointDeps) (server.Handler, error) {
	var info endpoints.Info
	if err := decodeOptions(options, &info); err != nil {
		return nil, fmt.Errorf("failed to decode varz endpoint config: %w", err)
	}
	info.Start = deps.Start

	return endpoints.Varz(info, deps.Connections), nil
}

func createMetricsEndpoint(options map[string]any, deps EndpointDeps) (server.Handler, error) {
	var epCfg struct{}
	if err := decodeOptions(options, &epCfg); err != nil {
		return nil, fmt.Errorf("failed to decode metrics endpoint config: %w", err)
	}

	if deps.Gatherer == nil {
		logger.Warn("Metrics endpoint configured but metrics are disabled; it will answer 503")
	}
	return endpoints.Metrics(deps.Gatherer), nil
}

// decodeOptions decodes a free-form options map into out. Values may be
// given as strings (environment overrides always are).
func decodeOptions(options map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(options)
}

// RegisterEndpoints creates every configured endpoint and mounts it on h.
//
// Nothing is mounted if any endpoint fails to build.
func RegisterEndpoints(h EndpointHost, cfgs []EndpointConfig, gatherer prometheus.Gatherer) error {
	deps := EndpointDeps{
		Gatherer:    gatherer,
		Connections: h,
		Start:       time.Now(),
	}

	handlers := make([]server.Handler, len(cfgs))
	for i := range cfgs {
		handler, err := CreateEndpoint(&cfgs[i], deps)
		if err != nil {
			return fmt.Errorf("endpoints[%d] (%s %s): %w", i, cfgs[i].Type, cfgs[i].URI, err)
		}
		handlers[i] = handler
	}

	for i, handler := range handlers {
		h.AddHandler(cfgs[i].URI, handler)
		logger.Info("Mounted %s endpoint on %s", cfgs[i].Type, cfgs[i].URI)
	}
	return nil
}
