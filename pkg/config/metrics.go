package config

import (
	"github.com/marmos91/endpointd/pkg/metrics"
	promMetrics "github.com/marmos91/endpointd/pkg/metrics/prometheus"
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsResult contains all metrics-related components created from configuration.
type MetricsResult struct {
	// Gatherer is what a "metrics" endpoint exposes (nil if disabled)
	Gatherer prometheus.Gatherer

	// ServerMetrics is the collector for the endpoint server (never nil, uses noop if disabled)
	ServerMetrics metrics.ServerMetrics
}

// InitializeMetrics creates the metrics components for cfg.
//
// If metrics are enabled, the global Prometheus registry is initialized and
// the server metrics are registered in it. Otherwise no-op implementations
// are returned and a "metrics" endpoint answers 503.
//
// Must be called at most once per process when metrics are enabled.
func InitializeMetrics(cfg *Config) *MetricsResult {
	if !cfg.Metrics.Enabled {
		return &MetricsResult{
			Gatherer:      nil,
			ServerMetrics: metrics.NewNoopServerMetrics(),
		}
	}

	metrics.InitRegistry()

	return &MetricsResult{
		Gatherer:      metrics.Gatherer(),
		ServerMetrics: promMetrics.NewServerMetrics(),
	}
}
