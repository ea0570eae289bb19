// Package metrics provides Prometheus metrics collection for endpointd.
//
// All metrics are optional - if not initialized, components use no-op implementations
// that have zero overhead. This allows an endpoint server to run with or without
// metrics collection enabled.
//
// Usage:
//
//	// Initialize global registry (typically in main.go)
//	metrics.InitRegistry()
//
//	// Create metrics instances for components
//	serverMetrics := prometheus.NewServerMetrics()
//
//	// Or use the no-op implementation
//	srv, err := server.New(cfg) // No metrics
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// registry is the global Prometheus registry for all endpointd metrics
	// Protected by registryOnce for write-once, read-many pattern
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry initializes the global Prometheus registry.
//
// The registry starts with the Go runtime and process collectors, so the
// /metrics endpoint is useful even before any component registers its own
// metrics. It's safe to call multiple times - subsequent calls are ignored.
//
// If not called, GetRegistry() will return nil and all metrics constructors
// will return no-op implementations.
func InitRegistry() {
	registryOnce.Do(func() {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		registry = reg
	})
}

// GetRegistry returns the global Prometheus registry.
//
// Returns nil if InitRegistry() has not been called, indicating metrics
// are disabled.
func GetRegistry() *prometheus.Registry {
	return registry
}

// Gatherer returns the global registry as a prometheus.Gatherer, or nil when
// metrics are disabled. The untyped nil matters: a nil *Registry stored in
// the interface would not compare equal to nil.
func Gatherer() prometheus.Gatherer {
	if reg := GetRegistry(); reg != nil {
		return reg
	}
	return nil
}

// IsEnabled returns true if metrics collection is enabled.
//
// Metrics are enabled if InitRegistry() has been called.
func IsEnabled() bool {
	return GetRegistry() != nil
}
