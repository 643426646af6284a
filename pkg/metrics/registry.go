// Package metrics provides Prometheus metrics collection for storage
// operations.
//
// All metrics are optional. If InitRegistry is never called the constructors
// return nil and the filesystem runs without any collection overhead.
//
// Usage:
//
//	// Initialize global registry (typically in main.go)
//	metrics.InitRegistry()
//
//	// Install the observer on a filesystem instance
//	fs := filesystem.New(filesystem.WithMetrics(metrics.NewOperationMetrics()))
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// registry is the global Prometheus registry.
	// Protected by registryOnce for write-once, read-many access.
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry initializes the global Prometheus registry. Safe to call
// multiple times; later calls are ignored. If never called, metrics
// constructors return nil and collection stays disabled.
func InitRegistry() {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()
	})
}

// GetRegistry returns the global Prometheus registry, or nil when metrics
// are disabled.
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled reports whether metrics collection is enabled.
func IsEnabled() bool {
	return GetRegistry() != nil
}
