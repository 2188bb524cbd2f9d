package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultNamespace prefixes every pipesim metric name.
const DefaultNamespace = "pipesim"

// Config holds configuration for metrics collection.
type Config struct {
	// Enabled controls whether metrics collection is active.
	Enabled bool

	// Registry is the Prometheus registry to use. If nil, uses prometheus.DefaultRegisterer.
	Registry prometheus.Registerer

	// Namespace overrides the default "pipesim" namespace for metrics.
	Namespace string

	// Labels are additional constant labels added to all metrics.
	Labels prometheus.Labels

	// DoseBuckets are the upper bounds of the dose size histogram.
	// Empty means DefaultDoseBuckets.
	DoseBuckets []float64
}

// DefaultDoseBuckets covers doses of 1 to 2048 units.
var DefaultDoseBuckets = prometheus.ExponentialBuckets(1, 2, 12)

// DefaultConfig returns a default metrics configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:   true,
		Registry:  prometheus.DefaultRegisterer,
		Namespace: DefaultNamespace,
		Labels:    nil,
	}
}
