package metrics

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric the twin exports.
const Namespace = "virtualtwin"

// ErrAlreadyRegistered is returned when a collector is registered twice.
var ErrAlreadyRegistered = errors.New("metrics: collector already registered")

// Registry wraps a private Prometheus registry.
//
// Thread Safety: all methods are safe for concurrent use.
type Registry struct {
	reg *prometheus.Registry
}

// NewRegistry creates a registry with the Go runtime and process
// collectors already registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: Namespace}),
	)
	return &Registry{reg: reg}
}

// Register adds a collector.
//
// Returns:
//   - error: ErrAlreadyRegistered for a duplicate, or the registry error
func (r *Registry) Register(c prometheus.Collector) error {
	if err := r.reg.Register(c); err != nil {
		var dup prometheus.AlreadyRegisteredError
		if errors.As(err, &dup) {
			return fmt.Errorf("%w: %w", ErrAlreadyRegistered, err)
		}
		return fmt.Errorf("registering collector: %w", err)
	}
	return nil
}

// Gatherer exposes the registry for tests and push gateways.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
