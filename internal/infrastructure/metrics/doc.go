// Package metrics hosts the Prometheus registry and its HTTP handler.
//
// Domain packages contribute collectors; this package only adds the Go
// runtime and process collectors and serves the exposition format.
//
// # Usage
//
//	reg := metrics.NewRegistry()
//	if err := reg.Register(twin.NewCollector(t)); err != nil {
//	    return err
//	}
//	router.Handle("/metrics", reg.Handler())
package metrics
