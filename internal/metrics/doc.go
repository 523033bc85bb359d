// Package metrics provides Prometheus instrumentation for the render
// service. All metrics are prefixed with "slidecast_". Counters and gauges
// register with the default registry via promauto; expose them by mounting
// Handler() on the daemon's /metrics endpoint.
package metrics
