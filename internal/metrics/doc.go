// Package metrics exposes sampling and request outcomes as Prometheus
// collectors on a private registry.
package metrics
