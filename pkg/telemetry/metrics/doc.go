// Package metrics defines the engine's Prometheus collectors and the
// /metrics HTTP handler.
package metrics
