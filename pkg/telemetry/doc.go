// Package telemetry wires OpenTelemetry tracing and metrics plus the Prometheus
// registry used by the shelf service.
//
// It centralises trace provider setup and offers recording helpers for widget
// loads, rotation ticks, auth attempts and HTTP requests so operators can
// correlate stale or failed views with upstream behaviour.
package telemetry
