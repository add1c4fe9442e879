// Package tracing reports every lifetime of a simulation loop as an
// OpenTelemetry span.
package tracing
