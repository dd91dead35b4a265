// Package telemetry builds the process logger and the Prometheus and
// OpenTelemetry observers that report orchestrator activity.
package telemetry
