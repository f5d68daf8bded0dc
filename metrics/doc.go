// Package metrics provides a fluent factory for OpenTelemetry metric instruments.
//
// MetricsFactory caches instruments and exposes builder-style APIs for counters,
// gauges, and histograms with low-overhead attribute composition.
//
// Convenience methods (for example RecordBreakerStateChange) are provided for
// the telemetry emitted by the circuit breaker, health monitor and fallback
// subsystems.
package metrics
