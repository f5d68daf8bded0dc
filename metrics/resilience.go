package metrics

import (
	"context"
	"time"
)

// Pre-configured metrics emitted by the resilience core.
var (
	// MetricBreakerStateChanges counts circuit breaker state transitions.
	MetricBreakerStateChanges = Metric{
		Name:        "breaker.state.changes",
		Unit:        "1",
		Description: "Counts circuit breaker state transitions, labeled by service, from and to.",
	}

	// MetricBreakerRejections counts calls rejected by an open circuit breaker.
	MetricBreakerRejections = Metric{
		Name:        "breaker.calls.rejected",
		Unit:        "1",
		Description: "Counts calls rejected without invoking the protected operation.",
	}

	// MetricBreakerCallDuration records protected call latency in milliseconds.
	MetricBreakerCallDuration = Metric{
		Name:        "breaker.call.duration",
		Unit:        "ms",
		Description: "Latency of protected calls, labeled by service and outcome.",
	}

	// MetricHealthCheckDuration records health probe latency in milliseconds.
	MetricHealthCheckDuration = Metric{
		Name:        "health.check.duration",
		Unit:        "ms",
		Description: "Latency of active health probes, labeled by service and status.",
	}

	// MetricHealthAlerts counts alerts dispatched by the health monitor.
	MetricHealthAlerts = Metric{
		Name:        "health.alerts.fired",
		Unit:        "1",
		Description: "Counts health alerts dispatched to handlers, labeled by service and severity.",
	}

	// MetricFallbackStrategy counts degraded responses by resolution strategy.
	MetricFallbackStrategy = Metric{
		Name:        "fallback.strategy.used",
		Unit:        "1",
		Description: "Counts fallback resolutions, labeled by service and strategy.",
	}

	// MetricRetryQueueDepth records the current retry queue occupancy.
	MetricRetryQueueDepth = Metric{
		Name:        "fallback.queue.depth",
		Unit:        "1",
		Description: "Current number of requests waiting in the retry queue.",
	}
)

// RecordBreakerStateChange counts a breaker transition for a service.
func (f *MetricsFactory) RecordBreakerStateChange(ctx context.Context, service, from, to string) error {
	b, err := f.Counter(MetricBreakerStateChanges)
	if err != nil {
		return err
	}

	return b.WithLabels(map[string]string{"service": service, "from": from, "to": to}).AddOne(ctx)
}

// RecordBreakerRejection counts a fast-failed call for a service.
func (f *MetricsFactory) RecordBreakerRejection(ctx context.Context, service string) error {
	b, err := f.Counter(MetricBreakerRejections)
	if err != nil {
		return err
	}

	return b.WithLabels(map[string]string{"service": service}).AddOne(ctx)
}

// RecordBreakerCallDuration records protected call latency and its outcome.
func (f *MetricsFactory) RecordBreakerCallDuration(ctx context.Context, service, outcome string, elapsed time.Duration) error {
	b, err := f.Histogram(MetricBreakerCallDuration)
	if err != nil {
		return err
	}

	return b.WithLabels(map[string]string{"service": service, "outcome": outcome}).Record(ctx, elapsed.Milliseconds())
}

// RecordHealthCheck records a probe's latency and resulting status.
func (f *MetricsFactory) RecordHealthCheck(ctx context.Context, service, status string, elapsed time.Duration) error {
	b, err := f.Histogram(MetricHealthCheckDuration)
	if err != nil {
		return err
	}

	return b.WithLabels(map[string]string{"service": service, "status": status}).Record(ctx, elapsed.Milliseconds())
}

// RecordHealthAlert counts a dispatched alert.
func (f *MetricsFactory) RecordHealthAlert(ctx context.Context, service, severity string) error {
	b, err := f.Counter(MetricHealthAlerts)
	if err != nil {
		return err
	}

	return b.WithLabels(map[string]string{"service": service, "severity": severity}).AddOne(ctx)
}

// RecordFallbackStrategy counts a degraded response by strategy.
func (f *MetricsFactory) RecordFallbackStrategy(ctx context.Context, service, strategy string) error {
	b, err := f.Counter(MetricFallbackStrategy)
	if err != nil {
		return err
	}

	return b.WithLabels(map[string]string{"service": service, "strategy": strategy}).AddOne(ctx)
}

// SetRetryQueueDepth records the current retry queue occupancy.
func (f *MetricsFactory) SetRetryQueueDepth(ctx context.Context, depth int64) error {
	b, err := f.Gauge(MetricRetryQueueDepth)
	if err != nil {
		return err
	}

	return b.Set(ctx, depth)
}
