package health

import (
	"context"
	"errors"
	"time"
)

// Status is the derived health of a monitored service.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
	StatusUnknown   Status = "unknown"
)

// Severity classifies an alert.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

var (
	// ErrUnknownService is returned when a check targets a name that was
	// never registered.
	ErrUnknownService = errors.New("health: unknown service")

	// ErrProbeTimeout marks a probe that exceeded its configured timeout.
	ErrProbeTimeout = errors.New("health: probe timed out")
)

// ProbeFunc checks one service. A nil return means the service answered; the
// probe must respect ctx, which carries the configured check timeout.
type ProbeFunc func(ctx context.Context) error

// AlertHandler receives alerts asynchronously. Handlers must be safe for
// concurrent use; a panicking handler is recovered and logged.
type AlertHandler func(ctx context.Context, alert Alert)

// CheckResult is the outcome of a single probe execution.
type CheckResult struct {
	Service   string
	Status    Status
	Latency   time.Duration
	Err       error
	CheckedAt time.Time
}

// ServiceHealth is a snapshot of one service's rolling metrics.
//
// ErrorRate and UptimePercentage are computed over the bounded result
// history, not over all time. Percentiles are nearest-rank over the history's
// latencies.
type ServiceHealth struct {
	Name             string
	Status           Status
	TotalChecks      int
	ErrorRate        float64
	UptimePercentage float64
	LatencyP50       time.Duration
	LatencyP95       time.Duration
	LatencyP99       time.Duration
	LastCheck        time.Time
	LastAlert        time.Time
}

// Alert describes a threshold crossing dispatched to handlers.
type Alert struct {
	Service  string
	Severity Severity
	Message  string
	Metrics  ServiceHealth
	FiredAt  time.Time
}

// Summary aggregates the monitor's view across all registered services.
type Summary struct {
	Total     int
	Healthy   int
	Degraded  int
	Unhealthy int
	Unknown   int
	Services  map[string]ServiceHealth
}
