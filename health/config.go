package health

import "time"

// CheckConfig controls probing and alerting for one service. The zero value
// is usable: normalize applies the documented per-field fallback for every
// field left at zero.
type CheckConfig struct {
	// CheckInterval is how often the monitoring loop probes this service.
	// The loop runs at the minimum interval across all registered services.
	CheckInterval time.Duration

	// CheckTimeout bounds a single probe execution.
	CheckTimeout time.Duration

	// LatencyWarning marks a successful probe as Degraded when exceeded.
	LatencyWarning time.Duration

	// LatencyCritical escalates a latency alert to critical severity.
	LatencyCritical time.Duration

	// ErrorRateWarning is the rolling error-rate fraction above which the
	// service is considered Degraded.
	ErrorRateWarning float64

	// ErrorRateCritical is the rolling error-rate fraction above which the
	// service is considered Unhealthy.
	ErrorRateCritical float64

	// HistorySize bounds the per-service result history (oldest evicted).
	HistorySize int

	// AlertCooldown is the minimum gap between alerts for one service.
	AlertCooldown time.Duration
}

// Per-field fallbacks applied by normalize.
const (
	defaultCheckInterval     = 30 * time.Second
	defaultCheckTimeout      = 5 * time.Second
	defaultLatencyWarning    = 2 * time.Second
	defaultLatencyCritical   = 10 * time.Second
	defaultErrorRateWarning  = 0.10
	defaultErrorRateCritical = 0.50
	defaultHistorySize       = 50
	defaultAlertCooldown     = 5 * time.Minute
)

// DefaultCheckConfig provides balanced settings for most services.
func DefaultCheckConfig() CheckConfig {
	return CheckConfig{
		CheckInterval:     defaultCheckInterval,
		CheckTimeout:      defaultCheckTimeout,
		LatencyWarning:    defaultLatencyWarning,
		LatencyCritical:   defaultLatencyCritical,
		ErrorRateWarning:  defaultErrorRateWarning,
		ErrorRateCritical: defaultErrorRateCritical,
		HistorySize:       defaultHistorySize,
		AlertCooldown:     defaultAlertCooldown,
	}
}

// normalize returns a copy with documented fallbacks applied for zero fields.
func (c CheckConfig) normalize() CheckConfig {
	if c.CheckInterval <= 0 {
		c.CheckInterval = defaultCheckInterval
	}

	if c.CheckTimeout <= 0 {
		c.CheckTimeout = defaultCheckTimeout
	}

	if c.LatencyWarning <= 0 {
		c.LatencyWarning = defaultLatencyWarning
	}

	if c.LatencyCritical <= 0 {
		c.LatencyCritical = defaultLatencyCritical
	}

	if c.ErrorRateWarning <= 0 {
		c.ErrorRateWarning = defaultErrorRateWarning
	}

	if c.ErrorRateCritical <= 0 {
		c.ErrorRateCritical = defaultErrorRateCritical
	}

	if c.HistorySize <= 0 {
		c.HistorySize = defaultHistorySize
	}

	if c.AlertCooldown <= 0 {
		c.AlertCooldown = defaultAlertCooldown
	}

	return c
}
