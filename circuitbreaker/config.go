package circuitbreaker

import (
	"errors"
	"time"
)

var (
	// ErrInvalidBackoffMultiplier indicates a backoff multiplier below 1.
	ErrInvalidBackoffMultiplier = errors.New("circuitbreaker: backoff multiplier must be >= 1")
	// ErrInvalidTimeoutBounds indicates MaxTimeout below BaseTimeout.
	ErrInvalidTimeoutBounds = errors.New("circuitbreaker: max timeout must be >= base timeout")
)

// Config holds circuit breaker configuration. The zero value is usable:
// normalize applies the documented per-field fallback for every field left at
// zero.
type Config struct {
	// FailureThreshold is the number of failures inside RollingWindow that
	// trips the breaker.
	FailureThreshold int

	// SuccessThreshold is the number of consecutive half-open successes
	// required to close the breaker.
	SuccessThreshold int

	// BaseTimeout is how long the breaker stays open after the first trip.
	BaseTimeout time.Duration

	// MaxTimeout caps the exponentially growing open timeout.
	MaxTimeout time.Duration

	// BackoffMultiplier grows the open timeout on each half-open probe failure.
	BackoffMultiplier float64

	// HalfOpenMaxCalls caps concurrent in-flight probe calls while half-open.
	HalfOpenMaxCalls int

	// RollingWindow is the duration failures are remembered for tripping.
	RollingWindow time.Duration

	// MinThroughput is the minimum total request count before the breaker
	// may trip, so a cold service is not opened by its first few errors.
	MinThroughput int

	// LatencySampleSize bounds the buffer of recent success latencies used
	// for percentile snapshots (oldest evicted first).
	LatencySampleSize int
}

// Per-field fallbacks applied by normalize.
const (
	defaultFailureThreshold  = 5
	defaultSuccessThreshold  = 2
	defaultBaseTimeout       = 30 * time.Second
	defaultMaxTimeout        = 10 * time.Minute
	defaultBackoffMultiplier = 2.0
	defaultHalfOpenMaxCalls  = 1
	defaultRollingWindow     = time.Minute
	defaultMinThroughput     = 5
	defaultLatencySamples    = 100
)

// DefaultConfig provides balanced settings for most services.
func DefaultConfig() Config {
	return Config{
		FailureThreshold:  defaultFailureThreshold,
		SuccessThreshold:  defaultSuccessThreshold,
		BaseTimeout:       defaultBaseTimeout,
		MaxTimeout:        defaultMaxTimeout,
		BackoffMultiplier: defaultBackoffMultiplier,
		HalfOpenMaxCalls:  defaultHalfOpenMaxCalls,
		RollingWindow:     defaultRollingWindow,
		MinThroughput:     defaultMinThroughput,
		LatencySampleSize: defaultLatencySamples,
	}
}

// LLMProviderConfig is tuned for chat-completion providers: requests are slow
// and expensive, so trip early and wait longer before probing.
func LLMProviderConfig() Config {
	return Config{
		FailureThreshold:  3,
		SuccessThreshold:  2,
		BaseTimeout:       time.Minute,
		MaxTimeout:        15 * time.Minute,
		BackoffMultiplier: 2.0,
		HalfOpenMaxCalls:  1,
		RollingWindow:     2 * time.Minute,
		MinThroughput:     3,
		LatencySampleSize: 100,
	}
}

// AdPlatformConfig is tuned for ad-publishing APIs: higher traffic and
// rate-limit noise, so tolerate more failures before tripping.
func AdPlatformConfig() Config {
	return Config{
		FailureThreshold:  10,
		SuccessThreshold:  3,
		BaseTimeout:       30 * time.Second,
		MaxTimeout:        5 * time.Minute,
		BackoffMultiplier: 1.5,
		HalfOpenMaxCalls:  2,
		RollingWindow:     time.Minute,
		MinThroughput:     10,
		LatencySampleSize: 200,
	}
}

// Validate rejects configurations that would make the state machine
// misbehave. Zero values are allowed (normalize fills them in).
func (c Config) Validate() error {
	if c.BackoffMultiplier != 0 && c.BackoffMultiplier < 1 {
		return ErrInvalidBackoffMultiplier
	}

	if c.BaseTimeout > 0 && c.MaxTimeout > 0 && c.MaxTimeout < c.BaseTimeout {
		return ErrInvalidTimeoutBounds
	}

	return nil
}

// normalize returns a copy with documented fallbacks applied for zero fields.
func (c Config) normalize() Config {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = defaultFailureThreshold
	}

	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = defaultSuccessThreshold
	}

	if c.BaseTimeout <= 0 {
		c.BaseTimeout = defaultBaseTimeout
	}

	if c.MaxTimeout <= 0 {
		c.MaxTimeout = defaultMaxTimeout
	}

	if c.BackoffMultiplier < 1 {
		c.BackoffMultiplier = defaultBackoffMultiplier
	}

	if c.HalfOpenMaxCalls <= 0 {
		c.HalfOpenMaxCalls = defaultHalfOpenMaxCalls
	}

	if c.RollingWindow <= 0 {
		c.RollingWindow = defaultRollingWindow
	}

	if c.MinThroughput <= 0 {
		c.MinThroughput = defaultMinThroughput
	}

	if c.LatencySampleSize <= 0 {
		c.LatencySampleSize = defaultLatencySamples
	}

	return c
}
