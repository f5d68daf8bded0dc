package circuitbreaker

import (
	"context"
	"errors"
	"time"
)

// State represents circuit breaker state.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
	StateUnknown  State = "unknown"
)

var (
	// ErrOpen is returned when a call is rejected because the circuit is open
	// and no fallback is registered.
	ErrOpen = errors.New("circuitbreaker: circuit open")

	// ErrTooManyRequests is returned when the half-open probe budget is
	// exhausted and no fallback is registered.
	ErrTooManyRequests = errors.New("circuitbreaker: too many half-open probes")
)

// Operation is a protected call executed through a breaker.
type Operation func(ctx context.Context) (any, error)

// Fallback produces a degraded result when the protected call is rejected or
// fails while the circuit is open. cause carries the rejection sentinel or the
// operation's original error.
type Fallback func(ctx context.Context, cause error) (any, error)

// StateChangeListener is notified when a circuit breaker changes state.
type StateChangeListener interface {
	// OnStateChange is called when a circuit breaker changes state.
	OnStateChange(serviceName string, from State, to State)
}

// Metrics is a point-in-time snapshot of a breaker's counters.
//
// Latency percentiles are nearest-rank over the bounded sample buffer of
// successful call latencies; they are not interpolated.
type Metrics struct {
	Name                 string
	State                State
	TotalRequests        uint64
	TotalSuccesses       uint64
	TotalFailures        uint64
	TotalRejections      uint64
	ConsecutiveFailures  int
	ConsecutiveSuccesses int
	WindowFailures       int
	FailureRate          float64
	BackoffCount         int
	CurrentTimeout       time.Duration
	LatencyP50           time.Duration
	LatencyP95           time.Duration
	LatencyP99           time.Duration
	LastFailure          time.Time
	LastSuccess          time.Time
	LastStateChange      time.Time
}
