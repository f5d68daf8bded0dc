package circuitbreaker

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/milosriki/geminivideo-sub001/backoff"
	"github.com/milosriki/geminivideo-sub001/log"
	"github.com/milosriki/geminivideo-sub001/metrics"
)

// Breaker wraps calls to a single external dependency with failure isolation.
//
// All counters and the state field are guarded by one mutex per breaker, so
// breakers for independent dependencies never contend with each other.
type Breaker struct {
	name      string
	config    Config
	fallback  Fallback
	logger    log.Logger
	telemetry *metrics.MetricsFactory
	notify    func(name string, from, to State)

	mu                   sync.Mutex
	state                State
	openedAt             time.Time
	openCount            int
	halfOpenInFlight     int
	consecutiveFailures  int
	consecutiveSuccesses int
	totalRequests        uint64
	totalSuccesses       uint64
	totalFailures        uint64
	totalRejections      uint64
	failureTimes         []time.Time
	latencies            []time.Duration
	lastFailure          time.Time
	lastSuccess          time.Time
	lastStateChange      time.Time
}

type transition struct {
	from State
	to   State
}

// New creates a breaker for one named dependency. fallback may be nil; a nil
// logger or telemetry factory falls back to the no-op implementations.
func New(name string, config Config, fallback Fallback, logger log.Logger, telemetry *metrics.MetricsFactory) *Breaker {
	if logger == nil {
		logger = log.NewNop()
	}

	if telemetry == nil {
		telemetry = metrics.NewNopFactory()
	}

	return &Breaker{
		name:            name,
		config:          config.normalize(),
		fallback:        fallback,
		logger:          logger,
		telemetry:       telemetry,
		state:           StateClosed,
		lastStateChange: time.Now(),
	}
}

// Name returns the dependency name this breaker guards.
func (b *Breaker) Name() string {
	return b.name
}

// Execute runs op through the breaker.
//
// Success records latency and counters before returning op's result. Failure
// records the outcome, evaluates the trip rule, and either re-raises op's
// error unchanged or, when the circuit is (now) open and a fallback is
// registered, returns the fallback's result instead.
func (b *Breaker) Execute(ctx context.Context, op Operation) (any, error) {
	if err := b.admit(ctx); err != nil {
		_ = b.telemetry.RecordBreakerRejection(ctx, b.name)

		if b.fallback != nil {
			return b.fallback(ctx, err)
		}

		return nil, err
	}

	start := time.Now()
	result, err := op(ctx)
	elapsed := time.Since(start)

	if err != nil {
		nowOpen := b.recordFailure(ctx, elapsed)
		_ = b.telemetry.RecordBreakerCallDuration(ctx, b.name, "failure", elapsed)

		if nowOpen && b.fallback != nil {
			return b.fallback(ctx, err)
		}

		return nil, err
	}

	b.recordSuccess(ctx, elapsed)
	_ = b.telemetry.RecordBreakerCallDuration(ctx, b.name, "success", elapsed)

	return result, nil
}

// admit decides whether a call may proceed, applying the Open->HalfOpen
// transition once the backoff timeout has elapsed. A nil return admits the
// call; otherwise the sentinel describes the rejection.
func (b *Breaker) admit(ctx context.Context) error {
	b.mu.Lock()

	var tr *transition

	switch b.state {
	case StateOpen:
		if time.Since(b.openedAt) < b.currentTimeoutLocked() {
			b.totalRejections++
			b.mu.Unlock()

			return fmt.Errorf("%w: service %s", ErrOpen, b.name)
		}

		tr = b.setStateLocked(StateHalfOpen)
		b.halfOpenInFlight++
		b.totalRequests++
	case StateHalfOpen:
		if b.halfOpenInFlight >= b.config.HalfOpenMaxCalls {
			b.totalRejections++
			b.mu.Unlock()

			return fmt.Errorf("%w: service %s", ErrTooManyRequests, b.name)
		}

		b.halfOpenInFlight++
		b.totalRequests++
	default:
		b.totalRequests++
	}

	b.mu.Unlock()

	if tr != nil {
		b.emitTransition(ctx, *tr)
	}

	return nil
}

// recordFailure updates counters for a failed call and evaluates the trip
// rule. It reports whether the breaker is open after the update, which is
// what decides fallback delegation in Execute.
func (b *Breaker) recordFailure(ctx context.Context, _ time.Duration) bool {
	b.mu.Lock()

	now := time.Now()
	b.totalFailures++
	b.consecutiveFailures++
	b.consecutiveSuccesses = 0
	b.lastFailure = now

	var tr *transition

	switch b.state {
	case StateHalfOpen:
		// Any probe failure re-opens immediately and lengthens the wait.
		b.halfOpenInFlight--
		tr = b.setStateLocked(StateOpen)
	case StateClosed:
		b.failureTimes = append(b.failureTimes, now)
		b.pruneWindowLocked(now)

		if len(b.failureTimes) >= b.config.FailureThreshold && b.totalRequests >= uint64(b.config.MinThroughput) {
			tr = b.setStateLocked(StateOpen)
		}
	case StateOpen:
		// Admitted before a concurrent call tripped the breaker; the
		// failure is counted but there is nothing left to evaluate.
	}

	nowOpen := b.state == StateOpen
	b.mu.Unlock()

	if tr != nil {
		b.emitTransition(ctx, *tr)
	}

	return nowOpen
}

// recordSuccess updates counters for a successful call and closes the breaker
// once enough consecutive half-open probes have succeeded.
func (b *Breaker) recordSuccess(ctx context.Context, elapsed time.Duration) {
	b.mu.Lock()

	now := time.Now()
	b.totalSuccesses++
	b.consecutiveSuccesses++
	b.consecutiveFailures = 0
	b.lastSuccess = now

	b.latencies = append(b.latencies, elapsed)
	if len(b.latencies) > b.config.LatencySampleSize {
		b.latencies = b.latencies[1:]
	}

	var tr *transition

	if b.state == StateHalfOpen {
		b.halfOpenInFlight--

		if b.consecutiveSuccesses >= b.config.SuccessThreshold {
			tr = b.setStateLocked(StateClosed)
		}
	}

	b.mu.Unlock()

	if tr != nil {
		b.emitTransition(ctx, *tr)
	}
}

// State returns the current state without side effects; the Open->HalfOpen
// transition only happens on an admitted call.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.state
}

// Metrics returns a snapshot of the breaker's counters and latency
// percentiles.
func (b *Breaker) Metrics() Metrics {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.pruneWindowLocked(time.Now())

	var failureRate float64
	if b.totalRequests > 0 {
		failureRate = float64(b.totalFailures) / float64(b.totalRequests)
	}

	sorted := make([]time.Duration, len(b.latencies))
	copy(sorted, b.latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	return Metrics{
		Name:                 b.name,
		State:                b.state,
		TotalRequests:        b.totalRequests,
		TotalSuccesses:       b.totalSuccesses,
		TotalFailures:        b.totalFailures,
		TotalRejections:      b.totalRejections,
		ConsecutiveFailures:  b.consecutiveFailures,
		ConsecutiveSuccesses: b.consecutiveSuccesses,
		WindowFailures:       len(b.failureTimes),
		FailureRate:          failureRate,
		BackoffCount:         b.openCount,
		CurrentTimeout:       b.currentTimeoutLocked(),
		LatencyP50:           nearestRank(sorted, 0.50),
		LatencyP95:           nearestRank(sorted, 0.95),
		LatencyP99:           nearestRank(sorted, 0.99),
		LastFailure:          b.lastFailure,
		LastSuccess:          b.lastSuccess,
		LastStateChange:      b.lastStateChange,
	}
}

// Reset force-returns the breaker to Closed with metrics zeroed. Used for
// tests and operational recovery.
func (b *Breaker) Reset() {
	b.mu.Lock()

	tr := b.setStateLocked(StateClosed)

	b.openCount = 0
	b.halfOpenInFlight = 0
	b.consecutiveFailures = 0
	b.consecutiveSuccesses = 0
	b.totalRequests = 0
	b.totalSuccesses = 0
	b.totalFailures = 0
	b.totalRejections = 0
	b.failureTimes = nil
	b.latencies = nil
	b.lastFailure = time.Time{}
	b.lastSuccess = time.Time{}

	b.mu.Unlock()

	if tr != nil {
		b.emitTransition(context.Background(), *tr)
	}

	b.logger.Log(context.Background(), log.LevelInfo, "circuit breaker reset",
		log.String("service", b.name),
	)
}

// setStateLocked performs a transition and its per-state bookkeeping. Must be
// called with b.mu held; returns nil when from == to.
func (b *Breaker) setStateLocked(to State) *transition {
	from := b.state
	if from == to {
		return nil
	}

	b.state = to
	b.lastStateChange = time.Now()

	switch to {
	case StateOpen:
		b.openedAt = b.lastStateChange
		b.openCount++
	case StateHalfOpen:
		b.halfOpenInFlight = 0
		b.consecutiveSuccesses = 0
	case StateClosed:
		b.openCount = 0
		b.failureTimes = nil
	}

	return &transition{from: from, to: to}
}

// currentTimeoutLocked returns the open timeout for the current backoff
// attempt: BaseTimeout * BackoffMultiplier^(openCount-1), capped at
// MaxTimeout. The first trip therefore waits exactly BaseTimeout.
func (b *Breaker) currentTimeoutLocked() time.Duration {
	attempt := b.openCount - 1
	if attempt < 0 {
		attempt = 0
	}

	return backoff.Capped(b.config.BaseTimeout, b.config.BackoffMultiplier, attempt, b.config.MaxTimeout)
}

// pruneWindowLocked drops failure timestamps older than the rolling window.
// Must be called with b.mu held.
func (b *Breaker) pruneWindowLocked(now time.Time) {
	cutoff := now.Add(-b.config.RollingWindow)

	kept := b.failureTimes[:0]
	for _, ts := range b.failureTimes {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	b.failureTimes = kept
}

// emitTransition logs, counts, and forwards a state change. Called outside
// the breaker lock so listener work never blocks calls.
func (b *Breaker) emitTransition(ctx context.Context, tr transition) {
	switch tr.to {
	case StateOpen:
		b.logger.Log(ctx, log.LevelError, "circuit breaker opened, requests will fast-fail",
			log.String("service", b.name),
			log.String("from", string(tr.from)),
			log.Duration("timeout", b.Metrics().CurrentTimeout),
		)
	case StateHalfOpen:
		b.logger.Log(ctx, log.LevelInfo, "circuit breaker half-open, testing recovery",
			log.String("service", b.name),
		)
	case StateClosed:
		b.logger.Log(ctx, log.LevelInfo, "circuit breaker closed, service is healthy",
			log.String("service", b.name),
		)
	}

	_ = b.telemetry.RecordBreakerStateChange(ctx, b.name, string(tr.from), string(tr.to))

	if b.notify != nil {
		b.notify(b.name, tr.from, tr.to)
	}
}

// nearestRank returns the q-th percentile of an ascending-sorted sample using
// the nearest-rank method (no interpolation).
func nearestRank(sorted []time.Duration, q float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}

	rank := int(math.Ceil(q * float64(len(sorted))))
	if rank < 1 {
		rank = 1
	}

	if rank > len(sorted) {
		rank = len(sorted)
	}

	return sorted[rank-1]
}
