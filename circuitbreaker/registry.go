package circuitbreaker

import (
	"context"
	"sort"
	"sync"

	"github.com/milosriki/geminivideo-sub001/log"
	"github.com/milosriki/geminivideo-sub001/metrics"
)

// Registry manages named circuit breakers so every caller referencing the
// same dependency shares one breaker instance.
type Registry struct {
	logger    log.Logger
	telemetry *metrics.MetricsFactory

	mu        sync.RWMutex
	breakers  map[string]*Breaker
	listeners []StateChangeListener
}

// NewRegistry creates an empty registry. A nil logger or telemetry factory
// falls back to the no-op implementations.
func NewRegistry(logger log.Logger, telemetry *metrics.MetricsFactory) *Registry {
	if logger == nil {
		logger = log.NewNop()
	}

	if telemetry == nil {
		telemetry = metrics.NewNopFactory()
	}

	return &Registry{
		logger:    logger,
		telemetry: telemetry,
		breakers:  make(map[string]*Breaker),
	}
}

// GetOrCreate returns the breaker registered under name, creating it with
// config and fallback on first use. Creation is first-wins: a later call with
// a different config returns the existing breaker unchanged.
func (r *Registry) GetOrCreate(name string, config Config, fallback Fallback) *Breaker {
	r.mu.RLock()
	breaker, ok := r.breakers[name]
	r.mu.RUnlock()

	if ok {
		return breaker
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Re-check in case another goroutine created it between the locks.
	if breaker, ok = r.breakers[name]; ok {
		return breaker
	}

	breaker = New(name, config, fallback, r.logger, r.telemetry)
	breaker.notify = r.handleStateChange
	r.breakers[name] = breaker

	r.logger.Log(context.Background(), log.LevelInfo, "circuit breaker registered",
		log.String("service", name),
		log.Int("failure_threshold", breaker.config.FailureThreshold),
		log.Duration("base_timeout", breaker.config.BaseTimeout),
	)

	return breaker
}

// Get returns the breaker registered under name, or false when none exists.
func (r *Registry) Get(name string) (*Breaker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	breaker, ok := r.breakers[name]

	return breaker, ok
}

// All returns the registered breakers keyed by service name.
func (r *Registry) All() map[string]*Breaker {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]*Breaker, len(r.breakers))
	for name, breaker := range r.breakers {
		out[name] = breaker
	}

	return out
}

// Names returns the registered service names in ascending order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.breakers))
	for name := range r.breakers {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// AllMetrics snapshots every registered breaker, keyed by service name.
func (r *Registry) AllMetrics() map[string]Metrics {
	breakers := r.All()

	out := make(map[string]Metrics, len(breakers))
	for name, breaker := range breakers {
		out[name] = breaker.Metrics()
	}

	return out
}

// ResetAll force-closes every registered breaker and zeroes its metrics.
func (r *Registry) ResetAll() {
	for _, breaker := range r.All() {
		breaker.Reset()
	}
}

// RegisterStateChangeListener adds a listener notified on every breaker state
// change. Nil listeners are ignored.
func (r *Registry) RegisterStateChangeListener(listener StateChangeListener) {
	if listener == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.listeners = append(r.listeners, listener)
}

// handleStateChange fans a transition out to the registered listeners. Each
// listener runs on its own goroutine so a slow or panicking listener never
// blocks the breaker.
func (r *Registry) handleStateChange(name string, from, to State) {
	r.mu.RLock()
	listeners := make([]StateChangeListener, len(r.listeners))
	copy(listeners, r.listeners)
	r.mu.RUnlock()

	for _, listener := range listeners {
		go func(l StateChangeListener) {
			defer func() {
				if rec := recover(); rec != nil {
					r.logger.Log(context.Background(), log.LevelError, "state change listener panicked",
						log.String("service", name),
						log.Any("panic", rec),
					)
				}
			}()

			l.OnStateChange(name, from, to)
		}(listener)
	}
}
