package fallback

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/milosriki/geminivideo-sub001/log"
	"github.com/milosriki/geminivideo-sub001/metrics"
)

var (
	// ErrQueueDisabled is returned when QueueForRetry is called on an
	// executor configured without a retry queue.
	ErrQueueDisabled = errors.New("fallback: retry queue disabled")

	// ErrAlreadyRunning is returned when Start is called on a running
	// executor.
	ErrAlreadyRunning = errors.New("fallback: executor already running")
)

// Strategy names how a request was ultimately satisfied.
type Strategy string

const (
	// StrategyPrimary means the protected call itself succeeded.
	StrategyPrimary Strategy = "primary"
	// StrategyCache means a cached prior response was served.
	StrategyCache Strategy = "cache"
	// StrategyHandler means a registered degradation handler answered.
	StrategyHandler Strategy = "handler"
	// StrategyQueued means the call was deferred for background retry.
	StrategyQueued Strategy = "queued"
)

// Handler produces a degraded response for one service when its protected
// call fails and no cached response exists.
type Handler func(ctx context.Context) (any, error)

// Result is the outcome of ExecuteWithFallback.
type Result struct {
	Strategy  Strategy
	Data      any
	FromCache bool
	Queued    bool
	RequestID string
}

// Stats is a point-in-time snapshot of cache and queue activity.
type Stats struct {
	CacheHits      uint64
	CacheMisses    uint64
	CacheSize      int
	HitRate        float64
	QueueDepth     int
	QueueEnqueued  uint64
	QueueProcessed uint64
	QueueDropped   uint64
	QueueExhausted uint64
	HandlerCalls   uint64
}

// Executor composes the response cache, degradation handlers, and the retry
// queue behind one fallback decision.
type Executor struct {
	config    Config
	logger    log.Logger
	telemetry *metrics.MetricsFactory

	cache *lruCache
	queue *retryQueue

	mu           sync.RWMutex
	handlers     map[string]Handler
	handlerCalls uint64

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewExecutor creates an executor. Cache and queue are only allocated when
// enabled in config; a nil logger or telemetry factory falls back to the
// no-op implementations.
func NewExecutor(config Config, logger log.Logger, telemetry *metrics.MetricsFactory) *Executor {
	if logger == nil {
		logger = log.NewNop()
	}

	if telemetry == nil {
		telemetry = metrics.NewNopFactory()
	}

	config = config.normalize()

	e := &Executor{
		config:    config,
		logger:    logger,
		telemetry: telemetry,
		handlers:  make(map[string]Handler),
	}

	if config.CacheEnabled {
		e.cache = newLRUCache(config.CacheCapacity, config.CacheTTL)
	}

	if config.QueueEnabled {
		e.queue = newRetryQueue(config, logger, telemetry)
	}

	return e
}

// RegisterHandler sets the degradation handler for a service, replacing any
// previous one. Nil handlers are ignored.
func (e *Executor) RegisterHandler(service string, handler Handler) {
	if handler == nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.handlers[service] = handler
}

// GetFromCache returns the cached response for service and key, if present
// and within TTL.
func (e *Executor) GetFromCache(service, key string) (any, bool) {
	if e.cache == nil {
		return nil, false
	}

	return e.cache.get(cacheKey(service, key))
}

// SaveToCache stores a successful response for later degraded serving.
func (e *Executor) SaveToCache(service, key string, value any) {
	if e.cache == nil {
		return
	}

	e.cache.put(cacheKey(service, key), value)
}

// QueueForRetry defers op for background replay and returns its request ID.
// callback, if not nil, receives the terminal outcome.
func (e *Executor) QueueForRetry(ctx context.Context, service string, op Operation, callback Callback) (string, error) {
	if e.queue == nil {
		return "", ErrQueueDisabled
	}

	req := &QueuedRequest{
		ID:         newRequestID(),
		Service:    service,
		Operation:  op,
		Callback:   callback,
		EnqueuedAt: time.Now(),
	}

	e.queue.enqueue(ctx, req)

	e.logger.Log(ctx, log.LevelInfo, "request queued for retry",
		log.String("service", service),
		log.String("request_id", req.ID),
	)

	return req.ID, nil
}

// ExecuteWithFallback runs op and, when it fails, tries each degradation
// strategy in priority order: cached response, registered handler,
// queue-for-retry. With nothing configured the original error is re-raised
// unchanged.
func (e *Executor) ExecuteWithFallback(ctx context.Context, service string, op Operation, key string) (Result, error) {
	data, opErr := op(ctx)
	if opErr == nil {
		if key != "" {
			e.SaveToCache(service, key, data)
		}

		return Result{Strategy: StrategyPrimary, Data: data}, nil
	}

	e.logger.Log(ctx, log.LevelWarn, "primary call failed, trying fallback strategies",
		log.String("service", service),
		log.Err(opErr),
	)

	if key != "" {
		if cached, ok := e.GetFromCache(service, key); ok {
			_ = e.telemetry.RecordFallbackStrategy(ctx, service, string(StrategyCache))

			return Result{Strategy: StrategyCache, Data: cached, FromCache: true}, nil
		}
	}

	e.mu.RLock()
	handler, hasHandler := e.handlers[service]
	e.mu.RUnlock()

	if hasHandler {
		data, handlerErr := handler(ctx)
		if handlerErr == nil {
			e.mu.Lock()
			e.handlerCalls++
			e.mu.Unlock()

			_ = e.telemetry.RecordFallbackStrategy(ctx, service, string(StrategyHandler))

			return Result{Strategy: StrategyHandler, Data: data}, nil
		}

		e.logger.Log(ctx, log.LevelWarn, "fallback handler failed",
			log.String("service", service),
			log.Err(handlerErr),
		)
	}

	if e.queue != nil {
		requestID, err := e.QueueForRetry(ctx, service, op, nil)
		if err == nil {
			_ = e.telemetry.RecordFallbackStrategy(ctx, service, string(StrategyQueued))

			return Result{Strategy: StrategyQueued, Queued: true, RequestID: requestID}, nil
		}
	}

	return Result{}, opErr
}

// Start launches the retry consumer. A no-op when the queue is disabled.
func (e *Executor) Start(ctx context.Context) error {
	if e.queue == nil {
		return nil
	}

	e.runMu.Lock()
	defer e.runMu.Unlock()

	if e.cancel != nil {
		return ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.done = make(chan struct{})

	go func(done chan<- struct{}) {
		defer close(done)

		e.queue.consume(runCtx)
	}(e.done)

	e.logger.Log(ctx, log.LevelInfo, "retry consumer started")

	return nil
}

// Stop cancels the retry consumer, interrupting any in-progress backoff
// sleep, and waits for it to exit. Safe to call when not running.
func (e *Executor) Stop() {
	e.runMu.Lock()
	cancel := e.cancel
	done := e.done
	e.cancel = nil
	e.done = nil
	e.runMu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	<-done

	e.logger.Log(context.Background(), log.LevelInfo, "retry consumer stopped")
}

// Stats snapshots cache and queue activity.
func (e *Executor) Stats() Stats {
	var stats Stats

	if e.cache != nil {
		stats.CacheHits, stats.CacheMisses = e.cache.counters()
		stats.CacheSize = e.cache.len()

		if total := stats.CacheHits + stats.CacheMisses; total > 0 {
			stats.HitRate = float64(stats.CacheHits) / float64(total)
		}
	}

	if e.queue != nil {
		counters := e.queue.snapshot()
		stats.QueueDepth = e.queue.depth()
		stats.QueueEnqueued = counters.enqueued
		stats.QueueProcessed = counters.processed
		stats.QueueDropped = counters.dropped
		stats.QueueExhausted = counters.exhausted
	}

	e.mu.RLock()
	stats.HandlerCalls = e.handlerCalls
	e.mu.RUnlock()

	return stats
}

func cacheKey(service, key string) string {
	return service + "::" + key
}
