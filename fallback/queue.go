package fallback

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/milosriki/geminivideo-sub001/backoff"
	"github.com/milosriki/geminivideo-sub001/log"
	"github.com/milosriki/geminivideo-sub001/metrics"
)

// Operation is a deferred call replayed by the retry consumer.
type Operation func(ctx context.Context) (any, error)

// Callback receives a queued request's terminal outcome: the result on a
// successful replay, or the last error when the request is dropped as
// exhausted.
type Callback func(result any, err error)

// QueuedRequest is one deferred call waiting for retry.
type QueuedRequest struct {
	ID         string
	Service    string
	Operation  Operation
	Callback   Callback
	EnqueuedAt time.Time
	RetryCount int
}

// queueCounters tracks lifetime queue activity for Stats.
type queueCounters struct {
	enqueued  uint64
	processed uint64
	dropped   uint64
	exhausted uint64
}

// retryQueue is a bounded FIFO of deferred calls drained by one serial
// consumer.
type retryQueue struct {
	logger    log.Logger
	telemetry *metrics.MetricsFactory
	config    Config

	mu       sync.Mutex
	items    []*QueuedRequest
	counters queueCounters

	wake chan struct{}
}

func newRetryQueue(config Config, logger log.Logger, telemetry *metrics.MetricsFactory) *retryQueue {
	return &retryQueue{
		logger:    logger,
		telemetry: telemetry,
		config:    config,
		wake:      make(chan struct{}, 1),
	}
}

// enqueue appends a request, dropping the oldest entry first when the queue
// is full. Overflow is informational, not an error.
func (q *retryQueue) enqueue(ctx context.Context, req *QueuedRequest) {
	q.mu.Lock()

	if len(q.items) >= q.config.QueueMaxSize {
		dropped := q.items[0]
		q.items = q.items[1:]
		q.counters.dropped++

		q.logger.Log(ctx, log.LevelWarn, "retry queue full, dropping oldest request",
			log.String("service", dropped.Service),
			log.String("request_id", dropped.ID),
		)
	}

	q.items = append(q.items, req)
	q.counters.enqueued++
	depth := len(q.items)
	q.mu.Unlock()

	_ = q.telemetry.SetRetryQueueDepth(ctx, int64(depth))

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// next blocks until a request is available or ctx is canceled. Requests older
// than QueueTTL are pruned before each dequeue attempt.
func (q *retryQueue) next(ctx context.Context) *QueuedRequest {
	for {
		q.mu.Lock()
		q.pruneLocked(ctx)

		if len(q.items) > 0 {
			req := q.items[0]
			q.items = q.items[1:]
			depth := len(q.items)
			q.mu.Unlock()

			_ = q.telemetry.SetRetryQueueDepth(ctx, int64(depth))

			return req
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil
		case <-q.wake:
		}
	}
}

// pruneLocked drops requests whose age exceeds QueueTTL. Must be called with
// q.mu held.
func (q *retryQueue) pruneLocked(ctx context.Context) {
	cutoff := time.Now().Add(-q.config.QueueTTL)

	kept := q.items[:0]
	for _, req := range q.items {
		if req.EnqueuedAt.After(cutoff) {
			kept = append(kept, req)

			continue
		}

		q.counters.dropped++
		q.logger.Log(ctx, log.LevelWarn, "queued request expired before retry",
			log.String("service", req.Service),
			log.String("request_id", req.ID),
			log.Int("retry_count", req.RetryCount),
		)
	}

	q.items = kept
}

// consume drains the queue serially until ctx is canceled. One request is
// replayed at a time and the consumer sleeps between attempts, so retries
// cannot amplify load on a struggling dependency.
func (q *retryQueue) consume(ctx context.Context) {
	for {
		req := q.next(ctx)
		if req == nil {
			return
		}

		result, err := req.Operation(ctx)
		if err == nil {
			q.mu.Lock()
			q.counters.processed++
			q.mu.Unlock()

			q.logger.Log(ctx, log.LevelInfo, "queued request succeeded on retry",
				log.String("service", req.Service),
				log.String("request_id", req.ID),
				log.Int("retry_count", req.RetryCount),
			)

			if req.Callback != nil {
				req.Callback(result, nil)
			}

			continue
		}

		if ctx.Err() != nil {
			return
		}

		if req.RetryCount >= q.config.MaxRetryAttempts {
			q.mu.Lock()
			q.counters.exhausted++
			q.mu.Unlock()

			q.logger.Log(ctx, log.LevelError, "queued request exhausted retry attempts, dropping",
				log.String("service", req.Service),
				log.String("request_id", req.ID),
				log.Int("retry_count", req.RetryCount),
				log.Err(err),
			)

			if req.Callback != nil {
				req.Callback(nil, err)
			}

			continue
		}

		delay := backoff.Capped(q.config.RetryBaseDelay, q.config.RetryBackoffMultiplier, req.RetryCount, 0)
		req.RetryCount++

		if sleepErr := backoff.SleepWithContext(ctx, delay); sleepErr != nil {
			return
		}

		q.enqueue(ctx, req)
	}
}

// depth returns the current queue occupancy.
func (q *retryQueue) depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items)
}

// snapshot returns a copy of the lifetime counters.
func (q *retryQueue) snapshot() queueCounters {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.counters
}

func newRequestID() string {
	return uuid.New().String()
}
