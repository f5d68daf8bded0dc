// Package fallback degrades gracefully when a protected call fails, in
// priority order: a cached prior response, a per-service registered handler,
// queue-for-retry, and finally re-raising the original error.
//
// The cache is bounded with TTL expiry on read and least-recently-accessed
// eviction. The retry queue is a bounded FIFO drained by one serial consumer
// so retries never amplify load against an already-struggling dependency.
package fallback
