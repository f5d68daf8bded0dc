package fallback

import "time"

// Config controls the cache, retry queue, and retry pacing. Numeric zero
// fields take the documented fallback via normalize; the Enabled flags are
// honored as given, so the zero value disables both cache and queue.
type Config struct {
	// CacheEnabled turns the response cache on.
	CacheEnabled bool

	// CacheTTL is how long a cached response stays servable.
	CacheTTL time.Duration

	// CacheCapacity bounds the cache; the least-recently-accessed entry is
	// evicted when a write would exceed it.
	CacheCapacity int

	// QueueEnabled turns the retry queue on.
	QueueEnabled bool

	// QueueMaxSize bounds the queue; the oldest request is dropped when an
	// enqueue would exceed it.
	QueueMaxSize int

	// QueueTTL prunes requests that waited too long to be worth retrying.
	QueueTTL time.Duration

	// MaxRetryAttempts drops a request after this many failed retries.
	MaxRetryAttempts int

	// RetryBaseDelay is the consumer's sleep before the first retry.
	RetryBaseDelay time.Duration

	// RetryBackoffMultiplier grows the sleep on each subsequent retry.
	RetryBackoffMultiplier float64
}

// Per-field fallbacks applied by normalize.
const (
	defaultCacheTTL         = 5 * time.Minute
	defaultCacheCapacity    = 1000
	defaultQueueMaxSize     = 100
	defaultQueueTTL         = 10 * time.Minute
	defaultMaxRetryAttempts = 3
	defaultRetryBaseDelay   = time.Second
	defaultRetryMultiplier  = 2.0
)

// DefaultConfig enables both cache and queue with balanced settings.
func DefaultConfig() Config {
	return Config{
		CacheEnabled:           true,
		CacheTTL:               defaultCacheTTL,
		CacheCapacity:          defaultCacheCapacity,
		QueueEnabled:           true,
		QueueMaxSize:           defaultQueueMaxSize,
		QueueTTL:               defaultQueueTTL,
		MaxRetryAttempts:       defaultMaxRetryAttempts,
		RetryBaseDelay:         defaultRetryBaseDelay,
		RetryBackoffMultiplier: defaultRetryMultiplier,
	}
}

// normalize returns a copy with documented fallbacks applied for zero
// numeric fields.
func (c Config) normalize() Config {
	if c.CacheTTL <= 0 {
		c.CacheTTL = defaultCacheTTL
	}

	if c.CacheCapacity <= 0 {
		c.CacheCapacity = defaultCacheCapacity
	}

	if c.QueueMaxSize <= 0 {
		c.QueueMaxSize = defaultQueueMaxSize
	}

	if c.QueueTTL <= 0 {
		c.QueueTTL = defaultQueueTTL
	}

	if c.MaxRetryAttempts <= 0 {
		c.MaxRetryAttempts = defaultMaxRetryAttempts
	}

	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = defaultRetryBaseDelay
	}

	if c.RetryBackoffMultiplier < 1 {
		c.RetryBackoffMultiplier = defaultRetryMultiplier
	}

	return c
}
