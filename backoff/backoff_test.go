package backoff

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExponential(t *testing.T) {
	tests := []struct {
		name     string
		base     time.Duration
		attempt  int
		expected time.Duration
	}{
		{name: "attempt zero returns base", base: time.Second, attempt: 0, expected: time.Second},
		{name: "attempt one doubles", base: time.Second, attempt: 1, expected: 2 * time.Second},
		{name: "attempt three is 8x", base: 100 * time.Millisecond, attempt: 3, expected: 800 * time.Millisecond},
		{name: "negative attempt treated as zero", base: time.Second, attempt: -5, expected: time.Second},
		{name: "zero base returns zero", base: 0, attempt: 4, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Exponential(tt.base, tt.attempt))
		})
	}
}

func TestExponential_Overflow(t *testing.T) {
	// Huge attempt counts must clamp instead of wrapping around.
	assert.Equal(t, time.Duration(math.MaxInt64), Exponential(time.Hour, 62))
	assert.Equal(t, time.Duration(math.MaxInt64), Exponential(time.Hour, 10000))
}

func TestCapped(t *testing.T) {
	tests := []struct {
		name       string
		base       time.Duration
		multiplier float64
		attempt    int
		max        time.Duration
		expected   time.Duration
	}{
		{name: "attempt zero returns base", base: time.Minute, multiplier: 2, attempt: 0, max: time.Hour, expected: time.Minute},
		{name: "grows by multiplier", base: time.Minute, multiplier: 2, attempt: 2, max: time.Hour, expected: 4 * time.Minute},
		{name: "fractional multiplier", base: time.Second, multiplier: 1.5, attempt: 2, max: time.Hour, expected: 2250 * time.Millisecond},
		{name: "clamped to max", base: time.Minute, multiplier: 2, attempt: 20, max: 10 * time.Minute, expected: 10 * time.Minute},
		{name: "multiplier below one never shrinks", base: time.Minute, multiplier: 0.5, attempt: 3, max: time.Hour, expected: time.Minute},
		{name: "negative attempt treated as zero", base: time.Minute, multiplier: 2, attempt: -1, max: time.Hour, expected: time.Minute},
		{name: "zero base returns zero", base: 0, multiplier: 2, attempt: 3, max: time.Hour, expected: 0},
		{name: "no cap when max is zero", base: time.Minute, multiplier: 2, attempt: 3, max: 0, expected: 8 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Capped(tt.base, tt.multiplier, tt.attempt, tt.max))
		})
	}
}

func TestFullJitter(t *testing.T) {
	assert.Equal(t, time.Duration(0), FullJitter(0))
	assert.Equal(t, time.Duration(0), FullJitter(-time.Second))

	for i := 0; i < 100; i++ {
		jittered := FullJitter(time.Second)
		assert.GreaterOrEqual(t, jittered, time.Duration(0))
		assert.Less(t, jittered, time.Second)
	}
}

func TestExponentialWithJitter(t *testing.T) {
	for i := 0; i < 50; i++ {
		jittered := ExponentialWithJitter(100*time.Millisecond, 2)
		assert.GreaterOrEqual(t, jittered, time.Duration(0))
		assert.Less(t, jittered, 400*time.Millisecond)
	}
}

func TestSleepWithContext(t *testing.T) {
	t.Run("completes for short durations", func(t *testing.T) {
		require.NoError(t, SleepWithContext(context.Background(), time.Millisecond))
	})

	t.Run("returns immediately for non-positive durations", func(t *testing.T) {
		start := time.Now()
		require.NoError(t, SleepWithContext(context.Background(), -time.Hour))
		assert.Less(t, time.Since(start), 50*time.Millisecond)
	})

	t.Run("aborts on cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())

		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()

		start := time.Now()
		err := SleepWithContext(ctx, 10*time.Second)
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Less(t, time.Since(start), 5*time.Second)
	})
}
