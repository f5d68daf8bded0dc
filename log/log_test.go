package log

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    Level
		expectError bool
	}{
		{name: "parse error level", input: "error", expected: LevelError},
		{name: "parse warn level", input: "warn", expected: LevelWarn},
		{name: "parse warning alias", input: "warning", expected: LevelWarn},
		{name: "parse info level", input: "info", expected: LevelInfo},
		{name: "parse debug level", input: "debug", expected: LevelDebug},
		{name: "parse mixed case", input: "InFo", expected: LevelInfo},
		{name: "reject unknown level", input: "verbose", expectError: true},
		{name: "reject empty string", input: "", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, err := ParseLevel(tt.input)
			if tt.expectError {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expected, level)
		})
	}
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "error", LevelError.String())
	assert.Equal(t, "warn", LevelWarn.String())
	assert.Equal(t, "info", LevelInfo.String())
	assert.Equal(t, "debug", LevelDebug.String())
	assert.Equal(t, "unknown", Level(42).String())
}

func TestFieldConstructors(t *testing.T) {
	err := errors.New("boom")

	assert.Equal(t, Field{Key: "k", Value: "v"}, String("k", "v"))
	assert.Equal(t, Field{Key: "n", Value: 7}, Int("n", 7))
	assert.Equal(t, Field{Key: "ok", Value: true}, Bool("ok", true))
	assert.Equal(t, Field{Key: "error", Value: err}, Err(err))
}

func TestNopLogger(t *testing.T) {
	logger := NewNop()

	// Must be safe to call and return itself from With/WithGroup.
	logger.Log(context.Background(), LevelInfo, "dropped")
	assert.Same(t, logger, logger.With(String("k", "v")))
	assert.Same(t, logger, logger.WithGroup("group"))
	assert.False(t, logger.Enabled(LevelError))
	assert.NoError(t, logger.Sync(context.Background()))
}

// recordingLogger captures log calls for assertions in this and other packages' tests.
type recordingLogger struct {
	mu      sync.Mutex
	entries []string
}

func (r *recordingLogger) Log(_ context.Context, _ Level, msg string, _ ...Field) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, msg)
}

func (r *recordingLogger) With(_ ...Field) Logger       { return r }
func (r *recordingLogger) WithGroup(_ string) Logger    { return r }
func (r *recordingLogger) Enabled(_ Level) bool         { return true }
func (r *recordingLogger) Sync(_ context.Context) error { return nil }

func TestSafeError(t *testing.T) {
	t.Run("nil logger does not panic", func(t *testing.T) {
		SafeError(nil, context.Background(), "msg", errors.New("x"), true)
	})

	t.Run("nil error is dropped", func(t *testing.T) {
		rec := &recordingLogger{}
		SafeError(rec, context.Background(), "msg", nil, false)
		assert.Empty(t, rec.entries)
	})

	t.Run("error is logged", func(t *testing.T) {
		rec := &recordingLogger{}
		SafeError(rec, context.Background(), "provider call failed", errors.New("x"), true)
		require.Len(t, rec.entries, 1)
		assert.Equal(t, "provider call failed", rec.entries[0])
	})
}

func TestSanitizeExternalResponse(t *testing.T) {
	assert.Equal(t, "external system returned status 503", SanitizeExternalResponse(503))
}
