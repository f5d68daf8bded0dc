package zap

import (
	"context"
	"testing"

	logpkg "github.com/milosriki/geminivideo-sub001/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedLogger(level zapcore.Level) (*Logger, *observer.ObservedLogs) {
	core, observed := observer.New(level)
	atomicLevel := zap.NewAtomicLevelAt(level)

	return &Logger{logger: zap.New(core), atomicLevel: atomicLevel}, observed
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "missing otel library name", cfg: Config{Environment: EnvironmentLocal}},
		{name: "unknown environment", cfg: Config{Environment: "qa", OTelLibraryName: "resilience"}},
		{name: "invalid level", cfg: Config{Environment: EnvironmentLocal, Level: "loud", OTelLibraryName: "resilience"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := New(tt.cfg)
			require.Error(t, err)
		})
	}
}

func TestNew_ValidConfig(t *testing.T) {
	logger, level, err := New(Config{
		Environment:     EnvironmentLocal,
		OTelLibraryName: "resilience-test",
	})
	require.NoError(t, err)
	require.NotNil(t, logger)

	// Local environment defaults to debug verbosity.
	assert.Equal(t, zapcore.DebugLevel, level.Level())
	assert.True(t, logger.Enabled(logpkg.LevelDebug))
}

func TestLogger_LevelDispatch(t *testing.T) {
	logger, observed := newObservedLogger(zapcore.DebugLevel)

	ctx := context.Background()
	logger.Log(ctx, logpkg.LevelDebug, "d")
	logger.Log(ctx, logpkg.LevelInfo, "i")
	logger.Log(ctx, logpkg.LevelWarn, "w")
	logger.Log(ctx, logpkg.LevelError, "e")

	entries := observed.All()
	require.Len(t, entries, 4)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, zapcore.InfoLevel, entries[1].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[2].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[3].Level)
}

func TestLogger_WithFields(t *testing.T) {
	logger, observed := newObservedLogger(zapcore.InfoLevel)

	child := logger.With(logpkg.String("service", "openai"))
	child.Log(context.Background(), logpkg.LevelInfo, "breaker opened", logpkg.Int("failures", 3))

	entries := observed.All()
	require.Len(t, entries, 1)

	fields := entries[0].ContextMap()
	assert.Equal(t, "openai", fields["service"])
	assert.EqualValues(t, 3, fields["failures"])
}

func TestLogger_NilSafety(t *testing.T) {
	var logger *Logger

	// A nil logger falls back to a nop zap logger instead of panicking.
	logger.Log(context.Background(), logpkg.LevelInfo, "dropped")
	assert.NotNil(t, logger.Raw())
}

func TestLogger_SyncRespectsContext(t *testing.T) {
	logger, _ := newObservedLogger(zapcore.InfoLevel)

	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, logger.Sync(canceled))
	assert.NoError(t, logger.Sync(context.Background()))
}
