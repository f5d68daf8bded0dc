package circuitbreaker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/milosriki/geminivideo-sub001/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingListener struct {
	mu          sync.Mutex
	transitions []transition
	services    []string
	notified    chan struct{}
}

func newRecordingListener() *recordingListener {
	return &recordingListener{notified: make(chan struct{}, 16)}
}

func (l *recordingListener) OnStateChange(serviceName string, from, to State) {
	l.mu.Lock()
	l.transitions = append(l.transitions, transition{from: from, to: to})
	l.services = append(l.services, serviceName)
	l.mu.Unlock()

	l.notified <- struct{}{}
}

func (l *recordingListener) wait(t *testing.T) {
	t.Helper()

	select {
	case <-l.notified:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for state change notification")
	}
}

type panickingListener struct{}

func (panickingListener) OnStateChange(string, State, State) {
	panic("listener blew up")
}

func TestRegistry_GetOrCreateIsIdempotent(t *testing.T) {
	r := NewRegistry(log.NewNop(), nil)

	cfgA := DefaultConfig()
	cfgA.FailureThreshold = 3

	cfgB := DefaultConfig()
	cfgB.FailureThreshold = 99

	first := r.GetOrCreate("openai", cfgA, nil)
	second := r.GetOrCreate("openai", cfgB, nil)

	assert.Same(t, first, second)
	// First registration wins; the later config is ignored.
	assert.Equal(t, 3, second.config.FailureThreshold)
}

func TestRegistry_GetOrCreateConcurrent(t *testing.T) {
	r := NewRegistry(log.NewNop(), nil)

	var wg sync.WaitGroup

	results := make([]*Breaker, 10)

	for i := range results {
		wg.Add(1)

		go func(idx int) {
			defer wg.Done()

			results[idx] = r.GetOrCreate("meta-ads", DefaultConfig(), nil)
		}(i)
	}

	wg.Wait()

	for _, breaker := range results {
		assert.Same(t, results[0], breaker)
	}
}

func TestRegistry_Get(t *testing.T) {
	r := NewRegistry(log.NewNop(), nil)

	_, ok := r.Get("openai")
	assert.False(t, ok)

	created := r.GetOrCreate("openai", DefaultConfig(), nil)

	found, ok := r.Get("openai")
	require.True(t, ok)
	assert.Same(t, created, found)
}

func TestRegistry_NamesAndAllMetrics(t *testing.T) {
	r := NewRegistry(log.NewNop(), nil)

	r.GetOrCreate("openai", DefaultConfig(), nil)
	r.GetOrCreate("anthropic", DefaultConfig(), nil)
	r.GetOrCreate("meta-ads", DefaultConfig(), nil)

	assert.Equal(t, []string{"anthropic", "meta-ads", "openai"}, r.Names())

	metrics := r.AllMetrics()
	require.Len(t, metrics, 3)
	assert.Equal(t, StateClosed, metrics["openai"].State)
	assert.Equal(t, "meta-ads", metrics["meta-ads"].Name)
}

func TestRegistry_ResetAll(t *testing.T) {
	r := NewRegistry(log.NewNop(), nil)

	cfg := DefaultConfig()
	cfg.FailureThreshold = 1
	cfg.MinThroughput = 1

	b := r.GetOrCreate("openai", cfg, nil)

	_, _ = b.Execute(context.Background(), failingOp(errUpstream))
	require.Equal(t, StateOpen, b.State())

	r.ResetAll()

	assert.Equal(t, StateClosed, b.State())
}

func TestRegistry_ListenerNotified(t *testing.T) {
	r := NewRegistry(log.NewNop(), nil)
	listener := newRecordingListener()

	r.RegisterStateChangeListener(listener)
	r.RegisterStateChangeListener(nil) // ignored

	cfg := DefaultConfig()
	cfg.FailureThreshold = 1
	cfg.MinThroughput = 1

	b := r.GetOrCreate("openai", cfg, nil)

	_, _ = b.Execute(context.Background(), failingOp(errUpstream))

	listener.wait(t)

	listener.mu.Lock()
	defer listener.mu.Unlock()

	require.Len(t, listener.transitions, 1)
	assert.Equal(t, "openai", listener.services[0])
	assert.Equal(t, StateClosed, listener.transitions[0].from)
	assert.Equal(t, StateOpen, listener.transitions[0].to)
}

func TestRegistry_PanickingListenerDoesNotBlockOthers(t *testing.T) {
	r := NewRegistry(log.NewNop(), nil)
	listener := newRecordingListener()

	r.RegisterStateChangeListener(panickingListener{})
	r.RegisterStateChangeListener(listener)

	cfg := DefaultConfig()
	cfg.FailureThreshold = 1
	cfg.MinThroughput = 1

	b := r.GetOrCreate("openai", cfg, nil)

	_, _ = b.Execute(context.Background(), failingOp(errUpstream))

	// The healthy listener still hears the transition.
	listener.wait(t)
}
