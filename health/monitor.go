package health

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/milosriki/geminivideo-sub001/errgroup"
	"github.com/milosriki/geminivideo-sub001/log"
	"github.com/milosriki/geminivideo-sub001/metrics"
)

var (
	// ErrNilProbe is returned when a service is registered without a probe.
	ErrNilProbe = errors.New("health: probe must not be nil")

	// ErrAlreadyRunning is returned when Start is called on a running monitor.
	ErrAlreadyRunning = errors.New("health: monitor already running")
)

// Monitor probes registered services and derives a rolling status for each.
type Monitor struct {
	logger    log.Logger
	telemetry *metrics.MetricsFactory

	mu       sync.RWMutex
	services map[string]*serviceState
	handlers []AlertHandler

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// serviceState holds one service's probe, config, and bounded result history.
type serviceState struct {
	name   string
	probe  ProbeFunc
	config CheckConfig

	mu        sync.Mutex
	history   []CheckResult
	lastAlert time.Time
}

// NewMonitor creates a monitor with no registered services. A nil logger or
// telemetry factory falls back to the no-op implementations.
func NewMonitor(logger log.Logger, telemetry *metrics.MetricsFactory) *Monitor {
	if logger == nil {
		logger = log.NewNop()
	}

	if telemetry == nil {
		telemetry = metrics.NewNopFactory()
	}

	return &Monitor{
		logger:    logger,
		telemetry: telemetry,
		services:  make(map[string]*serviceState),
	}
}

// RegisterService adds a service to the probing set. Registration is
// first-wins: re-registering an existing name leaves the original probe and
// config in place.
func (m *Monitor) RegisterService(name string, probe ProbeFunc, config CheckConfig) error {
	if probe == nil {
		return ErrNilProbe
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.services[name]; ok {
		m.logger.Log(context.Background(), log.LevelWarn, "service already registered, keeping existing config",
			log.String("service", name),
		)

		return nil
	}

	m.services[name] = &serviceState{
		name:   name,
		probe:  probe,
		config: config.normalize(),
	}

	m.logger.Log(context.Background(), log.LevelInfo, "health check registered",
		log.String("service", name),
		log.Duration("interval", m.services[name].config.CheckInterval),
	)

	return nil
}

// RegisterAlertHandler adds a handler invoked asynchronously on every alert.
// Nil handlers are ignored.
func (m *Monitor) RegisterAlertHandler(handler AlertHandler) {
	if handler == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.handlers = append(m.handlers, handler)
}

// CheckService probes one service now, records the result in its history, and
// dispatches an alert when a threshold is crossed outside the cooldown.
func (m *Monitor) CheckService(ctx context.Context, name string) (CheckResult, error) {
	m.mu.RLock()
	svc, ok := m.services[name]
	m.mu.RUnlock()

	if !ok {
		return CheckResult{}, fmt.Errorf("%w: %s", ErrUnknownService, name)
	}

	result := svc.runProbe(ctx)
	snapshot := svc.record(result)

	_ = m.telemetry.RecordHealthCheck(ctx, name, string(result.Status), result.Latency)

	if result.Err != nil {
		m.logger.Log(ctx, log.LevelWarn, "health probe failed",
			log.String("service", name),
			log.Err(result.Err),
			log.Duration("latency", result.Latency),
		)
	}

	m.maybeAlert(ctx, svc, snapshot)

	return result, nil
}

// CheckAll probes every registered service concurrently. Individual probe
// failures only affect that service's status, never the sweep itself.
func (m *Monitor) CheckAll(ctx context.Context) {
	m.mu.RLock()
	names := make([]string, 0, len(m.services))

	for name := range m.services {
		names = append(names, name)
	}
	m.mu.RUnlock()

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLogger(m.logger)

	for _, name := range names {
		group.Go(func() error {
			_, _ = m.CheckService(groupCtx, name)

			return nil
		})
	}

	_ = group.Wait()
}

// Summary aggregates the latest snapshot of every registered service.
func (m *Monitor) Summary() Summary {
	m.mu.RLock()
	states := make([]*serviceState, 0, len(m.services))

	for _, svc := range m.services {
		states = append(states, svc)
	}
	m.mu.RUnlock()

	summary := Summary{Services: make(map[string]ServiceHealth, len(states))}

	for _, svc := range states {
		svc.mu.Lock()
		snapshot := svc.snapshotLocked()
		svc.mu.Unlock()

		summary.Total++
		summary.Services[svc.name] = snapshot

		switch snapshot.Status {
		case StatusHealthy:
			summary.Healthy++
		case StatusDegraded:
			summary.Degraded++
		case StatusUnhealthy:
			summary.Unhealthy++
		default:
			summary.Unknown++
		}
	}

	return summary
}

// Start launches the monitoring loop, probing all services on the minimum
// check interval across registered configs. Stop or canceling ctx ends it.
func (m *Monitor) Start(ctx context.Context) error {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	if m.cancel != nil {
		return ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	go m.loop(runCtx, m.done)

	m.logger.Log(ctx, log.LevelInfo, "health monitor started",
		log.Duration("interval", m.pollInterval()),
	)

	return nil
}

// Stop ends the monitoring loop and waits for the in-flight sweep to finish.
// Safe to call when not running.
func (m *Monitor) Stop() {
	m.runMu.Lock()
	cancel := m.cancel
	done := m.done
	m.cancel = nil
	m.done = nil
	m.runMu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	<-done

	m.logger.Log(context.Background(), log.LevelInfo, "health monitor stopped")
}

func (m *Monitor) loop(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	timer := time.NewTimer(m.pollInterval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			m.CheckAll(ctx)
			// Re-read the interval so services registered after Start
			// are taken into account.
			timer.Reset(m.pollInterval())
		}
	}
}

// pollInterval returns the minimum check interval across registered services.
func (m *Monitor) pollInterval() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()

	interval := time.Duration(defaultCheckInterval)
	for _, svc := range m.services {
		if svc.config.CheckInterval < interval {
			interval = svc.config.CheckInterval
		}
	}

	return interval
}

// maybeAlert dispatches an alert when the snapshot crosses a threshold and
// the service's cooldown has elapsed. The cooldown timestamp advances whether
// or not any handler succeeds, so a persisting condition cannot storm.
func (m *Monitor) maybeAlert(ctx context.Context, svc *serviceState, snapshot ServiceHealth) {
	cfg := svc.config

	var (
		severity Severity
		message  string
	)

	switch {
	case snapshot.ErrorRate > cfg.ErrorRateCritical:
		severity = SeverityCritical
		message = fmt.Sprintf("error rate %.1f%% above critical threshold %.1f%%",
			snapshot.ErrorRate*100, cfg.ErrorRateCritical*100)
	case snapshot.LatencyP95 > cfg.LatencyCritical:
		severity = SeverityCritical
		message = fmt.Sprintf("p95 latency %s above critical threshold %s",
			snapshot.LatencyP95, cfg.LatencyCritical)
	case snapshot.ErrorRate > cfg.ErrorRateWarning:
		severity = SeverityWarning
		message = fmt.Sprintf("error rate %.1f%% above warning threshold %.1f%%",
			snapshot.ErrorRate*100, cfg.ErrorRateWarning*100)
	case snapshot.LatencyP95 > cfg.LatencyWarning:
		severity = SeverityWarning
		message = fmt.Sprintf("p95 latency %s above warning threshold %s",
			snapshot.LatencyP95, cfg.LatencyWarning)
	default:
		return
	}

	now := time.Now()

	svc.mu.Lock()
	if now.Sub(svc.lastAlert) < cfg.AlertCooldown {
		svc.mu.Unlock()

		return
	}

	svc.lastAlert = now
	svc.mu.Unlock()

	alert := Alert{
		Service:  svc.name,
		Severity: severity,
		Message:  message,
		Metrics:  snapshot,
		FiredAt:  now,
	}

	m.logger.Log(ctx, log.LevelError, "health alert",
		log.String("service", alert.Service),
		log.String("severity", string(alert.Severity)),
		log.String("message", alert.Message),
	)

	_ = m.telemetry.RecordHealthAlert(ctx, alert.Service, string(alert.Severity))

	m.mu.RLock()
	handlers := make([]AlertHandler, len(m.handlers))
	copy(handlers, m.handlers)
	m.mu.RUnlock()

	for _, handler := range handlers {
		go func(h AlertHandler) {
			defer func() {
				if rec := recover(); rec != nil {
					m.logger.Log(ctx, log.LevelError, "alert handler panicked",
						log.String("service", alert.Service),
						log.Any("panic", rec),
					)
				}
			}()

			h(ctx, alert)
		}(handler)
	}
}

// runProbe executes the probe on its own goroutine so a probe that ignores
// its context cannot stall the caller past the configured timeout.
func (s *serviceState) runProbe(ctx context.Context) CheckResult {
	probeCtx, cancel := context.WithTimeout(ctx, s.config.CheckTimeout)
	defer cancel()

	start := time.Now()
	errCh := make(chan error, 1)

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				errCh <- fmt.Errorf("health: probe panicked: %v", rec)
			}
		}()

		errCh <- s.probe(probeCtx)
	}()

	var err error

	select {
	case err = <-errCh:
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w after %s", ErrProbeTimeout, s.config.CheckTimeout)
		}
	case <-probeCtx.Done():
		err = fmt.Errorf("%w after %s", ErrProbeTimeout, s.config.CheckTimeout)
	}

	latency := time.Since(start)

	result := CheckResult{
		Service:   s.name,
		Latency:   latency,
		CheckedAt: time.Now(),
	}

	switch {
	case err != nil:
		result.Status = StatusUnhealthy
		result.Err = err
	case latency > s.config.LatencyWarning:
		result.Status = StatusDegraded
	default:
		result.Status = StatusHealthy
	}

	return result
}

// record appends a result to the bounded history and returns the recomputed
// snapshot.
func (s *serviceState) record(result CheckResult) ServiceHealth {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, result)
	if len(s.history) > s.config.HistorySize {
		s.history = s.history[1:]
	}

	return s.snapshotLocked()
}

// snapshotLocked derives status and rolling metrics from the history. Must be
// called with s.mu held.
func (s *serviceState) snapshotLocked() ServiceHealth {
	snapshot := ServiceHealth{
		Name:      s.name,
		Status:    StatusUnknown,
		LastAlert: s.lastAlert,
	}

	total := len(s.history)
	if total == 0 {
		return snapshot
	}

	failures := 0
	latencies := make([]time.Duration, 0, total)

	for _, result := range s.history {
		if result.Status == StatusUnhealthy {
			failures++
		}

		latencies = append(latencies, result.Latency)
	}

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	snapshot.TotalChecks = total
	snapshot.ErrorRate = float64(failures) / float64(total)
	snapshot.UptimePercentage = 100 * float64(total-failures) / float64(total)
	snapshot.LatencyP50 = nearestRank(latencies, 0.50)
	snapshot.LatencyP95 = nearestRank(latencies, 0.95)
	snapshot.LatencyP99 = nearestRank(latencies, 0.99)
	snapshot.LastCheck = s.history[total-1].CheckedAt

	switch {
	case snapshot.ErrorRate > s.config.ErrorRateCritical:
		snapshot.Status = StatusUnhealthy
	case snapshot.ErrorRate > s.config.ErrorRateWarning,
		snapshot.LatencyP95 > s.config.LatencyWarning:
		snapshot.Status = StatusDegraded
	default:
		snapshot.Status = StatusHealthy
	}

	return snapshot
}

// nearestRank returns the q-th percentile of an ascending-sorted sample using
// the nearest-rank method.
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
