// Package usecase contains application business logic.
package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/eliteGoblin/focusd/thermal_mon/internal/domain"
	"github.com/eliteGoblin/focusd/thermal_mon/internal/metrics"
)

// DefaultPollInterval is the focus polling period while the screen is on.
const DefaultPollInterval = 500 * time.Millisecond

// TrackerConfig holds foreground tracker configuration.
type TrackerConfig struct {
	PollInterval time.Duration // How often to query the focus source
	WarnInterval time.Duration // Minimum gap between query-failure warnings
}

// DefaultTrackerConfig returns default tracker configuration.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		PollInterval: DefaultPollInterval,
		WarnInterval: 30 * time.Second,
	}
}

// ChangeFunc receives a foreground application id that differs from the
// previous one reported in the same session. ctx is done once the session
// is stopped; blocking deliveries must select on it.
type ChangeFunc func(ctx context.Context, appID string)

// Tracker is the session control surface the controller drives.
type Tracker interface {
	Start(ctx context.Context, onChange ChangeFunc)
	Stop()
	Active() bool
}

// ForegroundTracker polls a FocusSource on its own goroutine and reports
// edge-triggered foreground changes.
type ForegroundTracker struct {
	source  domain.FocusSource
	config  TrackerConfig
	metrics *metrics.Metrics
	logger  *zap.Logger
	warn    *rate.Limiter

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewForegroundTracker creates an inactive tracker.
func NewForegroundTracker(source domain.FocusSource, config TrackerConfig, m *metrics.Metrics, logger *zap.Logger) *ForegroundTracker {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	if config.WarnInterval <= 0 {
		config.WarnInterval = DefaultTrackerConfig().WarnInterval
	}
	return &ForegroundTracker{
		source:  source,
		config:  config,
		metrics: m,
		logger:  logger,
		warn:    rate.NewLimiter(rate.Every(config.WarnInterval), 1),
	}
}

// Start begins a polling session. The first successful observation is
// always reported. Start while active is a no-op.
func (t *ForegroundTracker) Start(ctx context.Context, onChange ChangeFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cancel != nil {
		return
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	t.cancel = cancel
	t.done = done

	go func() {
		defer close(done)
		t.poll(sessionCtx, onChange)
	}()
}

// Stop cancels the session and waits for the poll goroutine to exit. No
// onChange call happens after Stop returns. Stop while inactive is a no-op.
func (t *ForegroundTracker) Stop() {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.cancel, t.done = nil, nil
	t.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Active reports whether a session is running.
func (t *ForegroundTracker) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancel != nil
}

func (t *ForegroundTracker) poll(ctx context.Context, onChange ChangeFunc) {
	ticker := time.NewTicker(t.config.PollInterval)
	defer ticker.Stop()

	var last string
	for {
		appID, err := t.source.ForegroundApp(ctx)
		if ctx.Err() != nil {
			return
		}

		switch {
		case err != nil || appID == "":
			t.queryFailed(err)
		case appID != last:
			last = appID
			onChange(ctx, appID)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (t *ForegroundTracker) queryFailed(err error) {
	if t.metrics != nil {
		t.metrics.FocusQueryFailures.Inc()
	}
	if err == nil || errors.Is(err, domain.ErrNoForeground) {
		t.logger.Debug("no foreground application reported")
		return
	}
	if t.warn.Allow() {
		t.logger.Warn("focus query failed", zap.Error(err))
	}
}

// Ensure ForegroundTracker implements Tracker.
var _ Tracker = (*ForegroundTracker)(nil)
