package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/thermal_mon/internal/domain"
	"github.com/eliteGoblin/focusd/thermal_mon/internal/metrics"
)

// ControllerConfig holds thermal controller configuration.
type ControllerConfig struct {
	SuspendOnUserPresent bool // Whether unlock suspends tracking
	QueueSize            int  // Capacity of the event channel
	RestoreOnExit        bool // Apply Default when Run returns
}

// DefaultControllerConfig returns default controller configuration.
func DefaultControllerConfig() ControllerConfig {
	return ControllerConfig{
		SuspendOnUserPresent: true,
		QueueSize:            16,
		RestoreOnExit:        true,
	}
}

type eventKind int

const (
	eventScreen eventKind = iota
	eventForeground
	eventFlush
)

type controllerEvent struct {
	kind       eventKind
	screen     domain.ScreenEvent
	appID      string
	generation uint64
	ack        chan struct{}
}

// ThermalController owns the Suspended/Tracking state machine. All state
// below the queue is touched only by the Run goroutine.
type ThermalController struct {
	config  ControllerConfig
	store   domain.ProfileStore
	writer  domain.HardwareProfileWriter
	tracker Tracker
	metrics *metrics.Metrics
	logger  *zap.Logger

	events  chan controllerEvent
	done    chan struct{}
	runOnce sync.Once

	// loop-owned
	runCtx       context.Context
	state        domain.ControllerState
	foreground   domain.ForegroundState
	generation   uint64
	sessionID    string
	writePending bool
	onSnapshot   func(domain.ControllerSnapshot)

	snapMu   sync.RWMutex
	snapshot domain.ControllerSnapshot
}

// NewThermalController creates a controller in the Suspended state.
func NewThermalController(
	config ControllerConfig,
	store domain.ProfileStore,
	writer domain.HardwareProfileWriter,
	tracker Tracker,
	m *metrics.Metrics,
	logger *zap.Logger,
) *ThermalController {
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultControllerConfig().QueueSize
	}
	if m == nil {
		m = metrics.NewUnregistered()
	}
	c := &ThermalController{
		config:  config,
		store:   store,
		writer:  writer,
		tracker: tracker,
		metrics: m,
		logger:  logger,
		events:  make(chan controllerEvent, config.QueueSize),
		done:    make(chan struct{}),
		state:   domain.StateSuspended,
		foreground: domain.ForegroundState{
			LastAppliedProfile: domain.ProfileDefault,
		},
	}
	c.snapshot = c.buildSnapshot()
	return c
}

// SetSnapshotListener registers fn to receive a snapshot after every
// processed event. It runs on the controller goroutine and must not block.
// Call before Run.
func (c *ThermalController) SetSnapshotListener(fn func(domain.ControllerSnapshot)) {
	c.onSnapshot = fn
}

// Run processes events until ctx is done. It may only be called once.
func (c *ThermalController) Run(ctx context.Context) error {
	started := false
	c.runOnce.Do(func() { started = true })
	if !started {
		return domain.ErrControllerStopped
	}
	defer close(c.done)

	c.runCtx = ctx
	c.logger.Info("thermal controller started",
		zap.String("state", string(c.state)),
		zap.Bool("suspend_on_user_present", c.config.SuspendOnUserPresent))
	c.publish()

	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return ctx.Err()
		case ev := <-c.events:
			c.handle(ev)
			c.publish()
			if ev.ack != nil {
				close(ev.ack)
			}
		}
	}
}

// ScreenOn reports that the display turned on.
func (c *ThermalController) ScreenOn(ctx context.Context) error {
	return c.HandleScreenEvent(ctx, domain.ScreenOn)
}

// ScreenOff reports that the display turned off.
func (c *ThermalController) ScreenOff(ctx context.Context) error {
	return c.HandleScreenEvent(ctx, domain.ScreenOff)
}

// UserPresent reports that the user unlocked the device.
func (c *ThermalController) UserPresent(ctx context.Context) error {
	return c.HandleScreenEvent(ctx, domain.UserPresent)
}

// HandleScreenEvent queues ev and waits until the controller processed it.
func (c *ThermalController) HandleScreenEvent(ctx context.Context, ev domain.ScreenEvent) error {
	return c.submit(ctx, controllerEvent{kind: eventScreen, screen: ev})
}

// Snapshot returns a copy of the latest published state.
func (c *ThermalController) Snapshot() domain.ControllerSnapshot {
	c.snapMu.RLock()
	defer c.snapMu.RUnlock()
	return c.snapshot
}

// flush waits until every event queued before it has been processed.
func (c *ThermalController) flush(ctx context.Context) error {
	return c.submit(ctx, controllerEvent{kind: eventFlush})
}

func (c *ThermalController) submit(ctx context.Context, ev controllerEvent) error {
	ev.ack = make(chan struct{})

	select {
	case c.events <- ev:
	case <-c.done:
		return domain.ErrControllerStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-ev.ack:
		return nil
	case <-c.done:
		return domain.ErrControllerStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *ThermalController) handle(ev controllerEvent) {
	switch ev.kind {
	case eventScreen:
		c.metrics.ScreenEvents.WithLabelValues(string(ev.screen)).Inc()
		c.handleScreen(ev.screen)
	case eventForeground:
		c.handleForeground(ev.generation, ev.appID)
	case eventFlush:
	}
}

func (c *ThermalController) handleScreen(ev domain.ScreenEvent) {
	switch ev {
	case domain.ScreenOn:
		if c.state == domain.StateTracking {
			c.logger.Debug("screen on while tracking, ignoring")
			return
		}
		c.startTracking()

	case domain.ScreenOff:
		c.suspend(ev)

	case domain.UserPresent:
		if !c.config.SuspendOnUserPresent {
			c.logger.Debug("user present, tracking continues")
			return
		}
		c.suspend(ev)

	default:
		c.logger.Warn("unknown screen event", zap.String("event", string(ev)))
	}
}

// startTracking forces the baseline and opens a new tracking session.
func (c *ThermalController) startTracking() {
	c.applyBaseline()

	c.generation++
	c.sessionID = uuid.NewString()
	c.state = domain.StateTracking
	c.metrics.TrackingActive.Set(1)

	gen := c.generation
	c.tracker.Start(c.runCtx, func(ctx context.Context, appID string) {
		select {
		case c.events <- controllerEvent{kind: eventForeground, appID: appID, generation: gen}:
		case <-ctx.Done():
		}
	})

	c.logger.Info("tracking started", zap.String("session_id", c.sessionID))
}

// suspend stops tracking and returns the hardware to Default. While already
// suspended only a failed write is retried.
func (c *ThermalController) suspend(reason domain.ScreenEvent) {
	if c.state == domain.StateSuspended {
		if c.writePending {
			c.logger.Info("retrying baseline profile", zap.String("reason", string(reason)))
			c.applyBaseline()
		}
		return
	}

	c.tracker.Stop()
	c.generation++

	sessionID := c.sessionID
	c.applyBaseline()
	c.foreground.CurrentAppID = ""
	c.sessionID = ""
	c.state = domain.StateSuspended
	c.metrics.TrackingActive.Set(0)

	c.logger.Info("tracking suspended",
		zap.String("reason", string(reason)),
		zap.String("session_id", sessionID))
}

// applyBaseline writes Default unconditionally. lastApplied becomes Default
// either way; a failure is remembered so the next transition writes again.
func (c *ThermalController) applyBaseline() {
	err := c.apply(domain.ProfileDefault)
	c.foreground.LastAppliedProfile = domain.ProfileDefault
	c.writePending = err != nil
}

func (c *ThermalController) handleForeground(generation uint64, appID string) {
	if generation != c.generation || c.state != domain.StateTracking {
		c.logger.Debug("dropping stale foreground change",
			zap.String("package", appID),
			zap.Uint64("generation", generation))
		return
	}
	if appID == c.foreground.CurrentAppID {
		return
	}
	c.metrics.ForegroundChanges.Inc()

	// A failed write may have reached some control points, so the hardware
	// no longer matches LastAppliedProfile until a write succeeds.
	wanted := c.store.Get(appID)
	if wanted != c.foreground.LastAppliedProfile || c.writePending {
		if err := c.apply(wanted); err != nil {
			c.writePending = true
		} else {
			c.foreground.LastAppliedProfile = wanted
			c.writePending = false
		}
	}
	c.foreground.CurrentAppID = appID

	c.logger.Debug("foreground changed",
		zap.String("package", appID),
		zap.String("profile", string(c.foreground.LastAppliedProfile)),
		zap.String("session_id", c.sessionID))
}

// apply performs one hardware write. Failures are logged and absorbed.
func (c *ThermalController) apply(profile domain.ProfileKind) error {
	start := time.Now()
	err := c.writer.Apply(profile)
	c.metrics.ApplyDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		c.metrics.ProfileApplies.WithLabelValues(string(profile), metrics.ResultFailed).Inc()
		c.logger.Warn("failed to apply thermal profile",
			zap.String("profile", string(profile)),
			zap.String("session_id", c.sessionID),
			zap.Error(err))
		return err
	}

	c.metrics.ProfileApplies.WithLabelValues(string(profile), metrics.ResultOK).Inc()
	c.logger.Info("applied thermal profile",
		zap.String("profile", string(profile)),
		zap.String("package", c.foreground.CurrentAppID),
		zap.String("session_id", c.sessionID))
	return nil
}

func (c *ThermalController) shutdown() {
	c.tracker.Stop()
	c.generation++
	c.metrics.TrackingActive.Set(0)

	if c.config.RestoreOnExit && (c.foreground.LastAppliedProfile != domain.ProfileDefault || c.writePending) {
		c.applyBaseline()
	}
	c.foreground.CurrentAppID = ""
	c.sessionID = ""
	c.state = domain.StateSuspended
	c.publish()

	c.logger.Info("thermal controller stopped")
}

func (c *ThermalController) buildSnapshot() domain.ControllerSnapshot {
	return domain.ControllerSnapshot{
		State:          c.state,
		Foreground:     c.foreground,
		TrackingActive: c.state == domain.StateTracking,
		SessionID:      c.sessionID,
		WritePending:   c.writePending,
		UpdatedAt:      time.Now(),
	}
}

func (c *ThermalController) publish() {
	snap := c.buildSnapshot()

	c.snapMu.Lock()
	c.snapshot = snap
	c.snapMu.Unlock()

	if c.onSnapshot != nil {
		c.onSnapshot(snap)
	}
}
