package daemon

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/thermal_mon/internal/domain"
	"github.com/eliteGoblin/focusd/thermal_mon/internal/infra"
	"github.com/eliteGoblin/focusd/thermal_mon/internal/metrics"
	"github.com/eliteGoblin/focusd/thermal_mon/internal/profile"
	"github.com/eliteGoblin/focusd/thermal_mon/internal/usecase"
)

// Controller is the part of the thermal controller the service drives.
type Controller interface {
	Run(ctx context.Context) error
	HandleScreenEvent(ctx context.Context, ev domain.ScreenEvent) error
	Snapshot() domain.ControllerSnapshot
	SetSnapshotListener(fn func(domain.ControllerSnapshot))
}

// Service is the thermalmon daemon. It pumps screen signals into the
// controller, keeps the status file current and optionally serves
// status over HTTP.
type Service struct {
	config     Config
	controller Controller
	screens    domain.ScreenEventSource
	registry   domain.StatusRegistry
	gatherer   prometheus.Gatherer
	logger     *zap.Logger
	daemon     domain.Daemon

	// latest snapshot waiting to be written; capacity 1, newest wins
	pending chan domain.ControllerSnapshot
}

// NewService creates a daemon service from already-built components.
func NewService(
	config Config,
	controller Controller,
	screens domain.ScreenEventSource,
	registry domain.StatusRegistry,
	gatherer prometheus.Gatherer,
	daemon domain.Daemon,
	logger *zap.Logger,
) *Service {
	s := &Service{
		config:     config,
		controller: controller,
		screens:    screens,
		registry:   registry,
		gatherer:   gatherer,
		logger:     logger,
		daemon:     daemon,
		pending:    make(chan domain.ControllerSnapshot, 1),
	}
	controller.SetSnapshotListener(s.offer)
	return s
}

// Run starts the daemon. This blocks until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	if err := s.registry.Register(s.daemon); err != nil {
		s.logger.Error("failed to register daemon", zap.Error(err))
		return err
	}

	s.logger.Info("thermalmon daemon started",
		zap.Int("pid", s.daemon.PID),
		zap.String("version", s.daemon.AppVersion),
		zap.String("store_backend", s.daemon.StoreBackend))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	var errMu sync.Mutex
	var runErr error
	fail := func(name string, err error) {
		if err == nil || errors.Is(err, context.Canceled) {
			return
		}
		errMu.Lock()
		runErr = multierr.Append(runErr, fmt.Errorf("%s: %w", name, err))
		errMu.Unlock()
		cancel()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		fail("controller", s.controller.Run(ctx))
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.pumpScreenEvents(ctx)
	}()

	if s.config.Status.Listen != "" {
		server := NewStatusServer(s.controller.Snapshot, s.daemon, s.gatherer, s.logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			fail("status server", server.Serve(ctx, s.config.Status.Listen))
		}()
	}

	s.publishLoop(ctx)
	wg.Wait()

	// The controller published its final state on the way out.
	s.flushPending()
	s.logger.Info("thermalmon daemon stopped")
	return runErr
}

// pumpScreenEvents forwards platform screen signals to the controller.
func (s *Service) pumpScreenEvents(ctx context.Context) {
	for ev := range s.screens.Events(ctx) {
		s.logger.Debug("screen event", zap.String("event", string(ev)))
		if err := s.controller.HandleScreenEvent(ctx, ev); err != nil {
			if ctx.Err() == nil {
				s.logger.Warn("screen event not delivered",
					zap.String("event", string(ev)),
					zap.Error(err))
			}
			return
		}
	}
}

// publishLoop writes snapshots as they change and refreshes the heartbeat.
func (s *Service) publishLoop(ctx context.Context) {
	heartbeat := time.NewTicker(s.config.Status.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-s.pending:
			s.publish(snap)
		case <-heartbeat.C:
			s.publish(s.controller.Snapshot())
		}
	}
}

// offer runs on the controller goroutine and must not block.
func (s *Service) offer(snap domain.ControllerSnapshot) {
	for {
		select {
		case s.pending <- snap:
			return
		default:
		}
		select {
		case <-s.pending:
		default:
		}
	}
}

func (s *Service) flushPending() {
	select {
	case snap := <-s.pending:
		s.publish(snap)
	default:
	}
}

func (s *Service) publish(snap domain.ControllerSnapshot) {
	if err := s.registry.Publish(snap); err != nil {
		s.logger.Warn("failed to publish status", zap.Error(err))
	}
}

// Components are the concrete pieces Build assembles. Close releases them.
type Components struct {
	Service    *Service
	Controller *usecase.ThermalController
	Store      domain.ProfileStore
	Registry   *infra.FileStatusRegistry
	Metrics    *metrics.Metrics
}

// Close releases the profile store.
func (c *Components) Close() error {
	return c.Store.Close()
}

// Build constructs the production daemon from cfg.
func Build(cfg Config, paths *infra.Paths, daemon domain.Daemon, logger *zap.Logger) (*Components, error) {
	store, err := infra.OpenProfileStore(cfg.Store.Backend, cfg.Store.Dir, logger)
	if err != nil {
		return nil, fmt.Errorf("open profile store: %w", err)
	}

	points, err := cfg.ControlPoints(profile.NewRegistry())
	if err != nil {
		store.Close()
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	writer := infra.NewSysfsWriter(points, logger)
	focus := infra.NewDumpsysFocusSource(cfg.Tracker.QueryTimeout)
	tracker := usecase.NewForegroundTracker(focus, cfg.TrackerSettings(), m, logger)
	controller := usecase.NewThermalController(cfg.ControllerSettings(), store, writer, tracker, m, logger)
	screens := infra.NewDumpsysScreenSource(cfg.Screen.PollInterval, logger)
	statusRegistry := infra.NewFileStatusRegistry(paths.StatusPath(), infra.NewProcessManager())

	daemon.StoreBackend = cfg.Store.Backend
	svc := NewService(cfg, controller, screens, statusRegistry, reg, daemon, logger)

	return &Components{
		Service:    svc,
		Controller: controller,
		Store:      store,
		Registry:   statusRegistry,
		Metrics:    m,
	}, nil
}
