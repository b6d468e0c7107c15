// Package daemon wires the thermal controller into a long-running service.
package daemon

import (
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap/zapcore"

	"github.com/eliteGoblin/focusd/thermal_mon/internal/domain"
	"github.com/eliteGoblin/focusd/thermal_mon/internal/infra"
	"github.com/eliteGoblin/focusd/thermal_mon/internal/profile"
	"github.com/eliteGoblin/focusd/thermal_mon/internal/usecase"
)

// EnvPrefix prefixes every environment override, e.g.
// THERMALMON_TRACKER_POLL_INTERVAL=250ms.
const EnvPrefix = "THERMALMON"

// Config holds all daemon configuration.
type Config struct {
	Tracker    TrackerConfig    `toml:"tracker"`
	Screen     ScreenConfig     `toml:"screen"`
	Controller ControllerConfig `toml:"controller"`
	Store      StoreConfig      `toml:"store"`
	Hardware   HardwareConfig   `toml:"hardware"`
	Logging    LoggingConfig    `toml:"logging"`
	Status     StatusConfig     `toml:"status"`
}

// TrackerConfig controls foreground polling.
type TrackerConfig struct {
	PollInterval time.Duration `toml:"poll_interval" split_words:"true"`
	QueryTimeout time.Duration `toml:"query_timeout" split_words:"true"`
}

// ScreenConfig controls power/keyguard sampling.
type ScreenConfig struct {
	PollInterval time.Duration `toml:"poll_interval" split_words:"true"`
}

// ControllerConfig controls the state machine.
type ControllerConfig struct {
	SuspendOnUserPresent bool `toml:"suspend_on_user_present" split_words:"true"`
	QueueSize            int  `toml:"queue_size" split_words:"true"`
	RestoreOnExit        bool `toml:"restore_on_exit" split_words:"true"`
}

// StoreConfig selects the profile store backend.
type StoreConfig struct {
	Backend string `toml:"backend"`
	Dir     string `toml:"dir"`
}

// HardwareConfig lists the thermal control files.
type HardwareConfig struct {
	ControlPoints []ControlPointConfig `toml:"control_point" ignored:"true"`
}

// ControlPointConfig is one control file. An empty Values table uses the
// built-in profile catalog values.
type ControlPointConfig struct {
	Path   string            `toml:"path"`
	Values map[string]string `toml:"values"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level       string `toml:"level"`
	File        string `toml:"file"`
	Development bool   `toml:"development"`
}

// StatusConfig controls status publication.
type StatusConfig struct {
	Listen            string        `toml:"listen"` // empty disables the HTTP status server
	HeartbeatInterval time.Duration `toml:"heartbeat_interval" split_words:"true"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig(paths *infra.Paths) Config {
	controller := usecase.DefaultControllerConfig()
	return Config{
		Tracker: TrackerConfig{
			PollInterval: usecase.DefaultPollInterval,
			QueryTimeout: infra.DefaultFocusQueryTimeout,
		},
		Screen: ScreenConfig{
			PollInterval: infra.DefaultScreenPollInterval,
		},
		Controller: ControllerConfig{
			SuspendOnUserPresent: controller.SuspendOnUserPresent,
			QueueSize:            controller.QueueSize,
			RestoreOnExit:        controller.RestoreOnExit,
		},
		Store: StoreConfig{
			Backend: infra.BackendEncrypted,
			Dir:     paths.DataDir,
		},
		Hardware: HardwareConfig{
			ControlPoints: []ControlPointConfig{{Path: profile.DefaultControlPath}},
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  paths.LogPath(),
		},
		Status: StatusConfig{
			HeartbeatInterval: 5 * time.Second,
		},
	}
}

// LoadConfig reads paths.ConfigPath(), falling back to defaults, then
// applies THERMALMON_* environment overrides.
func LoadConfig(paths *infra.Paths) (Config, error) {
	return LoadConfigFile(paths, paths.ConfigPath())
}

// LoadConfigFile is LoadConfig with an explicit file path.
func LoadConfigFile(paths *infra.Paths, path string) (Config, error) {
	cfg := DefaultConfig(paths)

	if _, err := os.Stat(path); err == nil {
		// A file that lists control points replaces the default list.
		cfg.Hardware.ControlPoints = nil
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
		if !md.IsDefined("hardware", "control_point") {
			cfg.Hardware = DefaultConfig(paths).Hardware
		}
	} else if !os.IsNotExist(err) {
		return cfg, fmt.Errorf("stat config: %w", err)
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to load environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// SaveConfig writes cfg to path in TOML.
func SaveConfig(cfg Config, path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	return WriteConfig(cfg, f)
}

// WriteConfig encodes cfg as TOML.
func WriteConfig(cfg Config, w io.Writer) error {
	return toml.NewEncoder(w).Encode(cfg)
}

// Validate rejects configurations the daemon cannot run with.
func (c Config) Validate() error {
	if c.Tracker.PollInterval <= 0 {
		return fmt.Errorf("tracker.poll_interval must be positive, got %s", c.Tracker.PollInterval)
	}
	if c.Tracker.QueryTimeout <= 0 {
		return fmt.Errorf("tracker.query_timeout must be positive, got %s", c.Tracker.QueryTimeout)
	}
	if c.Screen.PollInterval <= 0 {
		return fmt.Errorf("screen.poll_interval must be positive, got %s", c.Screen.PollInterval)
	}
	if c.Controller.QueueSize <= 0 {
		return fmt.Errorf("controller.queue_size must be positive, got %d", c.Controller.QueueSize)
	}
	if !slices.Contains(infra.StoreBackends(), c.Store.Backend) {
		return fmt.Errorf("store.backend %q not one of %v", c.Store.Backend, infra.StoreBackends())
	}
	if c.Store.Dir == "" {
		return fmt.Errorf("store.dir must be set")
	}
	if c.Status.HeartbeatInterval <= 0 {
		return fmt.Errorf("status.heartbeat_interval must be positive, got %s", c.Status.HeartbeatInterval)
	}
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if _, err := c.ControlPoints(profile.NewRegistry()); err != nil {
		return err
	}
	return nil
}

// ControlPoints resolves the configured control files against the profile
// catalog.
func (c Config) ControlPoints(registry *profile.Registry) ([]infra.ControlPoint, error) {
	if len(c.Hardware.ControlPoints) == 0 {
		return nil, fmt.Errorf("hardware: at least one control_point is required")
	}

	points := make([]infra.ControlPoint, 0, len(c.Hardware.ControlPoints))
	for i, cp := range c.Hardware.ControlPoints {
		if cp.Path == "" {
			return nil, fmt.Errorf("hardware.control_point[%d]: path is required", i)
		}
		if len(cp.Values) == 0 {
			points = append(points, infra.ControlPoint{Path: cp.Path, Values: registry.ControlValues()})
			continue
		}

		values := make(map[domain.ProfileKind]string, len(cp.Values))
		for name, value := range cp.Values {
			kind, err := domain.ParseProfileKind(name)
			if err != nil {
				return nil, fmt.Errorf("hardware.control_point[%d]: %w", i, err)
			}
			values[kind] = value
		}
		points = append(points, infra.ControlPoint{Path: cp.Path, Values: values})
	}
	return points, nil
}

// TrackerSettings converts to the tracker's configuration.
func (c Config) TrackerSettings() usecase.TrackerConfig {
	tc := usecase.DefaultTrackerConfig()
	tc.PollInterval = c.Tracker.PollInterval
	return tc
}

// ControllerSettings converts to the controller's configuration.
func (c Config) ControllerSettings() usecase.ControllerConfig {
	return usecase.ControllerConfig{
		SuspendOnUserPresent: c.Controller.SuspendOnUserPresent,
		QueueSize:            c.Controller.QueueSize,
		RestoreOnExit:        c.Controller.RestoreOnExit,
	}
}
