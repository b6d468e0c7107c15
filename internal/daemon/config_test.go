package daemon

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/focusd/thermal_mon/internal/domain"
	"github.com/eliteGoblin/focusd/thermal_mon/internal/infra"
	"github.com/eliteGoblin/focusd/thermal_mon/internal/profile"
)

func writeConfig(t *testing.T, dir, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(body), 0600))
}

func TestDefaultConfig(t *testing.T) {
	paths := infra.PathsFor(t.TempDir())
	cfg := DefaultConfig(paths)

	assert.Equal(t, 500*time.Millisecond, cfg.Tracker.PollInterval)
	assert.Equal(t, 2*time.Second, cfg.Tracker.QueryTimeout)
	assert.Equal(t, time.Second, cfg.Screen.PollInterval)
	assert.True(t, cfg.Controller.SuspendOnUserPresent)
	assert.Equal(t, infra.BackendEncrypted, cfg.Store.Backend)
	assert.Equal(t, paths.DataDir, cfg.Store.Dir)
	assert.Equal(t, paths.LogPath(), cfg.Logging.File)
	assert.Empty(t, cfg.Status.Listen, "status server disabled by default")
	require.NoError(t, cfg.Validate())

	points, err := cfg.ControlPoints(profile.NewRegistry())
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, profile.DefaultControlPath, points[0].Path)
	assert.Equal(t, "9", points[0].Values[domain.ProfileGaming])
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	paths := infra.PathsFor(t.TempDir())

	cfg, err := LoadConfig(paths)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(paths), cfg)
}

func TestLoadConfig_File(t *testing.T) {
	dir := t.TempDir()
	paths := infra.PathsFor(dir)
	writeConfig(t, dir, `
[tracker]
poll_interval = "250ms"

[controller]
suspend_on_user_present = false

[store]
backend = "sqlite"

[[hardware.control_point]]
path = "/sys/class/thermal/thermal_message/sconfig"

[[hardware.control_point]]
path = "/sys/devices/platform/boost"
[hardware.control_point.values]
gaming = "1"
default = "0"

[status]
listen = "127.0.0.1:9107"
`)

	cfg, err := LoadConfig(paths)
	require.NoError(t, err)

	assert.Equal(t, 250*time.Millisecond, cfg.Tracker.PollInterval)
	assert.Equal(t, 2*time.Second, cfg.Tracker.QueryTimeout, "unset keys keep defaults")
	assert.False(t, cfg.Controller.SuspendOnUserPresent)
	assert.Equal(t, infra.BackendSQLite, cfg.Store.Backend)
	assert.Equal(t, "127.0.0.1:9107", cfg.Status.Listen)

	points, err := cfg.ControlPoints(profile.NewRegistry())
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Len(t, points[0].Values, len(domain.AllProfiles()))
	assert.Equal(t, map[domain.ProfileKind]string{
		domain.ProfileGaming:  "1",
		domain.ProfileDefault: "0",
	}, points[1].Values)
}

func TestLoadConfig_FileWithoutHardwareKeepsDefaultControlPoint(t *testing.T) {
	dir := t.TempDir()
	paths := infra.PathsFor(dir)
	writeConfig(t, dir, "[logging]\nlevel = \"debug\"\n")

	cfg, err := LoadConfig(paths)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
	require.Len(t, cfg.Hardware.ControlPoints, 1)
	assert.Equal(t, profile.DefaultControlPath, cfg.Hardware.ControlPoints[0].Path)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	paths := infra.PathsFor(dir)
	writeConfig(t, dir, "[store]\nbackend = \"sqlite\"\n")

	t.Setenv("THERMALMON_STORE_BACKEND", "file")
	t.Setenv("THERMALMON_TRACKER_POLL_INTERVAL", "1s")
	t.Setenv("THERMALMON_CONTROLLER_SUSPEND_ON_USER_PRESENT", "false")
	t.Setenv("THERMALMON_LOGGING_LEVEL", "warn")

	cfg, err := LoadConfig(paths)
	require.NoError(t, err)
	assert.Equal(t, infra.BackendFile, cfg.Store.Backend, "env wins over file")
	assert.Equal(t, time.Second, cfg.Tracker.PollInterval)
	assert.False(t, cfg.Controller.SuspendOnUserPresent)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad toml", "[tracker\npoll_interval = 1"},
		{"unknown backend", "[store]\nbackend = \"leveldb\"\n"},
		{"zero poll", "[tracker]\npoll_interval = \"0s\"\n"},
		{"unknown profile value", "[[hardware.control_point]]\npath = \"/x\"\n[hardware.control_point.values]\nturbo = \"3\"\n"},
		{"control point without path", "[[hardware.control_point]]\npath = \"\"\n"},
		{"bad log level", "[logging]\nlevel = \"chatty\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeConfig(t, dir, tt.body)

			_, err := LoadConfig(infra.PathsFor(dir))
			assert.Error(t, err)
		})
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	paths := infra.PathsFor(dir)

	cfg := DefaultConfig(paths)
	cfg.Tracker.PollInterval = 750 * time.Millisecond
	cfg.Store.Backend = infra.BackendFile
	require.NoError(t, SaveConfig(cfg, paths.ConfigPath()))

	loaded, err := LoadConfig(paths)
	require.NoError(t, err)
	assert.Equal(t, 750*time.Millisecond, loaded.Tracker.PollInterval)
	assert.Equal(t, infra.BackendFile, loaded.Store.Backend)
}

func TestConfig_Settings(t *testing.T) {
	cfg := DefaultConfig(infra.PathsFor(t.TempDir()))
	cfg.Tracker.PollInterval = time.Second
	cfg.Controller.QueueSize = 4

	assert.Equal(t, time.Second, cfg.TrackerSettings().PollInterval)
	assert.Equal(t, 4, cfg.ControllerSettings().QueueSize)
	assert.True(t, cfg.ControllerSettings().SuspendOnUserPresent)
}
