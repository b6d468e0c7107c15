package infra

import (
	"os"
	"os/user"
	"path/filepath"
)

// RunMode represents how the daemon was launched.
type RunMode string

const (
	// RunModeSystem runs as root with vendor data storage.
	RunModeSystem RunMode = "system"
	// RunModeUser runs unprivileged with data under the home directory.
	RunModeUser RunMode = "user"
)

const (
	// HomeEnv overrides the data directory for every run mode.
	HomeEnv = "THERMALMON_HOME"

	systemDataDir  = "/data/vendor/thermalmon"
	userDataSubdir = ".thermalmon"

	configFileName = "config.toml"
	logFileName    = "thermalmon.log"
	statusFileName = ".status.json"
)

// Paths holds the data-directory layout for the current run mode.
type Paths struct {
	Mode    RunMode
	DataDir string
	IsRoot  bool
}

// DetectPaths determines the run mode from the effective UID and resolves
// the data directory. THERMALMON_HOME wins over both defaults.
func DetectPaths() *Paths {
	isRoot := os.Geteuid() == 0

	p := &Paths{Mode: RunModeUser, IsRoot: isRoot}
	if isRoot {
		p.Mode = RunModeSystem
		p.DataDir = systemDataDir
	} else {
		p.DataDir = filepath.Join(GetRealUserHome(), userDataSubdir)
	}
	if dir := os.Getenv(HomeEnv); dir != "" {
		p.DataDir = dir
	}
	return p
}

// PathsFor returns a layout rooted at dataDir (for testing and --data-dir).
func PathsFor(dataDir string) *Paths {
	isRoot := os.Geteuid() == 0
	mode := RunModeUser
	if isRoot {
		mode = RunModeSystem
	}
	return &Paths{Mode: mode, DataDir: dataDir, IsRoot: isRoot}
}

// ConfigPath returns the TOML config location.
func (p *Paths) ConfigPath() string {
	return filepath.Join(p.DataDir, configFileName)
}

// LogPath returns the default daemon log file.
func (p *Paths) LogPath() string {
	return filepath.Join(p.DataDir, logFileName)
}

// StatusPath returns the status snapshot file.
func (p *Paths) StatusPath() string {
	return filepath.Join(p.DataDir, statusFileName)
}

// String returns a human-readable description of the mode.
func (m RunMode) String() string {
	switch m {
	case RunModeSystem:
		return "system (root)"
	case RunModeUser:
		return "user (non-root)"
	default:
		return "unknown"
	}
}

// GetRealUserHome returns the invoking user's home directory, even under sudo.
func GetRealUserHome() string {
	if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" {
		if u, err := user.Lookup(sudoUser); err == nil {
			return u.HomeDir
		}
	}
	home, _ := os.UserHomeDir()
	return home
}
