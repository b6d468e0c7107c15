package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/eliteGoblin/focusd/thermal_mon/internal/domain"
	"github.com/eliteGoblin/focusd/thermal_mon/internal/infra"
)

// StartDaemon spawns the daemon from the running executable.
func StartDaemon(dataDir string) (int, error) {
	executable, err := os.Executable()
	if err != nil {
		return 0, err
	}
	return StartDaemonWithPath(executable, dataDir)
}

// StartDaemonWithPath spawns `<binaryPath> daemon` detached from the
// caller's session. The daemon inherits THERMALMON_HOME pointing at dataDir.
func StartDaemonWithPath(binaryPath, dataDir string) (int, error) {
	cmd := daemonCommand(binaryPath, dataDir)
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("spawn daemon: %w", err)
	}
	pid := cmd.Process.Pid
	// The child is reparented; nothing waits on it here.
	_ = cmd.Process.Release()
	return pid, nil
}

func daemonCommand(binaryPath, dataDir string) *exec.Cmd {
	cmd := exec.Command(binaryPath, "daemon")
	cmd.Env = append(os.Environ(), infra.HomeEnv+"="+dataDir)

	// Detach from parent process
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	return cmd
}

// ClearStale removes the status left behind by a daemon that is no longer
// running and returns its PID. A live daemon's status is left alone.
func ClearStale(registry domain.StatusRegistry) (int, error) {
	pid, alive, err := RunningDaemon(registry)
	if err != nil || pid == 0 || alive {
		return 0, err
	}
	if err := registry.Clear(); err != nil {
		return 0, fmt.Errorf("clear stale status: %w", err)
	}
	return pid, nil
}

// RunningDaemon returns the registered daemon PID if it is alive.
func RunningDaemon(registry domain.StatusRegistry) (int, bool, error) {
	entry, err := registry.Read()
	if err != nil || entry == nil {
		return 0, false, err
	}
	alive, err := registry.IsDaemonAlive()
	if err != nil {
		return 0, false, err
	}
	return entry.PID, alive, nil
}
