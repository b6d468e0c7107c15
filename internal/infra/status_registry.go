package infra

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/eliteGoblin/focusd/thermal_mon/internal/domain"
)

const statusVersion = 1

// FileStatusRegistry implements domain.StatusRegistry using a hidden JSON file.
type FileStatusRegistry struct {
	path           string
	processManager domain.ProcessManager
}

// NewFileStatusRegistry creates a registry at path.
func NewFileStatusRegistry(path string, pm domain.ProcessManager) *FileStatusRegistry {
	return &FileStatusRegistry{
		path:           path,
		processManager: pm,
	}
}

// Path returns the status file path.
func (r *FileStatusRegistry) Path() string {
	return r.path
}

// Register records the daemon identity and resets the snapshot fields.
func (r *FileStatusRegistry) Register(daemon domain.Daemon) error {
	// Best effort; an empty name only disables the PID-reuse check.
	name, _ := r.processManager.Name(daemon.PID)

	return r.update(func(entry *domain.StatusEntry) {
		*entry = domain.StatusEntry{
			Version:            statusVersion,
			PID:                daemon.PID,
			ProcessName:        name,
			StartedAt:          daemon.StartedAt.Unix(),
			LastHeartbeat:      time.Now().Unix(),
			AppVersion:         daemon.AppVersion,
			StoreBackend:       daemon.StoreBackend,
			State:              string(domain.StateSuspended),
			LastAppliedProfile: string(domain.ProfileDefault),
		}
	})
}

// Publish stores the latest controller snapshot and refreshes the heartbeat.
func (r *FileStatusRegistry) Publish(snap domain.ControllerSnapshot) error {
	return r.update(func(entry *domain.StatusEntry) {
		entry.LastHeartbeat = time.Now().Unix()
		entry.State = string(snap.State)
		entry.CurrentAppID = snap.Foreground.CurrentAppID
		entry.LastAppliedProfile = string(snap.Foreground.LastAppliedProfile)
		entry.SessionID = snap.SessionID
		entry.WritePending = snap.WritePending
	})
}

// Read returns the persisted entry, or nil if no status file exists.
func (r *FileStatusRegistry) Read() (*domain.StatusEntry, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var entry domain.StatusEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("parse status file: %w", err)
	}
	return &entry, nil
}

// IsDaemonAlive checks whether the registered PID is still running and,
// when a process name was recorded, still belongs to the same executable.
func (r *FileStatusRegistry) IsDaemonAlive() (bool, error) {
	entry, err := r.Read()
	if err != nil {
		return false, err
	}
	if entry == nil || entry.PID == 0 {
		return false, nil
	}
	if !r.processManager.IsRunning(entry.PID) {
		return false, nil
	}
	if entry.ProcessName == "" {
		return true, nil
	}
	name, err := r.processManager.Name(entry.PID)
	if err != nil {
		return false, nil
	}
	return name == entry.ProcessName, nil
}

// Clear removes the status file. A missing file is not an error.
func (r *FileStatusRegistry) Clear() error {
	if err := os.Remove(r.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// update runs fn on the current entry under an exclusive flock so the
// daemon and a concurrent `start` never interleave read-modify-write.
func (r *FileStatusRegistry) update(fn func(entry *domain.StatusEntry)) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0700); err != nil {
		return fmt.Errorf("failed to create status directory: %w", err)
	}
	lockFile, err := os.OpenFile(r.path+".lock", os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}
	defer lockFile.Close()

	if err := syscall.Flock(int(lockFile.Fd()), syscall.LOCK_EX); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer func() { _ = syscall.Flock(int(lockFile.Fd()), syscall.LOCK_UN) }()

	entry, err := r.Read()
	if err != nil || entry == nil {
		entry = &domain.StatusEntry{Version: statusVersion}
	}
	fn(entry)

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return writeFileAtomic(r.path, data, 0600)
}

// Ensure FileStatusRegistry implements domain.StatusRegistry.
var _ domain.StatusRegistry = (*FileStatusRegistry)(nil)
