package domain

import (
	"context"
	"iter"
)

// ProfileStore persists the per-application profile selection.
// Implementations: SQLCipher (default), pure-Go SQLite, JSON file.
type ProfileStore interface {
	// Get returns the stored profile or ProfileDefault when no entry exists.
	// It never fails; read errors degrade to ProfileDefault.
	Get(packageID string) ProfileKind

	// Set durably records the mapping before returning. On failure the
	// previous mapping is left unchanged and a *StoreError is returned.
	Set(packageID string, profile ProfileKind) error

	// Entries lazily yields every stored mapping. Each range restarts the scan.
	Entries() iter.Seq2[string, ProfileKind]

	// Close releases resources (e.g., database connection).
	Close() error
}

// HardwareProfileWriter applies a profile to the thermal control surface.
// This is the only component that touches hardware.
type HardwareProfileWriter interface {
	// Apply writes the control value(s) for profile. Every call issues a
	// write, even if the value is unchanged. Failures are *HwError.
	Apply(profile ProfileKind) error
}

// FocusSource answers "which application is in the foreground".
// Errors are transient; callers retry on the next poll.
type FocusSource interface {
	ForegroundApp(ctx context.Context) (string, error)
}

// ScreenEventSource emits screen power and lock-state signals.
// The channel is closed once ctx is done.
type ScreenEventSource interface {
	Events(ctx context.Context) <-chan ScreenEvent
}

// ProcessManager handles OS process operations.
// Implementation: uses gopsutil for cross-platform support.
type ProcessManager interface {
	// IsRunning checks if a PID exists and is running.
	IsRunning(pid int) bool

	// Name returns the executable name of a running process.
	Name(pid int) (string, error)

	// GetCurrentPID returns the current process PID.
	GetCurrentPID() int
}

// StatusRegistry persists the daemon status snapshot for the CLI.
// Implementation: hidden JSON file in the data directory.
type StatusRegistry interface {
	// Register records the daemon's PID and start time.
	Register(daemon Daemon) error

	// Publish stores the latest controller snapshot and heartbeat.
	Publish(snapshot ControllerSnapshot) error

	// Read returns the persisted entry, or nil if the daemon never ran.
	Read() (*StatusEntry, error)

	// IsDaemonAlive checks whether the registered PID is still running.
	IsDaemonAlive() (bool, error)

	// Clear removes the status file.
	Clear() error

	// Path returns the status file path (for tests).
	Path() string
}

// KeyProvider abstracts the source of encryption keys.
type KeyProvider interface {
	// GetKey returns the encryption key bytes.
	GetKey() ([]byte, error)

	// StoreKey persists a new encryption key.
	StoreKey(key []byte) error

	// KeyExists checks if a key has been generated.
	KeyExists() bool
}
