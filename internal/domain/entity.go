// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// ProfileKind identifies a thermal/performance operating point.
type ProfileKind string

const (
	// ProfileDefault is the baseline profile. Applications without a stored
	// entry resolve to it and it is forced whenever tracking is suspended.
	ProfileDefault   ProfileKind = "default"
	ProfileBattery   ProfileKind = "battery"
	ProfileBenchmark ProfileKind = "benchmark"
	ProfileGaming    ProfileKind = "gaming"
	ProfileStreaming ProfileKind = "streaming"
)

// AllProfiles returns every known profile kind in display order.
func AllProfiles() []ProfileKind {
	return []ProfileKind{
		ProfileDefault,
		ProfileBattery,
		ProfileBenchmark,
		ProfileGaming,
		ProfileStreaming,
	}
}

// IsValid reports whether p is one of the known profile kinds.
func (p ProfileKind) IsValid() bool {
	for _, k := range AllProfiles() {
		if p == k {
			return true
		}
	}
	return false
}

func (p ProfileKind) String() string {
	return string(p)
}

// ParseProfileKind converts user input (case-insensitive) to a ProfileKind.
func ParseProfileKind(s string) (ProfileKind, error) {
	p := ProfileKind(strings.ToLower(strings.TrimSpace(s)))
	if !p.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownProfile, s)
	}
	return p, nil
}

// ApplicationProfileEntry is one persisted per-application selection.
// At most one entry exists per PackageID.
type ApplicationProfileEntry struct {
	PackageID string
	Profile   ProfileKind
}

// ScreenEvent is a discrete power/lock-state signal from the platform.
type ScreenEvent string

const (
	ScreenOn    ScreenEvent = "screen_on"
	ScreenOff   ScreenEvent = "screen_off"
	UserPresent ScreenEvent = "user_present"
)

// ControllerState is the thermal controller's state machine position.
type ControllerState string

const (
	StateSuspended ControllerState = "suspended"
	StateTracking  ControllerState = "tracking"
)

// ForegroundState is the controller-owned view of what is frontmost and what
// the hardware was last set to. An empty CurrentAppID means no observation.
type ForegroundState struct {
	CurrentAppID       string
	LastAppliedProfile ProfileKind
}

// ControllerSnapshot is a read-only copy of controller state for reporting.
type ControllerSnapshot struct {
	State          ControllerState
	Foreground     ForegroundState
	TrackingActive bool
	SessionID      string
	WritePending   bool // last hardware write failed; next transition writes again
	UpdatedAt      time.Time
}

// Daemon represents the running thermalmon daemon process.
type Daemon struct {
	PID          int
	StartedAt    time.Time
	AppVersion   string
	StoreBackend string
}

// StatusEntry is the daemon status snapshot persisted for the CLI.
type StatusEntry struct {
	Version            int    `json:"version"`
	PID                int    `json:"pid"`
	ProcessName        string `json:"process_name,omitempty"`
	StartedAt          int64  `json:"started_at"`
	LastHeartbeat      int64  `json:"last_heartbeat"`
	AppVersion         string `json:"app_version,omitempty"`
	StoreBackend       string `json:"store_backend,omitempty"`
	State              string `json:"state"`
	CurrentAppID       string `json:"current_app,omitempty"`
	LastAppliedProfile string `json:"last_applied_profile"`
	SessionID          string `json:"session_id,omitempty"`
	WritePending       bool   `json:"write_pending,omitempty"`
}
