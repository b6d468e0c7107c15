package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownProfile   = errors.New("unknown thermal profile")
	ErrInvalidPackageID = errors.New("package id must not be empty")

	// Store errors
	ErrStoreIO = errors.New("profile store I/O failure")

	// Control surface errors
	ErrPermissionDenied  = errors.New("control surface permission denied")
	ErrDeviceUnavailable = errors.New("control surface unavailable")
	ErrHardwareIO        = errors.New("control surface I/O failure")

	// Focus errors are transient; trackers skip the tick.
	ErrNoForeground = errors.New("no foreground application reported")

	ErrControllerStopped = errors.New("thermal controller is not running")
)

// StoreErrorKind classifies a ProfileStore failure.
type StoreErrorKind int

const (
	StoreIOFailure StoreErrorKind = iota
)

func (k StoreErrorKind) String() string {
	switch k {
	case StoreIOFailure:
		return "io_failure"
	default:
		return "unknown"
	}
}

// StoreError is returned by ProfileStore.Set when the mapping could not be
// durably recorded. The previous mapping is retained.
type StoreError struct {
	Kind      StoreErrorKind
	Op        string
	PackageID string
	Err       error
}

func (e *StoreError) Error() string {
	if e.PackageID != "" {
		return fmt.Sprintf("profile store %s %q: %s: %v", e.Op, e.PackageID, e.Kind, e.Err)
	}
	return fmt.Sprintf("profile store %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Is matches the sentinel for the error kind.
func (e *StoreError) Is(target error) bool {
	return target == ErrStoreIO && e.Kind == StoreIOFailure
}

// NewStoreIOError wraps err as a StoreIOFailure.
func NewStoreIOError(op, packageID string, err error) *StoreError {
	return &StoreError{Kind: StoreIOFailure, Op: op, PackageID: packageID, Err: err}
}

// HwErrorKind classifies a control surface write failure.
type HwErrorKind int

const (
	HwPermissionDenied HwErrorKind = iota
	HwDeviceUnavailable
	HwIOFailure
)

func (k HwErrorKind) String() string {
	switch k {
	case HwPermissionDenied:
		return "permission_denied"
	case HwDeviceUnavailable:
		return "device_unavailable"
	case HwIOFailure:
		return "io_failure"
	default:
		return "unknown"
	}
}

// HwError is returned by HardwareProfileWriter.Apply for one control point.
type HwError struct {
	Kind    HwErrorKind
	Path    string
	Profile ProfileKind
	Err     error
}

func (e *HwError) Error() string {
	return fmt.Sprintf("apply %s to %s: %s: %v", e.Profile, e.Path, e.Kind, e.Err)
}

func (e *HwError) Unwrap() error { return e.Err }

// Is matches the sentinel for the error kind.
func (e *HwError) Is(target error) bool {
	switch e.Kind {
	case HwPermissionDenied:
		return target == ErrPermissionDenied
	case HwDeviceUnavailable:
		return target == ErrDeviceUnavailable
	case HwIOFailure:
		return target == ErrHardwareIO
	}
	return false
}
