package infra

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"syscall"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/thermal_mon/internal/domain"
)

// ControlPoint is one writable control file and the value each profile
// writes to it. Profiles missing from Values leave the file untouched.
type ControlPoint struct {
	Path   string
	Values map[domain.ProfileKind]string
}

// SysfsWriter implements domain.HardwareProfileWriter by writing control
// values to sysfs files.
type SysfsWriter struct {
	points []ControlPoint
	logger *zap.Logger
}

// NewSysfsWriter creates a writer for the given control points.
func NewSysfsWriter(points []ControlPoint, logger *zap.Logger) *SysfsWriter {
	return &SysfsWriter{points: points, logger: logger}
}

// Apply writes the value for profile to every control point that defines
// one. Failures from several control points are combined; each is a
// *domain.HwError.
func (w *SysfsWriter) Apply(profile domain.ProfileKind) error {
	var errs error
	written := 0

	for _, point := range w.points {
		value, ok := point.Values[profile]
		if !ok {
			continue
		}
		if err := writeControl(point.Path, value); err != nil {
			errs = multierr.Append(errs, classifyHwError(point.Path, profile, err))
			continue
		}
		written++
		w.logger.Debug("wrote control value",
			zap.String("path", point.Path),
			zap.String("profile", string(profile)),
			zap.String("value", value))
	}

	if errs == nil && written == 0 {
		return &domain.HwError{
			Kind:    domain.HwDeviceUnavailable,
			Profile: profile,
			Err:     fmt.Errorf("no control point defines a value for %s", profile),
		}
	}
	return errs
}

// ControlPoints returns the configured control points.
func (w *SysfsWriter) ControlPoints() []ControlPoint {
	return w.points
}

// writeControl writes value to an existing control file. Control files are
// never created.
func writeControl(path, value string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(value); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// classifyHwError maps errno values onto the control surface taxonomy.
func classifyHwError(path string, profile domain.ProfileKind, err error) *domain.HwError {
	kind := domain.HwIOFailure
	switch {
	case errors.Is(err, fs.ErrPermission),
		errors.Is(err, syscall.EACCES),
		errors.Is(err, syscall.EPERM),
		errors.Is(err, syscall.EROFS):
		kind = domain.HwPermissionDenied
	case errors.Is(err, fs.ErrNotExist),
		errors.Is(err, syscall.ENODEV),
		errors.Is(err, syscall.ENXIO),
		errors.Is(err, syscall.EISDIR):
		kind = domain.HwDeviceUnavailable
	}
	return &domain.HwError{Kind: kind, Path: path, Profile: profile, Err: err}
}

// Ensure SysfsWriter implements domain.HardwareProfileWriter.
var _ domain.HardwareProfileWriter = (*SysfsWriter)(nil)
