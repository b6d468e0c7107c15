package infra

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/eliteGoblin/focusd/thermal_mon/internal/domain"
)

// DefaultFocusQueryTimeout bounds one `dumpsys activity` invocation.
const DefaultFocusQueryTimeout = 2 * time.Second

// ActivityRecord{hash u0 com.example.game/.MainActivity t123}
var (
	topResumedRe = regexp.MustCompile(`topResumedActivity[=:]\s*ActivityRecord\{\S+\s+u\d+\s+([^/\s}]+)/`)
	resumedRe    = regexp.MustCompile(`mResumedActivity[=:]\s*ActivityRecord\{\S+\s+u\d+\s+([^/\s}]+)/`)
	focusedAppRe = regexp.MustCompile(`mFocusedApp[=:]\s*(?:AppWindowToken\{\S+\s+token=Token\{\S+\s+)?ActivityRecord\{\S+\s+u\d+\s+([^/\s}]+)/`)
)

// DumpsysFocusSource implements domain.FocusSource by asking the activity
// manager for the top resumed activity.
type DumpsysFocusSource struct {
	runner  CommandRunner
	timeout time.Duration
}

// NewDumpsysFocusSource creates a focus source that runs dumpsys.
func NewDumpsysFocusSource(timeout time.Duration) *DumpsysFocusSource {
	return NewDumpsysFocusSourceWithRunner(&ExecCommandRunner{}, timeout)
}

// NewDumpsysFocusSourceWithRunner creates a focus source with an injectable
// runner (for testing).
func NewDumpsysFocusSourceWithRunner(runner CommandRunner, timeout time.Duration) *DumpsysFocusSource {
	if timeout <= 0 {
		timeout = DefaultFocusQueryTimeout
	}
	return &DumpsysFocusSource{runner: runner, timeout: timeout}
}

// ForegroundApp returns the package name of the focused activity.
func (s *DumpsysFocusSource) ForegroundApp(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.runner.Output(ctx, "dumpsys", "activity", "activities")
	if err != nil {
		return "", fmt.Errorf("dumpsys activity: %w", err)
	}
	pkg := ParseForegroundPackage(string(out))
	if pkg == "" {
		return "", domain.ErrNoForeground
	}
	return pkg, nil
}

// ParseForegroundPackage extracts the package of the resumed activity from
// `dumpsys activity activities` output. Newer releases report
// topResumedActivity; older ones mResumedActivity.
func ParseForegroundPackage(output string) string {
	for _, re := range []*regexp.Regexp{topResumedRe, resumedRe, focusedAppRe} {
		if m := re.FindStringSubmatch(output); len(m) == 2 {
			return m[1]
		}
	}
	return ""
}

// Ensure DumpsysFocusSource implements domain.FocusSource.
var _ domain.FocusSource = (*DumpsysFocusSource)(nil)
