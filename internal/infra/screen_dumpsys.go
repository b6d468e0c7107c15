package infra

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/eliteGoblin/focusd/thermal_mon/internal/domain"
)

const (
	// DefaultScreenPollInterval is how often power and keyguard state are sampled.
	DefaultScreenPollInterval = time.Second

	screenQueryTimeout = 3 * time.Second
	screenEventBuffer  = 8
)

var keyguardRe = regexp.MustCompile(`\b(?:mShowingLockscreen|mDreamingLockscreen|isStatusBarKeyguard|mKeyguardShowing)=(true|false)`)

// ScreenState is one sample of display power and lock state.
type ScreenState struct {
	Awake  bool
	Locked bool
}

// DumpsysScreenSource implements domain.ScreenEventSource by sampling
// `dumpsys power` and `dumpsys window` and emitting edges:
//
//	asleep -> awake           ScreenOn
//	awake  -> asleep          ScreenOff
//	locked -> unlocked, awake UserPresent
type DumpsysScreenSource struct {
	runner   CommandRunner
	interval time.Duration
	logger   *zap.Logger
	warn     *rate.Limiter
}

// NewDumpsysScreenSource creates a screen source that runs dumpsys.
func NewDumpsysScreenSource(interval time.Duration, logger *zap.Logger) *DumpsysScreenSource {
	return NewDumpsysScreenSourceWithRunner(&ExecCommandRunner{}, interval, logger)
}

// NewDumpsysScreenSourceWithRunner creates a screen source with an injectable
// runner (for testing).
func NewDumpsysScreenSourceWithRunner(runner CommandRunner, interval time.Duration, logger *zap.Logger) *DumpsysScreenSource {
	if interval <= 0 {
		interval = DefaultScreenPollInterval
	}
	return &DumpsysScreenSource{
		runner:   runner,
		interval: interval,
		logger:   logger,
		warn:     rate.NewLimiter(rate.Every(time.Minute), 1),
	}
}

// Events starts sampling and returns the event channel. The first successful
// sample emits ScreenOn if the display is already awake, so a daemon started
// with the screen on begins tracking immediately.
func (s *DumpsysScreenSource) Events(ctx context.Context) <-chan domain.ScreenEvent {
	out := make(chan domain.ScreenEvent, screenEventBuffer)

	go func() {
		defer close(out)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		var last *ScreenState
		for {
			if cur, err := s.sample(ctx, last); err != nil {
				if ctx.Err() == nil && s.warn.Allow() {
					s.logger.Warn("screen state query failed", zap.Error(err))
				}
			} else {
				for _, ev := range ScreenTransitions(last, cur) {
					select {
					case out <- ev:
					case <-ctx.Done():
						return
					}
				}
				last = &cur
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return out
}

// sample queries power and keyguard state. If only the keyguard query fails
// the lock state of prev is carried forward.
func (s *DumpsysScreenSource) sample(ctx context.Context, prev *ScreenState) (ScreenState, error) {
	ctx, cancel := context.WithTimeout(ctx, screenQueryTimeout)
	defer cancel()

	power, err := s.runner.Output(ctx, "dumpsys", "power")
	if err != nil {
		return ScreenState{}, fmt.Errorf("dumpsys power: %w", err)
	}
	state := ScreenState{Awake: ParseAwake(string(power))}

	window, err := s.runner.Output(ctx, "dumpsys", "window", "policy")
	if err != nil {
		// Lock state is only needed for UserPresent; keep power edges flowing.
		s.logger.Debug("keyguard query failed", zap.Error(err))
		if prev != nil {
			state.Locked = prev.Locked
		}
		return state, nil
	}
	state.Locked = ParseKeyguardShowing(string(window))
	return state, nil
}

// ScreenTransitions returns the events implied by moving from prev to cur.
// prev is nil for the first sample.
func ScreenTransitions(prev *ScreenState, cur ScreenState) []domain.ScreenEvent {
	if prev == nil {
		if cur.Awake {
			return []domain.ScreenEvent{domain.ScreenOn}
		}
		return nil
	}

	var events []domain.ScreenEvent
	switch {
	case !prev.Awake && cur.Awake:
		events = append(events, domain.ScreenOn)
	case prev.Awake && !cur.Awake:
		return []domain.ScreenEvent{domain.ScreenOff}
	}
	if cur.Awake && prev.Locked && !cur.Locked {
		events = append(events, domain.UserPresent)
	}
	return events
}

// ParseAwake reports whether `dumpsys power` describes an interactive display.
func ParseAwake(output string) bool {
	return strings.Contains(output, "mWakefulness=Awake") ||
		strings.Contains(output, "getWakefulnessLocked()=Awake") ||
		strings.Contains(output, "mScreenOn=true") ||
		strings.Contains(output, "Display Power: state=ON")
}

// ParseKeyguardShowing reports whether `dumpsys window policy` shows the
// keyguard.
func ParseKeyguardShowing(output string) bool {
	for _, m := range keyguardRe.FindAllStringSubmatch(output, -1) {
		if m[1] == "true" {
			return true
		}
	}
	return false
}

// Ensure DumpsysScreenSource implements domain.ScreenEventSource.
var _ domain.ScreenEventSource = (*DumpsysScreenSource)(nil)
