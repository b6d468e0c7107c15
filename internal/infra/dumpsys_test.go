package infra

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/thermal_mon/internal/domain"
)

const (
	activitiesCmd = "dumpsys activity activities"
	powerCmd      = "dumpsys power"
	windowCmd     = "dumpsys window policy"
)

func TestParseForegroundPackage(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   string
	}{
		{
			name: "top resumed activity",
			output: `  Display #0 (activities from top to bottom):
    topResumedActivity=ActivityRecord{9f1c2d u0 com.example.game/.MainActivity t42}
  ResumedActivity: ActivityRecord{9f1c2d u0 com.example.game/.MainActivity t42}`,
			want: "com.example.game",
		},
		{
			name:   "legacy resumed activity",
			output: `    mResumedActivity: ActivityRecord{4a3b1f0 u0 com.android.launcher3/.uioverrides.QuickstepLauncher t7}`,
			want:   "com.android.launcher3",
		},
		{
			name: "top resumed wins over stale resumed",
			output: `    mResumedActivity: ActivityRecord{1 u0 com.old.app/.Main t1}
    topResumedActivity=ActivityRecord{2 u0 com.new.app/com.new.app.Player t2}`,
			want: "com.new.app",
		},
		{
			name:   "secondary user",
			output: `    topResumedActivity=ActivityRecord{77 u10 com.work.mail/.Inbox t9}`,
			want:   "com.work.mail",
		},
		{
			name:   "nothing resumed",
			output: `    topResumedActivity=null`,
			want:   "",
		},
		{
			name:   "empty",
			output: "",
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseForegroundPackage(tt.output))
		})
	}
}

func TestDumpsysFocusSource_ForegroundApp(t *testing.T) {
	runner := newFakeRunner()
	src := NewDumpsysFocusSourceWithRunner(runner, time.Second)

	runner.Set(activitiesCmd, "topResumedActivity=ActivityRecord{1 u0 com.example.game/.Main t1}")
	pkg, err := src.ForegroundApp(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "com.example.game", pkg)

	runner.Set(activitiesCmd, "topResumedActivity=null")
	_, err = src.ForegroundApp(context.Background())
	assert.ErrorIs(t, err, domain.ErrNoForeground)

	boom := errors.New("exit status 1")
	runner.Fail(activitiesCmd, boom)
	_, err = src.ForegroundApp(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestParseAwake(t *testing.T) {
	assert.True(t, ParseAwake("  mWakefulness=Awake\n  mWakefulnessChanging=false"))
	assert.True(t, ParseAwake("Display Power: state=ON"))
	assert.False(t, ParseAwake("  mWakefulness=Asleep"))
	assert.False(t, ParseAwake("  mWakefulness=Dozing\nDisplay Power: state=DOZE"))
}

func TestParseKeyguardShowing(t *testing.T) {
	assert.True(t, ParseKeyguardShowing("    mShowingLockscreen=true mShowingDream=false"))
	assert.True(t, ParseKeyguardShowing("    isStatusBarKeyguard=false\n    mKeyguardShowing=true"))
	assert.False(t, ParseKeyguardShowing("    mShowingLockscreen=false mDreamingLockscreen=false"))
	assert.False(t, ParseKeyguardShowing(""))
}

func TestScreenTransitions(t *testing.T) {
	awake := ScreenState{Awake: true}
	awakeLocked := ScreenState{Awake: true, Locked: true}
	asleepLocked := ScreenState{Locked: true}

	tests := []struct {
		name string
		prev *ScreenState
		cur  ScreenState
		want []domain.ScreenEvent
	}{
		{"boot awake", nil, awake, []domain.ScreenEvent{domain.ScreenOn}},
		{"boot awake on keyguard", nil, awakeLocked, []domain.ScreenEvent{domain.ScreenOn}},
		{"boot asleep", nil, asleepLocked, nil},
		{"wake to keyguard", &asleepLocked, awakeLocked, []domain.ScreenEvent{domain.ScreenOn}},
		{"unlock", &awakeLocked, awake, []domain.ScreenEvent{domain.UserPresent}},
		{"wake straight to unlocked", &asleepLocked, awake, []domain.ScreenEvent{domain.ScreenOn, domain.UserPresent}},
		{"screen off", &awake, asleepLocked, []domain.ScreenEvent{domain.ScreenOff}},
		{"steady awake", &awake, awake, nil},
		{"lock while awake", &awake, awakeLocked, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ScreenTransitions(tt.prev, tt.cur))
		})
	}
}

func TestDumpsysScreenSource_Events(t *testing.T) {
	runner := newFakeRunner()
	runner.Set(powerCmd, "mWakefulness=Awake")
	runner.Set(windowCmd, "mShowingLockscreen=true")

	src := NewDumpsysScreenSourceWithRunner(runner, 5*time.Millisecond, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	events := src.Events(ctx)

	assert.Equal(t, domain.ScreenOn, receive(t, events))

	runner.Set(windowCmd, "mShowingLockscreen=false")
	assert.Equal(t, domain.UserPresent, receive(t, events))

	runner.Set(powerCmd, "mWakefulness=Asleep")
	runner.Set(windowCmd, "mShowingLockscreen=true")
	assert.Equal(t, domain.ScreenOff, receive(t, events))

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-events:
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond, "channel must close after cancel")
}

func TestDumpsysScreenSource_QueryFailureKeepsState(t *testing.T) {
	runner := newFakeRunner()
	runner.Set(powerCmd, "mWakefulness=Awake")
	runner.Set(windowCmd, "mShowingLockscreen=false")

	src := NewDumpsysScreenSourceWithRunner(runner, 5*time.Millisecond, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := src.Events(ctx)

	assert.Equal(t, domain.ScreenOn, receive(t, events))

	// A failing poll must not be read as "asleep".
	runner.Fail(powerCmd, errors.New("binder timeout"))
	time.Sleep(30 * time.Millisecond)
	runner.Set(powerCmd, "mWakefulness=Awake")
	time.Sleep(30 * time.Millisecond)

	select {
	case ev := <-events:
		t.Fatalf("unexpected event %s", ev)
	default:
	}
}

func TestDumpsysScreenSource_KeyguardFailureKeepsLockState(t *testing.T) {
	runner := newFakeRunner()
	runner.Set(powerCmd, "mWakefulness=Awake")
	runner.Set(windowCmd, "mShowingLockscreen=true")

	src := NewDumpsysScreenSourceWithRunner(runner, 5*time.Millisecond, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := src.Events(ctx)

	assert.Equal(t, domain.ScreenOn, receive(t, events))

	// Still locked; an unreadable keyguard is not an unlock.
	runner.Fail(windowCmd, errors.New("binder timeout"))
	time.Sleep(30 * time.Millisecond)
	select {
	case ev := <-events:
		t.Fatalf("unexpected event %s", ev)
	default:
	}

	runner.Set(windowCmd, "mShowingLockscreen=false")
	assert.Equal(t, domain.UserPresent, receive(t, events))
}

func receive(t *testing.T, events <-chan domain.ScreenEvent) domain.ScreenEvent {
	t.Helper()
	select {
	case ev, ok := <-events:
		require.True(t, ok, "channel closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for screen event")
		return ""
	}
}
