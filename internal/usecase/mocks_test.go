package usecase

import (
	"context"
	"errors"
	"iter"
	"maps"
	"slices"
	"sync"

	"github.com/eliteGoblin/focusd/thermal_mon/internal/domain"
)

// recorder keeps one ordered log across fakes so tests can assert that a
// write happened before a tracker start.
type recorder struct {
	mu  sync.Mutex
	log []string
}

func (r *recorder) add(entry string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log = append(r.log, entry)
}

func (r *recorder) entries() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.log)
}

// mockProfileStore implements domain.ProfileStore for testing
type mockProfileStore struct {
	mu      sync.Mutex
	entries map[string]domain.ProfileKind
	setErr  error
	gets    int
}

func newMockProfileStore() *mockProfileStore {
	return &mockProfileStore{entries: make(map[string]domain.ProfileKind)}
}

func (m *mockProfileStore) Get(packageID string) domain.ProfileKind {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if p, ok := m.entries[packageID]; ok {
		return p
	}
	return domain.ProfileDefault
}

func (m *mockProfileStore) Set(packageID string, profile domain.ProfileKind) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.entries[packageID] = profile
	return nil
}

func (m *mockProfileStore) Entries() iter.Seq2[string, domain.ProfileKind] {
	return func(yield func(string, domain.ProfileKind) bool) {
		m.mu.Lock()
		snapshot := maps.Clone(m.entries)
		m.mu.Unlock()
		for _, pkg := range slices.Sorted(maps.Keys(snapshot)) {
			if !yield(pkg, snapshot[pkg]) {
				return
			}
		}
	}
}

func (m *mockProfileStore) Close() error { return nil }

// mockWriter implements domain.HardwareProfileWriter for testing
type mockWriter struct {
	mu      sync.Mutex
	rec     *recorder
	applied []domain.ProfileKind
	failing map[domain.ProfileKind]int // remaining failures per profile
}

func newMockWriter(rec *recorder) *mockWriter {
	return &mockWriter{rec: rec, failing: make(map[domain.ProfileKind]int)}
}

func (m *mockWriter) Apply(profile domain.ProfileKind) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failing[profile] > 0 {
		m.failing[profile]--
		m.rec.add("fail:" + string(profile))
		return &domain.HwError{Kind: domain.HwIOFailure, Profile: profile, Err: errors.New("simulated write failure")}
	}
	m.applied = append(m.applied, profile)
	m.rec.add("apply:" + string(profile))
	return nil
}

func (m *mockWriter) FailNext(profile domain.ProfileKind, times int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failing[profile] = times
}

func (m *mockWriter) Applied() []domain.ProfileKind {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.applied)
}

// mockTracker implements Tracker for testing. Emit delivers a change the
// way the real tracker goroutine would.
type mockTracker struct {
	mu       sync.Mutex
	rec      *recorder
	ctx      context.Context
	cancel   context.CancelFunc
	onChange ChangeFunc
	starts   int
	stops    int
}

func newMockTracker(rec *recorder) *mockTracker {
	return &mockTracker{rec: rec}
}

func (m *mockTracker) Start(ctx context.Context, onChange ChangeFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.onChange = onChange
	m.starts++
	m.rec.add("tracker:start")
}

func (m *mockTracker) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel == nil {
		return
	}
	m.cancel()
	m.cancel = nil
	m.onChange = nil
	m.stops++
	m.rec.add("tracker:stop")
}

func (m *mockTracker) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancel != nil
}

// Emit reports appID if a session is active. It returns false otherwise.
func (m *mockTracker) Emit(appID string) bool {
	m.mu.Lock()
	ctx, onChange := m.ctx, m.onChange
	m.mu.Unlock()
	if onChange == nil {
		return false
	}
	onChange(ctx, appID)
	return true
}

func (m *mockTracker) Counts() (starts, stops int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.starts, m.stops
}

// focusStep is one scripted focus query answer.
type focusStep struct {
	appID string
	err   error
}

// scriptedFocusSource implements domain.FocusSource, replaying steps and
// then repeating the last one.
type scriptedFocusSource struct {
	mu    sync.Mutex
	steps []focusStep
	calls int
	block bool // block until ctx is done
}

func (s *scriptedFocusSource) ForegroundApp(ctx context.Context) (string, error) {
	s.mu.Lock()
	s.calls++
	block := s.block
	var step focusStep
	if len(s.steps) > 0 {
		i := min(s.calls-1, len(s.steps)-1)
		step = s.steps[i]
	}
	s.mu.Unlock()

	if block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return step.appID, step.err
}

func (s *scriptedFocusSource) SetSteps(steps ...focusStep) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = steps
	s.calls = 0
}

func (s *scriptedFocusSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
