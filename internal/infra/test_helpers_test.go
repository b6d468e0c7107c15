package infra

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
)

// mockProcessManager is a test double for ProcessManager
type mockProcessManager struct {
	runningPIDs map[int]bool
	names       map[int]string
}

func newMockProcessManager() *mockProcessManager {
	return &mockProcessManager{
		runningPIDs: make(map[int]bool),
		names:       make(map[int]string),
	}
}

func (m *mockProcessManager) IsRunning(pid int) bool {
	return m.runningPIDs[pid]
}

func (m *mockProcessManager) Name(pid int) (string, error) {
	if m.runningPIDs[pid] {
		if name, ok := m.names[pid]; ok {
			return name, nil
		}
		return "thermalmon", nil
	}
	return "", fmt.Errorf("process %d not found", pid)
}

func (m *mockProcessManager) GetCurrentPID() int {
	return os.Getpid()
}

func (m *mockProcessManager) SetRunning(pid int, running bool) {
	m.runningPIDs[pid] = running
}

// fakeRunner answers commands from a table keyed by the joined command line.
// Outputs can be swapped between calls to simulate device state changes.
type fakeRunner struct {
	mu      sync.Mutex
	outputs map[string]string
	errs    map[string]error
	calls   []string
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		outputs: make(map[string]string),
		errs:    make(map[string]error),
	}
}

func (r *fakeRunner) Set(cmd, output string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outputs[cmd] = output
	delete(r.errs, cmd)
}

func (r *fakeRunner) Fail(cmd string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs[cmd] = err
}

func (r *fakeRunner) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *fakeRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := strings.Join(append([]string{name}, args...), " ")

	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, cmd)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := r.errs[cmd]; ok {
		return nil, err
	}
	out, ok := r.outputs[cmd]
	if !ok {
		return nil, fmt.Errorf("unexpected command %q", cmd)
	}
	return []byte(out), nil
}
