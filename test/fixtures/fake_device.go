// Package fixtures provides test helpers for integration tests.
package fixtures

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/eliteGoblin/focusd/thermal_mon/internal/domain"
)

// FakeThermalNode is a stand-in for a sysfs thermal control file.
type FakeThermalNode struct {
	Path string
}

// NewFakeThermalNode places a control file at root/class/thermal/thermal_message/sconfig.
func NewFakeThermalNode(root string) *FakeThermalNode {
	return &FakeThermalNode{Path: filepath.Join(root, "class", "thermal", "thermal_message", "sconfig")}
}

// Create writes the node with an initial value.
func (n *FakeThermalNode) Create(initial string) error {
	if err := os.MkdirAll(filepath.Dir(n.Path), 0755); err != nil {
		return err
	}
	return os.WriteFile(n.Path, []byte(initial), 0644)
}

// Value returns the current contents, or "" if the node is missing.
func (n *FakeThermalNode) Value() string {
	data, err := os.ReadFile(n.Path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// Remove simulates the driver unloading.
func (n *FakeThermalNode) Remove() error {
	return os.Remove(n.Path)
}

// FakeDevice plays both the focus source and the screen signal source.
type FakeDevice struct {
	mu         sync.Mutex
	foreground string
	screens    chan domain.ScreenEvent
}

// NewFakeDevice creates a device with nothing in the foreground.
func NewFakeDevice() *FakeDevice {
	return &FakeDevice{screens: make(chan domain.ScreenEvent)}
}

// SetForeground changes the frontmost application; "" means none.
func (d *FakeDevice) SetForeground(appID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.foreground = appID
}

// ForegroundApp implements domain.FocusSource.
func (d *FakeDevice) ForegroundApp(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.foreground == "" {
		return "", domain.ErrNoForeground
	}
	return d.foreground, nil
}

// Send delivers a screen event, blocking until it is consumed or ctx ends.
func (d *FakeDevice) Send(ctx context.Context, ev domain.ScreenEvent) error {
	select {
	case d.screens <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Events implements domain.ScreenEventSource.
func (d *FakeDevice) Events(ctx context.Context) <-chan domain.ScreenEvent {
	out := make(chan domain.ScreenEvent)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-d.screens:
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

var (
	_ domain.FocusSource       = (*FakeDevice)(nil)
	_ domain.ScreenEventSource = (*FakeDevice)(nil)
)
