// Package profile implements the Strategy pattern for thermal operating points.
// Each profile kind has its own definition describing what gets written to
// the thermal control surface.
package profile

import (
	"github.com/eliteGoblin/focusd/thermal_mon/internal/domain"
)

// DefaultControlPath is the Xiaomi thermal-engine scenario switch.
const DefaultControlPath = "/sys/class/thermal/thermal_message/sconfig"

// ThermalProfile defines the strategy interface for one operating point.
type ThermalProfile interface {
	// Kind returns the domain identifier (e.g., "gaming").
	Kind() domain.ProfileKind

	// Name returns human-readable name for display.
	Name() string

	// Description explains what the profile does to the device.
	Description() string

	// ControlValue returns the value written to the scenario switch.
	ControlValue() string
}

type builtinProfile struct {
	kind        domain.ProfileKind
	name        string
	description string
	value       string
}

func (p builtinProfile) Kind() domain.ProfileKind { return p.kind }
func (p builtinProfile) Name() string             { return p.name }
func (p builtinProfile) Description() string      { return p.description }
func (p builtinProfile) ControlValue() string     { return p.value }

// NewProfile creates a profile definition with a custom control value.
func NewProfile(kind domain.ProfileKind, name, description, value string) ThermalProfile {
	return builtinProfile{kind: kind, name: name, description: description, value: value}
}

// Builtins returns the thermal-engine scenarios shipped with the device.
func Builtins() []ThermalProfile {
	return []ThermalProfile{
		NewProfile(domain.ProfileDefault, "Default",
			"Stock thermal behaviour", "0"),
		NewProfile(domain.ProfileBattery, "Battery",
			"Aggressive throttling to save power", "1"),
		NewProfile(domain.ProfileBenchmark, "Benchmark",
			"Relaxed limits for sustained peak performance", "10"),
		NewProfile(domain.ProfileGaming, "Gaming",
			"Favour GPU and touch responsiveness", "9"),
		NewProfile(domain.ProfileStreaming, "Streaming",
			"Keep video decode smooth with moderate heat", "14"),
	}
}

// Ensure builtinProfile implements ThermalProfile.
var _ ThermalProfile = builtinProfile{}
