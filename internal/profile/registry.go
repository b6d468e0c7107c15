package profile

import (
	"fmt"

	"github.com/eliteGoblin/focusd/thermal_mon/internal/domain"
)

// Registry holds all thermal profile definitions.
type Registry struct {
	profiles map[domain.ProfileKind]ThermalProfile
}

// NewRegistry creates a registry with the built-in profiles.
func NewRegistry() *Registry {
	return NewRegistryWithProfiles(Builtins()...)
}

// NewRegistryWithProfiles creates a registry with custom profiles (for testing).
func NewRegistryWithProfiles(profiles ...ThermalProfile) *Registry {
	r := &Registry{
		profiles: make(map[domain.ProfileKind]ThermalProfile),
	}
	for _, p := range profiles {
		r.Register(p)
	}
	return r
}

// Register adds or replaces a profile definition.
func (r *Registry) Register(p ThermalProfile) {
	r.profiles[p.Kind()] = p
}

// Get returns a profile by kind.
func (r *Registry) Get(kind domain.ProfileKind) (ThermalProfile, bool) {
	p, ok := r.profiles[kind]
	return p, ok
}

// GetAll returns registered profiles in domain.AllProfiles order.
func (r *Registry) GetAll() []ThermalProfile {
	result := make([]ThermalProfile, 0, len(r.profiles))
	for _, kind := range domain.AllProfiles() {
		if p, ok := r.profiles[kind]; ok {
			result = append(result, p)
		}
	}
	return result
}

// ControlValue returns the scenario value for kind.
func (r *Registry) ControlValue(kind domain.ProfileKind) (string, error) {
	p, ok := r.profiles[kind]
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrUnknownProfile, kind)
	}
	return p.ControlValue(), nil
}

// ControlValues returns the kind -> value table used by control points that
// do not override values in config.
func (r *Registry) ControlValues() map[domain.ProfileKind]string {
	values := make(map[domain.ProfileKind]string, len(r.profiles))
	for kind, p := range r.profiles {
		values[kind] = p.ControlValue()
	}
	return values
}
