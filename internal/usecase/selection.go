package usecase

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/thermal_mon/internal/domain"
	"github.com/eliteGoblin/focusd/thermal_mon/internal/metrics"
)

// ProfileSelector records per-application profile choices. It stands in
// for the settings screen: a selection is persisted and takes effect on the
// next foreground transition into that application.
type ProfileSelector struct {
	store   domain.ProfileStore
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewProfileSelector creates a selector over store.
func NewProfileSelector(store domain.ProfileStore, m *metrics.Metrics, logger *zap.Logger) *ProfileSelector {
	if m == nil {
		m = metrics.NewUnregistered()
	}
	return &ProfileSelector{store: store, metrics: m, logger: logger}
}

// Select parses profile and stores it for packageID.
func (s *ProfileSelector) Select(packageID, profile string) (domain.ProfileKind, error) {
	kind, err := domain.ParseProfileKind(profile)
	if err != nil {
		return "", err
	}
	if err := s.store.Set(packageID, kind); err != nil {
		return "", fmt.Errorf("failed to save selection for %s: %w", packageID, err)
	}

	s.metrics.ProfileSelections.WithLabelValues(string(kind)).Inc()
	s.logger.Info("profile selected",
		zap.String("package", packageID),
		zap.String("profile", string(kind)))
	return kind, nil
}

// Lookup returns the effective profile for packageID.
func (s *ProfileSelector) Lookup(packageID string) domain.ProfileKind {
	return s.store.Get(packageID)
}

// List returns every stored selection ordered as the store yields them.
func (s *ProfileSelector) List() []domain.ApplicationProfileEntry {
	var entries []domain.ApplicationProfileEntry
	for pkg, p := range s.store.Entries() {
		entries = append(entries, domain.ApplicationProfileEntry{PackageID: pkg, Profile: p})
	}
	return entries
}
