// Package metrics provides Prometheus metrics for thermalmon.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "thermalmon"

// Apply results.
const (
	ResultOK     = "ok"
	ResultFailed = "failed"
)

// Metrics holds the daemon's collectors. Each daemon owns one instance,
// registered against the registry it was built with.
type Metrics struct {
	// ProfileApplies counts hardware writes by profile and result.
	ProfileApplies *prometheus.CounterVec

	// ApplyDuration tracks how long one hardware write takes.
	ApplyDuration prometheus.Histogram

	// ForegroundChanges counts de-duplicated foreground transitions.
	ForegroundChanges prometheus.Counter

	// FocusQueryFailures counts failed or empty focus queries.
	FocusQueryFailures prometheus.Counter

	// ScreenEvents counts screen signals received by the controller.
	ScreenEvents *prometheus.CounterVec

	// TrackingActive is 1 while a tracking session runs.
	TrackingActive prometheus.Gauge

	// ProfileSelections counts successful per-application selections.
	ProfileSelections *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ProfileApplies: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "profile_applies_total",
			Help:      "Hardware profile writes by profile and result.",
		}, []string{"profile", "result"}),

		ApplyDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "profile_apply_duration_seconds",
			Help:      "Duration of one hardware profile write.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}),

		ForegroundChanges: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "foreground_changes_total",
			Help:      "Foreground application changes observed while tracking.",
		}),

		FocusQueryFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "focus_query_failures_total",
			Help:      "Focus queries that failed or returned no application.",
		}),

		ScreenEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "screen_events_total",
			Help:      "Screen power and lock signals by event.",
		}, []string{"event"}),

		TrackingActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tracking_active",
			Help:      "1 while foreground tracking is active.",
		}),

		ProfileSelections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "profile_selections_total",
			Help:      "Per-application profile selections by profile.",
		}, []string{"profile"}),
	}
}

// NewUnregistered creates collectors that are not exported anywhere (for
// tests and one-shot CLI commands).
func NewUnregistered() *Metrics {
	return New(prometheus.NewRegistry())
}
