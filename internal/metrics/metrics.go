// Package metrics provides Prometheus counters for upgrade decisions and
// redirect tracking.
//
// Every method is safe to call on a nil *Metrics, so components can be built
// without metrics in tests.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	Decisions        *prometheus.CounterVec
	Settlements      *prometheus.CounterVec
	PendingRedirects prometheus.Gauge
	TrackedTabs      prometheus.Gauge
	PreferenceReload prometheus.Counter

	registry *prometheus.Registry
}

// New creates a metrics collector on its own registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "autohttps_decisions_total",
				Help: "Navigation decisions by outcome and reason",
			},
			[]string{"upgraded", "reason"},
		),
		Settlements: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "autohttps_tracker_settlements_total",
				Help: "Redirect trackers settled, by cause",
			},
			[]string{"cause"},
		),
		PendingRedirects: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "autohttps_pending_redirects",
			Help: "Tabs with an outstanding upgrade",
		}),
		TrackedTabs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "autohttps_tracked_tabs",
			Help: "Tabs present in the timing ledger",
		}),
		PreferenceReload: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "autohttps_preference_reloads_total",
			Help: "Preference state rebuilds",
		}),
	}
	m.registry.MustRegister(m.Decisions, m.Settlements, m.PendingRedirects, m.TrackedTabs, m.PreferenceReload)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveDecision counts one decision.
func (m *Metrics) ObserveDecision(upgraded bool, reason string) {
	if m == nil {
		return
	}
	m.Decisions.WithLabelValues(strconv.FormatBool(upgraded), reason).Inc()
}

// ObserveSettlement counts one settled tracker.
func (m *Metrics) ObserveSettlement(cause string) {
	if m == nil {
		return
	}
	m.Settlements.WithLabelValues(cause).Inc()
}

// SetPendingRedirects records the number of live trackers.
func (m *Metrics) SetPendingRedirects(n int) {
	if m == nil {
		return
	}
	m.PendingRedirects.Set(float64(n))
}

// SetTrackedTabs records the ledger size.
func (m *Metrics) SetTrackedTabs(n int) {
	if m == nil {
		return
	}
	m.TrackedTabs.Set(float64(n))
}

// IncPreferenceReload counts one preference rebuild.
func (m *Metrics) IncPreferenceReload() {
	if m == nil {
		return
	}
	m.PreferenceReload.Inc()
}
