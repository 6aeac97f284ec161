// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package metrics exposes a small set of Prometheus gauges/counters per
// daemon kind. Each transport server owns its own *prometheus.Registry
// (rather than the global default registry) so that constructing more
// than one server of the same kind in a process — as the test suite
// does — doesn't collide on duplicate registration.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// RIP1Metrics holds the RIP1 daemon's Prometheus series, one label set
// per instance id.
type RIP1Metrics struct {
	LearnedRoutes       *prometheus.GaugeVec
	RedistributedRoutes *prometheus.GaugeVec
	PoisonedRoutesTotal *prometheus.CounterVec
}

// NewRIP1Metrics builds an unregistered RIP1Metrics.
func NewRIP1Metrics() *RIP1Metrics {
	return &RIP1Metrics{
		LearnedRoutes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rip1_learned_routes",
			Help: "Number of routes currently in a rip1 instance's learned table.",
		}, []string{"instance_id"}),
		RedistributedRoutes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rip1_redistributed_routes",
			Help: "Number of routes currently in a rip1 instance's redistributed table.",
		}, []string{"instance_id"}),
		PoisonedRoutesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rip1_poisoned_routes_total",
			Help: "Running sum of the poisoned (metric 16) entries present in the learned table at each metrics update.",
		}, []string{"instance_id"}),
	}
}

// RegisterMetrics registers m's series with reg, mirroring the teacher's
// Metrics.RegisterMetrics convention but against a caller-owned registry
// instead of the global default one.
func (m *RIP1Metrics) RegisterMetrics(reg *prometheus.Registry) {
	reg.MustRegister(m.LearnedRoutes, m.RedistributedRoutes, m.PoisonedRoutesTotal)
}

// SLAMetrics holds the SLA daemon's Prometheus series.
type SLAMetrics struct {
	RouteStatus *prometheus.GaugeVec
}

// NewSLAMetrics builds an unregistered SLAMetrics.
func NewSLAMetrics() *SLAMetrics {
	return &SLAMetrics{
		RouteStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sla_route_status",
			Help: "Current status of an sla-configured route: 0=unknown, 1=up, 2=down.",
		}, []string{"instance_id", "prefix", "next_hop"}),
	}
}

// RegisterMetrics registers m's series with reg.
func (m *SLAMetrics) RegisterMetrics(reg *prometheus.Registry) {
	reg.MustRegister(m.RouteStatus)
}

// RouteStatusValue maps a system.RouteStatus string to the numeric value
// SLARouteStatus exposes.
func RouteStatusValue(status string) float64 {
	switch status {
	case "up":
		return 1
	case "down":
		return 2
	default:
		return 0
	}
}

// CPMetrics holds the Control Plane arbiter's Prometheus series.
type CPMetrics struct {
	BestRoutes              *prometheus.GaugeVec
	RedistributeCyclesTotal *prometheus.CounterVec
}

// NewCPMetrics builds an unregistered CPMetrics.
func NewCPMetrics() *CPMetrics {
	return &CPMetrics{
		BestRoutes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cp_best_routes",
			Help: "Number of routes a control_plane instance currently exports after best-path selection.",
		}, []string{"instance_id"}),
		RedistributeCyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cp_redistribute_cycles_total",
			Help: "Total count of redistribute cycles a control_plane instance has run.",
		}, []string{"instance_id"}),
	}
}

// RegisterMetrics registers m's series with reg.
func (m *CPMetrics) RegisterMetrics(reg *prometheus.Registry) {
	reg.MustRegister(m.BestRoutes, m.RedistributeCyclesTotal)
}
