// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package sla

import (
	"context"
	"sync"
	"time"

	"github.com/wrgeorge1983/rtrcp/internal/clock"
	"github.com/wrgeorge1983/rtrcp/internal/fp"
	"github.com/wrgeorge1983/rtrcp/internal/logging"
	"github.com/wrgeorge1983/rtrcp/internal/rib"
	"github.com/wrgeorge1983/rtrcp/internal/system"
)

// Config holds the operator-supplied settings for a Daemon, matching
// the rp_sla table in the TOML configuration file.
type Config struct {
	AdminDistance            int
	ThresholdMeasureInterval time.Duration
	Routes                   []RouteConfig
}

// RouteConfig is one configured route as it appears under rp_sla.routes.
type RouteConfig struct {
	Prefix      string
	NextHop     string
	Priority    int
	ThresholdMs int
}

// DefaultConfig returns the spec-mandated defaults: admin_distance 1,
// threshold_measure_interval 60 seconds.
func DefaultConfig() Config {
	return Config{AdminDistance: 1, ThresholdMeasureInterval: 60 * time.Second}
}

// Daemon evaluates reachability of configured routes against a
// per-route RTT threshold, maintaining a RIB that mirrors the
// configured set with a live RouteStatus.
type Daemon struct {
	mu                sync.Mutex
	fp                fp.ForwardingPlane
	clock             clock.Clock
	logger            *logging.Logger
	admin             int
	measureInterval   time.Duration
	configuredRoutes  *rib.Table[Route]
	workingRIB        *rib.Table[Route]
}

// NewDaemon constructs a Daemon with empty configured-routes and RIB
// tables.
func NewDaemon(fplane fp.ForwardingPlane, clk clock.Clock, logger *logging.Logger, adminDistance int, measureInterval time.Duration) *Daemon {
	if logger == nil {
		logger = logging.Default()
	}
	return &Daemon{
		fp:               fplane,
		clock:            clk,
		logger:           logger.WithComponent("sla"),
		admin:            adminDistance,
		measureInterval:  measureInterval,
		configuredRoutes: rib.NewTable(DecodeRoute(clk)),
		workingRIB:       rib.NewTable(DecodeRoute(clk)),
	}
}

// NewDaemonFromConfig builds a Daemon from Config, adding every
// configured route.
func NewDaemonFromConfig(cfg Config, fplane fp.ForwardingPlane, clk clock.Clock, logger *logging.Logger) (*Daemon, error) {
	interval := cfg.ThresholdMeasureInterval
	if interval <= 0 {
		interval = 60 * time.Second
	}
	d := NewDaemon(fplane, clk, logger, cfg.AdminDistance, interval)

	for _, rc := range cfg.Routes {
		route, err := DecodeRoute(clk)(rib.Record{
			"prefix":       rc.Prefix,
			"next_hop":     rc.NextHop,
			"priority":     rc.Priority,
			"threshold_ms": rc.ThresholdMs,
		}, true)
		if err != nil {
			return nil, err
		}
		d.AddConfiguredRoute(route)
	}
	return d, nil
}

// AdminDistance returns the configured administrative distance applied
// to every route this daemon redistributes.
func (d *Daemon) AdminDistance() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.admin
}

// AddConfiguredRoute adds route to both the configured-routes table and
// the working RIB.
func (d *Daemon) AddConfiguredRoute(route Route) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.configuredRoutes.Add(route)
	d.workingRIB.Add(route)
}

// RemoveConfiguredRoute discards route from both tables.
func (d *Daemon) RemoveConfiguredRoute(route Route) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.configuredRoutes.Discard(route)
	d.workingRIB.Discard(route)
}

// ConfiguredRoutes returns every configured route.
func (d *Daemon) ConfiguredRoutes() []Route {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.configuredRoutes.Items()
}

// RIBRoutes returns every route currently in the working RIB.
func (d *Daemon) RIBRoutes() []Route {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.workingRIB.Items()
}

// UpRoutes returns RIB routes whose status is UP.
func (d *Daemon) UpRoutes() []Route {
	d.mu.Lock()
	defer d.mu.Unlock()
	var up []Route
	for _, r := range d.workingRIB.Items() {
		if r.Status == system.StatusUp {
			up = append(up, r)
		}
	}
	return up
}

// RefreshRIB rebuilds the working RIB from the configured-routes table,
// discarding any in-RIB state (status, last_updated) accumulated by
// evaluation. Mirrors the Python implementation's replace-wholesale
// refresh semantics.
func (d *Daemon) RefreshRIB() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	records := d.configuredRoutes.Export()
	for _, rec := range records {
		delete(rec, "status")
	}
	fresh := rib.NewTable(DecodeRoute(d.clock))
	if err := fresh.Import(records, true); err != nil {
		return err
	}
	d.workingRIB = fresh
	return nil
}

// EvaluateRoute probes route's next hop and updates its status in the
// working RIB, if the route is UNKNOWN or stale by measureInterval.
func (d *Daemon) EvaluateRoute(ctx context.Context, route Route) Route {
	d.mu.Lock()
	interval := d.measureInterval
	d.mu.Unlock()

	stale := d.clock.Now().Sub(route.LastUpdated) > interval
	if route.Status != system.StatusUnknown && !stale {
		return route
	}

	// §4.2: timeout = ceil(threshold_ms/1000) seconds. The up/down
	// decision below still compares rtt against threshold_ms directly.
	timeoutSeconds := (route.ThresholdMs + 999) / 1000
	timeout := time.Duration(timeoutSeconds) * time.Second
	rtt, err := d.fp.Ping(ctx, route.nextHopVal.String(), timeout)

	updated := route
	switch {
	case err != nil:
		updated.Status = system.StatusDown
	case rtt <= time.Duration(route.ThresholdMs)*time.Millisecond:
		updated.Status = system.StatusUp
	default:
		updated.Status = system.StatusDown
	}
	updated.LastUpdated = d.clock.Now()

	d.mu.Lock()
	d.workingRIB.Add(updated)
	d.mu.Unlock()

	d.logger.Debug("evaluated route", "prefix", route.prefixVal.String(), "next_hop", route.nextHopVal.String(), "status", string(updated.Status))
	return updated
}

// EvaluateRoutes evaluates every route currently in the working RIB.
func (d *Daemon) EvaluateRoutes(ctx context.Context) {
	for _, route := range d.RIBRoutes() {
		d.EvaluateRoute(ctx, route)
	}
}

// RedistributeOut returns the best UP route per prefix, where best is
// the route with the highest priority. Down or unknown routes never
// appear.
func (d *Daemon) RedistributeOut() []Route {
	up := d.UpRoutes()

	best := make(map[rib.Key]Route, len(up))
	order := make([]rib.Key, 0, len(up))
	for _, route := range up {
		key := rib.Key(route.prefixVal.String())
		existing, ok := best[key]
		if !ok {
			best[key] = route
			order = append(order, key)
			continue
		}
		if route.Priority > existing.Priority {
			best[key] = route
		}
	}

	out := make([]Route, 0, len(order))
	for _, key := range order {
		out = append(out, best[key])
	}
	return out
}
