// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package cp

import (
	"context"
	"net/netip"
	"sync"

	"github.com/wrgeorge1983/rtrcp/internal/clock"
	"github.com/wrgeorge1983/rtrcp/internal/errors"
	"github.com/wrgeorge1983/rtrcp/internal/logging"
	"github.com/wrgeorge1983/rtrcp/internal/rib"
	"github.com/wrgeorge1983/rtrcp/internal/system"
)

// StaticRouteSpec is one operator-configured static route, matching a
// table entry in the control_plane TOML table's static_routes array.
type StaticRouteSpec struct {
	Prefix        string
	NextHop       string
	AdminDistance int
}

// Config holds the operator-supplied settings for a Daemon, matching the
// control_plane table in the TOML configuration file.
type Config struct {
	Hostname          string
	StaticRoutes      []StaticRouteSpec
	SLAAdminDistance  int
	RIP1AdminDistance int
}

// DefaultConfig returns the spec-mandated peer admin distances: SLA 1,
// RIP1 120.
func DefaultConfig() Config {
	return Config{SLAAdminDistance: 1, RIP1AdminDistance: 120}
}

// Daemon is the Control Plane arbiter: a static route table, a composite
// RIB assembled from static routes plus each enabled peer's best routes,
// and best-path selection by administrative distance.
type Daemon struct {
	mu sync.Mutex

	clock  clock.Clock
	logger *logging.Logger

	hostname string

	staticTable  *rib.Table[StaticRoute]
	compositeRIB *rib.Table[Route]

	sla              SLAPeer
	slaAdminDistance int

	rip1              RIP1Peer
	rip1AdminDistance int
}

// NewDaemon constructs a Daemon. sla and rip1 may be nil, meaning that
// collaborator is not wired to this instance. Callers in this module
// leave a peer nil only when its base URL is not configured; the
// rp_sla/rp_rip1 enabled flags are not consulted.
func NewDaemon(clk clock.Clock, logger *logging.Logger, hostname string, sla SLAPeer, slaAdminDistance int, rip1 RIP1Peer, rip1AdminDistance int) *Daemon {
	if logger == nil {
		logger = logging.Default()
	}

	return &Daemon{
		clock:             clk,
		logger:            logger.WithComponent("controlplane"),
		hostname:          hostname,
		staticTable:       rib.NewTable[StaticRoute](DecodeStaticRoute(clk)),
		compositeRIB:      rib.NewTable[Route](DecodeRoute(clk)),
		sla:               sla,
		slaAdminDistance:  slaAdminDistance,
		rip1:              rip1,
		rip1AdminDistance: rip1AdminDistance,
	}
}

// NewDaemonFromConfig builds a Daemon from cfg, seeding the static table
// (and the composite RIB, via AddStaticRoute) from cfg.StaticRoutes.
func NewDaemonFromConfig(cfg Config, clk clock.Clock, logger *logging.Logger, sla SLAPeer, rip1 RIP1Peer) (*Daemon, error) {
	d := NewDaemon(clk, logger, cfg.Hostname, sla, cfg.SLAAdminDistance, rip1, cfg.RIP1AdminDistance)

	for _, spec := range cfg.StaticRoutes {
		pfx, err := netip.ParsePrefix(spec.Prefix)
		if err != nil {
			return nil, errors.Attr(errors.Wrap(err, errors.KindConfigInvalid, "invalid static route prefix"), "prefix", spec.Prefix)
		}
		nh, err := netip.ParseAddr(spec.NextHop)
		if err != nil {
			return nil, errors.Attr(errors.Wrap(err, errors.KindConfigInvalid, "invalid static route next_hop"), "next_hop", spec.NextHop)
		}
		adminDistance := spec.AdminDistance
		if adminDistance == 0 {
			adminDistance = 1
		}
		d.AddStaticRoute(NewStaticRoute(clk, pfx, nh, adminDistance))
	}

	return d, nil
}

// Hostname returns this instance's configured hostname.
func (d *Daemon) Hostname() string { return d.hostname }

// SLAEnabled reports whether this instance has an rp_sla collaborator.
func (d *Daemon) SLAEnabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sla != nil
}

// RIP1Enabled reports whether this instance has an rp_rip1 collaborator.
func (d *Daemon) RIP1Enabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rip1 != nil
}

// AddStaticRoute adds route to both the static table and the composite
// RIB, per the source's add_static_route(rib_sync=true) default.
func (d *Daemon) AddStaticRoute(route StaticRoute) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.staticTable.Add(route)
	d.compositeRIB.Add(route.ToRoute())
}

// RemoveStaticRoute discards route from both the static table and the
// composite RIB.
func (d *Daemon) RemoveStaticRoute(route StaticRoute) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.staticTable.Remove(route)
	d.compositeRIB.Remove(route.ToRoute())
}

// StaticRoutes returns every operator-configured static route.
func (d *Daemon) StaticRoutes() []StaticRoute {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.staticTable.Items()
}

// Routes returns every route currently in the composite RIB.
func (d *Daemon) Routes() []Route {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.compositeRIB.Items()
}

// Search returns composite-RIB routes matching filter, recovering the
// richer rib_entry_search surface original_source/src/generic/rib.py
// exposes beyond spec.md's minimal operation set (§6's get_routes query
// parameters).
func (d *Daemon) Search(filter rib.SearchFilter) []Route {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.compositeRIB.Search(filter)
}

// SearchStaticRoutes returns static routes matching filter, for
// get_static_routes' equivalent query parameters.
func (d *Daemon) SearchStaticRoutes(filter rib.SearchFilter) []StaticRoute {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.staticTable.Search(filter)
}

// RefreshRIB rebuilds the composite RIB: static routes, plus each enabled
// peer's best (UP-filtered, redistribute_out) routes tagged with that
// peer's source code and admin_distance, per §4.4. A peer that fails to
// answer is logged and its contribution is simply absent from the
// rebuilt RIB — refresh never aborts because one collaborator is
// unreachable (§7).
func (d *Daemon) RefreshRIB(ctx context.Context) error {
	d.mu.Lock()
	staticRoutes := d.staticTable.Items()
	sla := d.sla
	slaAD := d.slaAdminDistance
	rip1 := d.rip1
	rip1AD := d.rip1AdminDistance
	d.mu.Unlock()

	fresh := rib.NewTable[Route](DecodeRoute(d.clock))
	for _, s := range staticRoutes {
		fresh.Add(s.ToRoute())
	}

	if sla != nil {
		records, err := sla.BestRoutes(ctx)
		if err != nil {
			d.logger.Warn("rp_sla best_routes fetch failed", "error", err.Error())
		} else {
			d.importPeerRecords(fresh, records, system.SourceSLA, slaAD)
		}
	}

	if rip1 != nil {
		records, err := rip1.BestRoutes(ctx)
		if err != nil {
			d.logger.Warn("rp_rip1 best_routes fetch failed", "error", err.Error())
		} else {
			d.importPeerRecords(fresh, records, system.SourceRIP1, rip1AD)
		}
	}

	d.mu.Lock()
	d.compositeRIB = fresh
	d.mu.Unlock()
	return nil
}

// importPeerRecords filters records to status=UP, tags each with source
// and (when the record doesn't already carry one) adminDistance, and
// imports the result into table. A malformed record is logged and
// skipped rather than aborting the whole refresh.
func (d *Daemon) importPeerRecords(table *rib.Table[Route], records []rib.Record, source system.SourceCode, adminDistance int) {
	for _, rec := range records {
		if status, ok := rec["status"].(string); ok && status != "" && system.RouteStatus(status) != system.StatusUp {
			continue
		}

		tagged := make(rib.Record, len(rec)+2)
		for k, v := range rec {
			tagged[k] = v
		}
		tagged["route_source"] = string(source)
		if _, ok := tagged["admin_distance"]; !ok {
			tagged["admin_distance"] = adminDistance
		}

		if err := table.Import([]rib.Record{tagged}, false); err != nil {
			d.logger.Warn("skipping malformed peer route", "source", string(source), "error", err.Error())
		}
	}
}

// Redistribute rebuilds the composite RIB (RefreshRIB), then pushes its
// export_routes to the rp_rip1 collaborator's redistribute_in — the only
// peer kind this arbiter redistributes into, per §4.3.6's accept-list
// design (rp_sla has no redistribute_in). A failed push is logged and
// does not abort the cycle.
func (d *Daemon) Redistribute(ctx context.Context) error {
	if err := d.RefreshRIB(ctx); err != nil {
		return err
	}

	exported := d.ExportRoutes()
	records := make([]rib.Record, 0, len(exported))
	for _, r := range exported {
		records = append(records, r.AsRecord())
	}

	d.mu.Lock()
	rip1 := d.rip1
	d.mu.Unlock()

	if rip1 != nil {
		if err := rip1.RedistributeIn(ctx, records); err != nil {
			d.logger.Warn("rp_rip1 redistribute_in failed", "error", err.Error())
		}
	}

	return nil
}

// ExportRoutes collapses the composite RIB to at most one UP route per
// prefix by minimum admin_distance, per §4.4's best-path rule. Ties
// (equal admin_distance) are broken deterministically by ascending
// lexicographic SourceCode, the §9 Open Question 2 resolution, rather
// than left to unspecified insertion order.
func (d *Daemon) ExportRoutes() []Route {
	items := d.Routes()

	up := make([]Route, 0, len(items))
	for _, r := range items {
		if r.Status == system.StatusUp {
			up = append(up, r)
		}
	}

	return rib.BestByPrefix(up, func(a, b Route) bool {
		if a.AdminDistance != b.AdminDistance {
			return a.AdminDistance < b.AdminDistance
		}
		return a.RouteSource < b.RouteSource
	})
}

// RPSLAEvaluateRoutes forwards an on-demand evaluate_routes request to
// the rp_sla collaborator. Returns KindConfigInvalid if rp_sla isn't
// enabled for this instance, mirroring the original's
// {"error": "RP_SLA not enabled"}.
func (d *Daemon) RPSLAEvaluateRoutes(ctx context.Context) error {
	d.mu.Lock()
	sla := d.sla
	d.mu.Unlock()

	if sla == nil {
		return errors.New(errors.KindConfigInvalid, "rp_sla not enabled for this control plane instance")
	}
	return sla.EvaluateRoutes(ctx)
}
