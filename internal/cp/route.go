// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package cp implements the Control Plane arbiter: a static route table,
// a composite RIB assembled from static routes plus each enabled daemon's
// redistribute_out, and best-path selection by administrative distance.
package cp

import (
	"net/netip"
	"time"

	"github.com/wrgeorge1983/rtrcp/internal/clock"
	"github.com/wrgeorge1983/rtrcp/internal/rib"
	"github.com/wrgeorge1983/rtrcp/internal/system"
)

// Route is a composite-RIB route: intrinsic {prefix, next_hop,
// route_source}, supplemental {admin_distance}. Distinct sources coexist
// per prefix because route_source participates in identity.
type Route struct {
	prefixVal      netip.Prefix
	nextHopVal     netip.Addr
	RouteSource    system.SourceCode
	AdminDistance  int
	Status         system.RouteStatus
	LastUpdated    time.Time
}

var routeSchema = rib.FieldSchema{
	Intrinsic:    []string{"prefix", "next_hop", "route_source"},
	Supplemental: []string{"admin_distance"},
	Optional:     []string{"last_updated", "status"},
}

// NewRoute constructs a Route, stamping LastUpdated from clk.
func NewRoute(clk clock.Clock, prefix netip.Prefix, nextHop netip.Addr, source system.SourceCode, adminDistance int, status system.RouteStatus) Route {
	if status == "" {
		status = system.StatusUp
	}
	return Route{
		prefixVal:     prefix,
		nextHopVal:    nextHop,
		RouteSource:   source,
		AdminDistance: adminDistance,
		Status:        status,
		LastUpdated:   clk.Now(),
	}
}

func (r Route) RouteKey() rib.Key {
	return rib.Key(r.prefixVal.String() + "|" + r.nextHopVal.String() + "|" + string(r.RouteSource))
}

func (r Route) Prefix() netip.Prefix  { return r.prefixVal }
func (r Route) NextHop() netip.Addr   { return r.nextHopVal }

func (r Route) AsRecord() rib.Record {
	return rib.Record{
		"prefix":         r.prefixVal.String(),
		"next_hop":       r.nextHopVal.String(),
		"route_source":   string(r.RouteSource),
		"admin_distance": r.AdminDistance,
		"status":         string(r.Status),
		"last_updated":   r.LastUpdated,
	}
}

// DecodeRoute returns a rib.Decoder that builds a Route from a Record, per
// routeSchema.
func DecodeRoute(clk clock.Clock) rib.Decoder[Route] {
	return func(in rib.Record, strict bool) (Route, error) {
		if err := rib.ValidateFields(in, routeSchema, strict); err != nil {
			return Route{}, err
		}
		return decodeRouteFields(clk, in)
	}
}

func decodeRouteFields(clk clock.Clock, rec rib.Record) (Route, error) {
	pfx, nh, err := parsePrefixNextHop(rec)
	if err != nil {
		return Route{}, err
	}

	source := system.SourceCode(asString(rec["route_source"]))

	adminDistance := 1
	if v, ok := rec["admin_distance"]; ok {
		adminDistance = asInt(v)
	}

	status := system.StatusUp
	if v, ok := rec["status"]; ok && asString(v) != "" {
		status = system.RouteStatus(asString(v))
	}

	lastUpdated := clk.Now()
	if v, ok := rec["last_updated"]; ok {
		if t, ok := v.(time.Time); ok {
			lastUpdated = t
		}
	}

	return Route{
		prefixVal:     pfx,
		nextHopVal:    nh,
		RouteSource:   source,
		AdminDistance: adminDistance,
		Status:        status,
		LastUpdated:   lastUpdated,
	}, nil
}

// StaticRoute is an operator-configured route: intrinsic {prefix,
// next_hop}; supplemental {admin_distance, route_source=STATIC}.
type StaticRoute struct {
	prefixVal     netip.Prefix
	nextHopVal    netip.Addr
	AdminDistance int
	LastUpdated   time.Time
}

var staticRouteSchema = rib.FieldSchema{
	Intrinsic:    []string{"prefix", "next_hop"},
	Supplemental: []string{"admin_distance", "route_source"},
	Optional:     []string{"last_updated"},
}

// NewStaticRoute constructs a StaticRoute, stamping LastUpdated from clk.
func NewStaticRoute(clk clock.Clock, prefix netip.Prefix, nextHop netip.Addr, adminDistance int) StaticRoute {
	return StaticRoute{prefixVal: prefix, nextHopVal: nextHop, AdminDistance: adminDistance, LastUpdated: clk.Now()}
}

func (r StaticRoute) RouteKey() rib.Key { return rib.Key(r.prefixVal.String() + "|" + r.nextHopVal.String()) }
func (r StaticRoute) Prefix() netip.Prefix { return r.prefixVal }
func (r StaticRoute) NextHop() netip.Addr  { return r.nextHopVal }

func (r StaticRoute) AsRecord() rib.Record {
	return rib.Record{
		"prefix":         r.prefixVal.String(),
		"next_hop":       r.nextHopVal.String(),
		"admin_distance": r.AdminDistance,
		"route_source":   string(system.SourceStatic),
		"last_updated":   r.LastUpdated,
	}
}

// ToRoute exports a StaticRoute as a composite Route tagged source=STATIC,
// status=UP (static routes are always considered reachable).
func (r StaticRoute) ToRoute() Route {
	return Route{
		prefixVal:     r.prefixVal,
		nextHopVal:    r.nextHopVal,
		RouteSource:   system.SourceStatic,
		AdminDistance: r.AdminDistance,
		Status:        system.StatusUp,
		LastUpdated:   r.LastUpdated,
	}
}

// DecodeStaticRoute builds a StaticRoute from a Record, per staticRouteSchema.
func DecodeStaticRoute(clk clock.Clock) rib.Decoder[StaticRoute] {
	return func(rec rib.Record, strict bool) (StaticRoute, error) {
		if err := rib.ValidateFields(rec, staticRouteSchema, strict); err != nil {
			return StaticRoute{}, err
		}
		pfx, nh, err := parsePrefixNextHop(rec)
		if err != nil {
			return StaticRoute{}, err
		}
		adminDistance := 1
		if v, ok := rec["admin_distance"]; ok {
			adminDistance = asInt(v)
		}
		lastUpdated := clk.Now()
		if v, ok := rec["last_updated"]; ok {
			if t, ok := v.(time.Time); ok {
				lastUpdated = t
			}
		}
		return StaticRoute{prefixVal: pfx, nextHopVal: nh, AdminDistance: adminDistance, LastUpdated: lastUpdated}, nil
	}
}

func parsePrefixNextHop(rec rib.Record) (netip.Prefix, netip.Addr, error) {
	pfx, err := netip.ParsePrefix(asString(rec["prefix"]))
	if err != nil {
		return netip.Prefix{}, netip.Addr{}, err
	}
	nh, err := netip.ParseAddr(asString(rec["next_hop"]))
	if err != nil {
		return netip.Prefix{}, netip.Addr{}, err
	}
	return pfx, nh, nil
}

func asString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
