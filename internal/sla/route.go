// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package sla implements the SLA daemon: a liveness/latency probe-driven
// routing source that promotes or demotes configured routes by measuring
// round-trip time against a per-route threshold.
package sla

import (
	"net/netip"
	"time"

	"github.com/wrgeorge1983/rtrcp/internal/clock"
	"github.com/wrgeorge1983/rtrcp/internal/rib"
	"github.com/wrgeorge1983/rtrcp/internal/system"
)

// Route is an SLA-configured route: intrinsic {prefix, next_hop};
// supplemental {priority, threshold_ms}.
type Route struct {
	prefixVal   netip.Prefix
	nextHopVal  netip.Addr
	Priority    int
	ThresholdMs int
	Status      system.RouteStatus
	LastUpdated time.Time
}

var routeSchema = rib.FieldSchema{
	Intrinsic:    []string{"prefix", "next_hop"},
	Supplemental: []string{"priority", "threshold_ms"},
	Optional:     []string{"last_updated", "status", "route_source"},
}

// NewRoute constructs a Route in RouteStatus UNKNOWN, per the spec: all
// configured/learned routes begin UNKNOWN.
func NewRoute(clk clock.Clock, prefix netip.Prefix, nextHop netip.Addr, priority, thresholdMs int) Route {
	return Route{
		prefixVal:   prefix,
		nextHopVal:  nextHop,
		Priority:    priority,
		ThresholdMs: thresholdMs,
		Status:      system.StatusUnknown,
		LastUpdated: clk.Now(),
	}
}

func (r Route) RouteKey() rib.Key { return rib.Key(r.prefixVal.String() + "|" + r.nextHopVal.String()) }
func (r Route) Prefix() netip.Prefix { return r.prefixVal }
func (r Route) NextHop() netip.Addr  { return r.nextHopVal }

func (r Route) AsRecord() rib.Record {
	return rib.Record{
		"prefix":       r.prefixVal.String(),
		"next_hop":     r.nextHopVal.String(),
		"priority":     r.Priority,
		"threshold_ms": r.ThresholdMs,
		"status":       string(r.Status),
		"last_updated": r.LastUpdated,
		"route_source": string(system.SourceSLA),
	}
}

// DecodeRoute returns a rib.Decoder building a Route from a Record.
func DecodeRoute(clk clock.Clock) rib.Decoder[Route] {
	return func(rec rib.Record, strict bool) (Route, error) {
		if err := rib.ValidateFields(rec, routeSchema, strict); err != nil {
			return Route{}, err
		}

		pfx, err := netip.ParsePrefix(asString(rec["prefix"]))
		if err != nil {
			return Route{}, err
		}
		nh, err := netip.ParseAddr(asString(rec["next_hop"]))
		if err != nil {
			return Route{}, err
		}

		route := Route{
			prefixVal:   pfx,
			nextHopVal:  nh,
			Priority:    asInt(rec["priority"]),
			ThresholdMs: asInt(rec["threshold_ms"]),
			Status:      system.StatusUnknown,
			LastUpdated: clk.Now(),
		}

		if v, ok := rec["status"]; ok && asString(v) != "" {
			route.Status = system.RouteStatus(asString(v))
		}
		if v, ok := rec["last_updated"]; ok {
			if t, ok := v.(time.Time); ok {
				route.LastUpdated = t
			}
		}

		return route, nil
	}
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
