// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package rip1 implements a RIP v1 (RFC 1058) daemon: wire encode/decode,
// classful truncation, learned/redistributed/RIB tables, and the four
// periodic loops (listener, advertisements, requests, housekeeping).
package rip1

import (
	"net/netip"
	"time"

	"github.com/wrgeorge1983/rtrcp/internal/clock"
	"github.com/wrgeorge1983/rtrcp/internal/rib"
	"github.com/wrgeorge1983/rtrcp/internal/system"
)

// MetricInfinity is the RIP poison metric: unreachable.
const MetricInfinity = 16

// Route is a RIP1 route: intrinsic {prefix, next_hop}; supplemental
// {metric}.
type Route struct {
	prefixVal   netip.Prefix
	nextHopVal  netip.Addr
	Metric      int
	RouteSource system.SourceCode
	Status      system.RouteStatus
	LastUpdated time.Time
}

var routeSchema = rib.FieldSchema{
	Intrinsic:    []string{"prefix", "next_hop"},
	Supplemental: []string{"metric"},
	Optional:     []string{"last_updated", "status", "route_source"},
}

// NewRoute constructs a Route in RouteStatus UNKNOWN, defaulting
// route_source to RIP1 when unset.
func NewRoute(clk clock.Clock, prefix netip.Prefix, nextHop netip.Addr, metric int, source system.SourceCode) Route {
	if source == "" {
		source = system.SourceRIP1
	}
	return Route{
		prefixVal:   prefix,
		nextHopVal:  nextHop,
		Metric:      clampMetric(metric),
		RouteSource: source,
		Status:      system.StatusUnknown,
		LastUpdated: clk.Now(),
	}
}

func (r Route) RouteKey() rib.Key    { return rib.Key(r.prefixVal.String() + "|" + r.nextHopVal.String()) }
func (r Route) Prefix() netip.Prefix { return r.prefixVal }
func (r Route) NextHop() netip.Addr  { return r.nextHopVal }

func (r Route) AsRecord() rib.Record {
	return rib.Record{
		"prefix":       r.prefixVal.String(),
		"next_hop":     r.nextHopVal.String(),
		"metric":       r.Metric,
		"status":       string(r.Status),
		"last_updated": r.LastUpdated,
		"route_source": string(r.RouteSource),
	}
}

// Classful returns r with its prefix truncated to the classful boundary
// per §4.3.2. Routes whose prefix falls in class D/E, or is not IPv4,
// have no classful representation; for those Classful returns a
// ProtocolDecode error.
func (r Route) Classful() (Route, error) {
	pfx, err := ClassfulPrefix(r.prefixVal)
	if err != nil {
		return Route{}, err
	}
	out := r
	out.prefixVal = pfx
	return out, nil
}

// DecodeRoute returns a rib.Decoder building a Route from a Record.
// Decoded routes are NOT classful-truncated here; callers that need
// truncation (redistribute_in, learned-route insertion) call Classful
// explicitly, since Search/Export callers may legitimately decode a
// Route that was already stored classful.
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

		source := system.SourceRIP1
		if v, ok := rec["route_source"]; ok && asString(v) != "" {
			source = system.SourceCode(asString(v))
		}

		route := Route{
			prefixVal:   pfx,
			nextHopVal:  nh,
			Metric:      clampMetric(asInt(rec["metric"])),
			RouteSource: source,
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

func clampMetric(m int) int {
	if m < 1 {
		return 1
	}
	if m > MetricInfinity {
		return MetricInfinity
	}
	return m
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
