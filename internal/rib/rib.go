// Package rib implements the generic Route / RIB core shared by every
// daemon: route identity, field validation, and a set-semantic table
// supporting add/remove/export/import/items/search.
package rib

import (
	"net/netip"
	"sort"
	"sync"

	"github.com/gaissmai/bart"

	"github.com/wrgeorge1983/rtrcp/internal/errors"
)

// Key is the identity of a route: the tuple a variant declares as
// intrinsic, rendered to a single comparable value. Two routes with equal
// Key are the same route and may not coexist in the same Table.
type Key string

// Record is the wire/storage representation of a route: a flat map of
// field name to value, exactly as exported by RIB.Export and accepted by
// RIB.Import. Field names are the keys a variant's AsRecord produces.
type Record map[string]any

// Route is implemented by every protocol-specific route variant
// (CP_Route, CP_StaticRoute, SLA_Route, RIP1_Route).
type Route interface {
	RouteKey() Key
	Prefix() netip.Prefix
	NextHop() netip.Addr
	AsRecord() Record
}

// Decoder builds a Route of a concrete variant from a Record, validating
// intrinsic/supplemental/optional fields per the variant's schema. strict
// controls whether unknown fields are rejected (the default) or ignored.
type Decoder[T Route] func(rec Record, strict bool) (T, error)

// FieldSchema names a variant's three field classes for validation.
type FieldSchema struct {
	Intrinsic    []string
	Supplemental []string
	Optional     []string
}

// ValidateFields rejects a Record missing any intrinsic field, and (unless
// !strict) rejects any field not named by the schema at all.
func ValidateFields(rec Record, schema FieldSchema, strict bool) error {
	for _, f := range schema.Intrinsic {
		if _, ok := rec[f]; !ok {
			return errors.Attr(errors.New(errors.KindFieldMissing, "missing intrinsic field"), "field", f)
		}
	}

	if !strict {
		return nil
	}

	known := make(map[string]bool, len(schema.Intrinsic)+len(schema.Supplemental)+len(schema.Optional))
	for _, f := range schema.Intrinsic {
		known[f] = true
	}
	for _, f := range schema.Supplemental {
		known[f] = true
	}
	for _, f := range schema.Optional {
		known[f] = true
	}

	for f := range rec {
		if !known[f] {
			return errors.Attr(errors.New(errors.KindFieldUnknown, "unexpected field"), "field", f)
		}
	}

	return nil
}

// Table is a set of routes of a single variant, indexed by identity and
// additionally by prefix (backed by a bart.Table for efficient exact-match
// lookup and iteration, per the routing-table library's intended use).
//
// A Table is safe for concurrent use.
type Table[T Route] struct {
	mu      sync.Mutex
	entries map[Key]T
	byPfx   *bart.Table[map[Key]T]
	decode  Decoder[T]
}

// NewTable constructs an empty Table using decode to build routes from
// Records passed to Import.
func NewTable[T Route](decode Decoder[T]) *Table[T] {
	return &Table[T]{
		entries: make(map[Key]T),
		byPfx:   new(bart.Table[map[Key]T]),
		decode:  decode,
	}
}

// Add inserts route, overwriting any existing route with the same identity
// (idempotent overwrite, per the RIB invariant that no two routes with
// identical identity coexist).
func (t *Table[T]) Add(route T) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.addLocked(route)
}

func (t *Table[T]) addLocked(route T) {
	key := route.RouteKey()
	t.entries[key] = route

	pfx := route.Prefix()
	byKey, _ := t.byPfx.Get(pfx)
	if byKey == nil {
		byKey = make(map[Key]T)
	}
	byKey[key] = route
	t.byPfx.Insert(pfx, byKey)
}

// Remove discards route if present. Discard is an alias, matching the
// source protocol's RIB_Base.discard = remove convention.
func (t *Table[T]) Remove(route T) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.removeLocked(route.RouteKey())
}

// Discard is an alias for Remove.
func (t *Table[T]) Discard(route T) { t.Remove(route) }

func (t *Table[T]) removeLocked(key Key) {
	existing, ok := t.entries[key]
	if !ok {
		return
	}
	delete(t.entries, key)

	pfx := existing.Prefix()
	if byKey, ok := t.byPfx.Get(pfx); ok {
		delete(byKey, key)
		if len(byKey) == 0 {
			t.byPfx.Delete(pfx)
		} else {
			t.byPfx.Insert(pfx, byKey)
		}
	}
}

// Items returns a snapshot copy of every route in the table.
func (t *Table[T]) Items() []T {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]T, 0, len(t.entries))
	for _, r := range t.entries {
		out = append(out, r)
	}
	return out
}

// Len returns the number of routes currently stored.
func (t *Table[T]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Export returns every route as a Record, suitable for Import into another
// Table of a (possibly different) variant.
func (t *Table[T]) Export() []Record {
	items := t.Items()
	out := make([]Record, 0, len(items))
	for _, r := range items {
		out = append(out, r.AsRecord())
	}
	return out
}

// Import decodes each Record via the table's Decoder and adds the result.
// A Record missing an intrinsic field, or (in strict mode) carrying an
// unknown field, is rejected and import stops at the first error.
func (t *Table[T]) Import(records []Record, strict bool) error {
	for _, rec := range records {
		route, err := t.decode(rec, strict)
		if err != nil {
			return err
		}
		t.Add(route)
	}
	return nil
}

// ImportRoutes adds already-constructed routes directly (the common case
// when refreshing a RIB from another in-process Table's Items()).
func (t *Table[T]) ImportRoutes(routes []T) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, r := range routes {
		t.addLocked(r)
	}
}

// SearchFilter narrows Search to routes matching the given fields; a zero
// value field means "don't filter on this". Source matches the
// "route_source" field of AsRecord(), since Route itself doesn't carry a
// source accessor shared across every variant.
type SearchFilter struct {
	Prefix  netip.Prefix
	NextHop netip.Addr
	Source  string
}

// Search returns routes matching filter. Mirroring the original
// implementation's own rib_entry_search quirk: if no route matches the
// filter, Search returns every route rather than an empty set.
func (t *Table[T]) Search(filter SearchFilter) []T {
	items := t.Items()

	hasPrefix := filter.Prefix.IsValid()
	hasNextHop := filter.NextHop.IsValid()
	hasSource := filter.Source != ""

	if !hasPrefix && !hasNextHop && !hasSource {
		return items
	}

	var matched []T
	for _, r := range items {
		if hasPrefix && r.Prefix() != filter.Prefix {
			continue
		}
		if hasNextHop && r.NextHop() != filter.NextHop {
			continue
		}
		if hasSource {
			src, _ := r.AsRecord()["route_source"].(string)
			if src != filter.Source {
				continue
			}
		}
		matched = append(matched, r)
	}

	if len(matched) == 0 {
		return items
	}
	return matched
}

// BestByPrefix collapses routes to at most one per prefix using less to
// decide which of two competing routes for the same prefix wins (less(a,
// b) reports whether a should be preferred over b). Ties retain whichever
// route was encountered first in Items' (unspecified) order; callers
// needing a deterministic tie-break must make less a total order.
func BestByPrefix[T Route](routes []T, less func(a, b T) bool) []T {
	best := make(map[netip.Prefix]T)
	order := make([]netip.Prefix, 0)

	for _, r := range routes {
		pfx := r.Prefix()
		cur, ok := best[pfx]
		if !ok {
			best[pfx] = r
			order = append(order, pfx)
			continue
		}
		if less(r, cur) {
			best[pfx] = r
		}
	}

	sort.Slice(order, func(i, j int) bool { return order[i].String() < order[j].String() })

	out := make([]T, 0, len(order))
	for _, pfx := range order {
		out = append(out, best[pfx])
	}
	return out
}
