package rib

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testRoute is a minimal Route used only to exercise the generic Table.
type testRoute struct {
	prefix  netip.Prefix
	nextHop netip.Addr
	metric  int
	source  string
}

func (r testRoute) RouteKey() Key { return Key(r.prefix.String() + "|" + r.nextHop.String()) }
func (r testRoute) Prefix() netip.Prefix { return r.prefix }
func (r testRoute) NextHop() netip.Addr  { return r.nextHop }
func (r testRoute) AsRecord() Record {
	return Record{"prefix": r.prefix.String(), "next_hop": r.nextHop.String(), "metric": r.metric, "route_source": r.source}
}

var testSchema = FieldSchema{
	Intrinsic:    []string{"prefix", "next_hop"},
	Supplemental: []string{"metric"},
}

func decodeTestRoute(rec Record, strict bool) (testRoute, error) {
	if err := ValidateFields(rec, testSchema, strict); err != nil {
		return testRoute{}, err
	}
	pfx, err := netip.ParsePrefix(rec["prefix"].(string))
	if err != nil {
		return testRoute{}, err
	}
	nh, err := netip.ParseAddr(rec["next_hop"].(string))
	if err != nil {
		return testRoute{}, err
	}
	metric := 1
	if m, ok := rec["metric"]; ok {
		metric = m.(int)
	}
	return testRoute{prefix: pfx, nextHop: nh, metric: metric}, nil
}

func mustPrefix(s string) netip.Prefix {
	p, err := netip.ParsePrefix(s)
	if err != nil {
		panic(err)
	}
	return p
}

func mustAddr(s string) netip.Addr {
	a, err := netip.ParseAddr(s)
	if err != nil {
		panic(err)
	}
	return a
}

func TestAddIsIdempotentOverwrite(t *testing.T) {
	tbl := NewTable(decodeTestRoute)
	r1 := testRoute{prefix: mustPrefix("10.0.0.0/8"), nextHop: mustAddr("192.0.2.1"), metric: 1}
	r2 := testRoute{prefix: mustPrefix("10.0.0.0/8"), nextHop: mustAddr("192.0.2.1"), metric: 5}

	tbl.Add(r1)
	tbl.Add(r2)

	assert.Equal(t, 1, tbl.Len())
	assert.Equal(t, 5, tbl.Items()[0].metric)
}

func TestRemoveDiscard(t *testing.T) {
	tbl := NewTable(decodeTestRoute)
	r := testRoute{prefix: mustPrefix("10.0.0.0/8"), nextHop: mustAddr("192.0.2.1")}
	tbl.Add(r)
	require.Equal(t, 1, tbl.Len())

	tbl.Discard(r)
	assert.Equal(t, 0, tbl.Len())

	// Remove of an absent route is a no-op, not an error.
	tbl.Remove(r)
	assert.Equal(t, 0, tbl.Len())
}

func TestExportImportRoundTrip(t *testing.T) {
	src := NewTable(decodeTestRoute)
	src.Add(testRoute{prefix: mustPrefix("10.0.0.0/8"), nextHop: mustAddr("192.0.2.1"), metric: 3})
	src.Add(testRoute{prefix: mustPrefix("172.16.0.0/16"), nextHop: mustAddr("192.0.2.2"), metric: 7})

	dst := NewTable(decodeTestRoute)
	err := dst.Import(src.Export(), true)
	require.NoError(t, err)

	assert.ElementsMatch(t, src.Items(), dst.Items())
}

func TestImportRejectsMissingIntrinsicField(t *testing.T) {
	tbl := NewTable(decodeTestRoute)
	err := tbl.Import([]Record{{"next_hop": "192.0.2.1"}}, true)
	require.Error(t, err)
	assert.Equal(t, 0, tbl.Len())
}

func TestImportStrictRejectsUnknownField(t *testing.T) {
	tbl := NewTable(decodeTestRoute)
	err := tbl.Import([]Record{{
		"prefix": "10.0.0.0/8", "next_hop": "192.0.2.1", "bogus": "x",
	}}, true)
	require.Error(t, err)
}

func TestImportNonStrictAllowsUnknownField(t *testing.T) {
	tbl := NewTable(decodeTestRoute)
	err := tbl.Import([]Record{{
		"prefix": "10.0.0.0/8", "next_hop": "192.0.2.1", "bogus": "x",
	}}, false)
	require.NoError(t, err)
	assert.Equal(t, 1, tbl.Len())
}

func TestSearchFiltersOrFallsBackToAll(t *testing.T) {
	tbl := NewTable(decodeTestRoute)
	a := testRoute{prefix: mustPrefix("10.0.0.0/8"), nextHop: mustAddr("192.0.2.1")}
	b := testRoute{prefix: mustPrefix("172.16.0.0/16"), nextHop: mustAddr("192.0.2.2")}
	tbl.Add(a)
	tbl.Add(b)

	matched := tbl.Search(SearchFilter{Prefix: mustPrefix("10.0.0.0/8")})
	require.Len(t, matched, 1)
	assert.Equal(t, a, matched[0])

	// No route matches this prefix -> falls back to returning everything.
	all := tbl.Search(SearchFilter{Prefix: mustPrefix("192.0.2.0/24")})
	assert.Len(t, all, 2)
}

func TestSearchFiltersBySource(t *testing.T) {
	tbl := NewTable(decodeTestRoute)
	a := testRoute{prefix: mustPrefix("10.0.0.0/8"), nextHop: mustAddr("192.0.2.1"), source: "STATIC"}
	b := testRoute{prefix: mustPrefix("172.16.0.0/16"), nextHop: mustAddr("192.0.2.2"), source: "RIP1"}
	tbl.Add(a)
	tbl.Add(b)

	matched := tbl.Search(SearchFilter{Source: "RIP1"})
	require.Len(t, matched, 1)
	assert.Equal(t, b, matched[0])
}

func TestBestByPrefixMinMetric(t *testing.T) {
	routes := []testRoute{
		{prefix: mustPrefix("10.0.0.0/8"), nextHop: mustAddr("192.0.2.1"), metric: 5},
		{prefix: mustPrefix("10.0.0.0/8"), nextHop: mustAddr("192.0.2.2"), metric: 2},
		{prefix: mustPrefix("172.16.0.0/16"), nextHop: mustAddr("192.0.2.3"), metric: 1},
	}

	best := BestByPrefix(routes, func(a, b testRoute) bool { return a.metric < b.metric })
	require.Len(t, best, 2)

	byPrefix := map[string]testRoute{}
	for _, r := range best {
		byPrefix[r.prefix.String()] = r
	}
	assert.Equal(t, 2, byPrefix["10.0.0.0/8"].metric)
	assert.Equal(t, 1, byPrefix["172.16.0.0/16"].metric)
}
