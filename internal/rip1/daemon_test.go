package rip1

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wrgeorge1983/rtrcp/internal/clock"
	"github.com/wrgeorge1983/rtrcp/internal/fp"
	"github.com/wrgeorge1983/rtrcp/internal/rib"
	"github.com/wrgeorge1983/rtrcp/internal/system"
)

func newTestDaemon(t *testing.T) (*Daemon, *clock.Manual, *fp.Fake) {
	t.Helper()
	clk := clock.NewManual(time.Unix(1_700_000_000, 0))
	fake := fp.NewFake()
	cfg := DefaultConfig()
	return NewDaemon(fake, clk, nil, cfg), clk, fake
}

// redistribute_in with a /32 STATIC route truncates to its classful
// boundary: spec §8 scenario 3.
func TestRedistributeInClassfulTruncation(t *testing.T) {
	d, _, _ := newTestDaemon(t)

	err := d.RedistributeIn([]rib.Record{
		{"prefix": "10.1.2.3/32", "next_hop": "192.0.2.1", "route_source": "STATIC"},
	})
	require.NoError(t, err)

	routes := d.RedistributedRoutes()
	require.Len(t, routes, 1)
	assert.Equal(t, "10.0.0.0/8", routes[0].prefixVal.String())
}

func TestRedistributeInRejectsUnlistedSource(t *testing.T) {
	d, _, _ := newTestDaemon(t)

	err := d.RedistributeIn([]rib.Record{
		{"prefix": "10.1.2.3/32", "next_hop": "192.0.2.1", "route_source": "OSPF"},
	})
	require.NoError(t, err)
	assert.Empty(t, d.RedistributedRoutes())
}

func TestRedistributeInAppliesDefaultMetric(t *testing.T) {
	d, _, _ := newTestDaemon(t)

	err := d.RedistributeIn([]rib.Record{
		{"prefix": "10.1.2.3/32", "next_hop": "192.0.2.1", "route_source": "STATIC"},
	})
	require.NoError(t, err)

	routes := d.RedistributedRoutes()
	require.Len(t, routes, 1)
	assert.Equal(t, 1, routes[0].Metric)
}

// Injected learned route poisons after RouteTimeout, then is removed
// after RouteTimeout+RouteGarbageTimer: spec §8 scenario 4.
func TestHousekeepingPoisonsThenRemoves(t *testing.T) {
	d, clk, _ := newTestDaemon(t)

	route := NewRoute(clk, netip.MustParsePrefix("10.0.0.0/8"), netip.MustParseAddr("192.0.2.1"), 1, system.SourceRIP1)
	d.learned.Add(route)

	clk.Advance(181 * time.Second)
	d.RunHousekeepingOnce()

	learned := d.LearnedRoutes()
	require.Len(t, learned, 1)
	assert.Equal(t, MetricInfinity, learned[0].Metric)
	assert.Equal(t, system.StatusDown, learned[0].Status)

	clk.Advance(120 * time.Second) // total elapsed: 301s
	d.RunHousekeepingOnce()

	assert.Empty(t, d.LearnedRoutes())
}

func TestHousekeepingLeavesFreshRoutesAlone(t *testing.T) {
	d, clk, _ := newTestDaemon(t)

	route := NewRoute(clk, netip.MustParsePrefix("10.0.0.0/8"), netip.MustParseAddr("192.0.2.1"), 1, system.SourceRIP1)
	d.learned.Add(route)

	clk.Advance(10 * time.Second)
	d.RunHousekeepingOnce()

	learned := d.LearnedRoutes()
	require.Len(t, learned, 1)
	assert.Equal(t, 1, learned[0].Metric)
}

// A REQUEST from a peer elicits exactly one unicast RESPONSE with the
// daemon's exported routes, metric+1 clamped, next_hop forced to
// 0.0.0.0: spec §8 scenario 5.
func TestHandleUDPBytesRepliesToRequest(t *testing.T) {
	d, clk, fake := newTestDaemon(t)

	route := NewRoute(clk, netip.MustParsePrefix("10.0.0.0/8"), netip.MustParseAddr("192.0.2.9"), 5, system.SourceRIP1)
	d.redistributed.Add(route)
	d.RefreshRIB()

	reqPkt := RequestEverything()
	data, err := reqPkt.Encode()
	require.NoError(t, err)

	d.HandleUDPBytes(data, "192.0.2.5", 520)

	sent := fake.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "192.0.2.5", sent[0].DestIP)
	assert.Equal(t, 520, sent[0].DestPort)

	resp, err := Decode(sent[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, CommandResponse, resp.Command)
	require.Len(t, resp.RTEs, 1)
	assert.Equal(t, uint32(6), resp.RTEs[0].Metric)
	assert.Equal(t, netip.IPv4Unspecified(), resp.RTEs[0].NextHop)
}

func TestHandleUDPBytesDropsOwnMessagesWhenConfigured(t *testing.T) {
	d, _, fake := newTestDaemon(t)
	fake.LocalIP = "203.0.113.5"

	reqPkt := RequestEverything()
	data, err := reqPkt.Encode()
	require.NoError(t, err)

	d.HandleUDPBytes(data, "203.0.113.5", 520)

	assert.Empty(t, fake.Sent())
}

func TestHandleUDPBytesLearnsResponseAndRewritesNextHop(t *testing.T) {
	d, _, _ := newTestDaemon(t)

	pkt := Packet{
		Command: CommandResponse,
		Version: ProtocolVersion,
		RTEs: []RTE{
			{Family: FamilyIPv4, Addr: netip.MustParseAddr("10.1.0.0"), NextHop: netip.IPv4Unspecified(), Metric: 3},
		},
	}
	data, err := pkt.Encode()
	require.NoError(t, err)

	d.HandleUDPBytes(data, "192.0.2.200", 520)

	learned := d.LearnedRoutes()
	require.Len(t, learned, 1)
	assert.Equal(t, "10.0.0.0/8", learned[0].prefixVal.String())
	assert.Equal(t, netip.MustParseAddr("192.0.2.200"), learned[0].nextHopVal)
	assert.Equal(t, system.StatusUp, learned[0].Status)
}

func TestHandleUDPBytesDropsMalformedPacket(t *testing.T) {
	d, _, fake := newTestDaemon(t)

	d.HandleUDPBytes([]byte{0xFF}, "192.0.2.1", 520)

	assert.Empty(t, fake.Sent())
	assert.Empty(t, d.LearnedRoutes())
}

func TestRedistributeOutFiltersPoisonedAndForeignSource(t *testing.T) {
	d, clk, _ := newTestDaemon(t)

	rip := NewRoute(clk, netip.MustParsePrefix("10.0.0.0/8"), netip.MustParseAddr("192.0.2.1"), 2, system.SourceRIP1)
	poisoned := NewRoute(clk, netip.MustParsePrefix("11.0.0.0/8"), netip.MustParseAddr("192.0.2.2"), MetricInfinity, system.SourceRIP1)
	d.learned.Add(rip)
	d.learned.Add(poisoned)
	d.RefreshRIB()

	out := d.RedistributeOut()
	require.Len(t, out, 1)
	assert.Equal(t, "10.0.0.0/8", out[0]["prefix"])
	assert.Equal(t, d.AdminDistance(), out[0]["admin_distance"])
}

func TestSendRequestUsesBroadcastAddr(t *testing.T) {
	d, _, fake := newTestDaemon(t)

	_, err := d.SendRequest()
	require.NoError(t, err)

	sent := fake.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, DefaultBroadcastAddr, sent[0].DestIP)
	assert.Equal(t, Port, sent[0].DestPort)
}

func TestTriggerRedistributionIsNoopWhenDisabled(t *testing.T) {
	d, _, _ := newTestDaemon(t)

	err := d.RedistributeIn([]rib.Record{
		{"prefix": "10.1.2.3/32", "next_hop": "192.0.2.1", "route_source": "STATIC"},
	})
	require.NoError(t, err)

	select {
	case <-d.RedistributeTrigger():
		t.Fatal("expected no trigger signal when TriggerRedistribution is unset")
	default:
	}
}

func TestTriggerRedistributionEnqueuesWhenEnabled(t *testing.T) {
	clk := clock.NewManual(time.Unix(1_700_000_000, 0))
	fake := fp.NewFake()
	cfg := DefaultConfig()
	cfg.TriggerRedistribution = true
	d := NewDaemon(fake, clk, nil, cfg)

	err := d.RedistributeIn([]rib.Record{
		{"prefix": "10.1.2.3/32", "next_hop": "192.0.2.1", "route_source": "STATIC"},
	})
	require.NoError(t, err)

	select {
	case <-d.RedistributeTrigger():
	default:
		t.Fatal("expected a trigger signal when TriggerRedistribution is set")
	}
}
