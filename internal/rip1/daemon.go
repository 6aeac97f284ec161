// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package rip1

import (
	"net/netip"
	"sync"
	"time"

	"github.com/wrgeorge1983/rtrcp/internal/clock"
	"github.com/wrgeorge1983/rtrcp/internal/errors"
	"github.com/wrgeorge1983/rtrcp/internal/fp"
	"github.com/wrgeorge1983/rtrcp/internal/logging"
	"github.com/wrgeorge1983/rtrcp/internal/rib"
	"github.com/wrgeorge1983/rtrcp/internal/system"
)

const (
	// RouteTimeout is how long a learned route may go unrefreshed before
	// it is poisoned, per §4.3.4.
	RouteTimeout = 180 * time.Second
	// RouteGarbageTimer is the additional grace period after poisoning
	// before a route is removed outright.
	RouteGarbageTimer = 120 * time.Second
	// HousekeepingInterval is how often the aging loop runs.
	HousekeepingInterval = time.Second

	// DefaultAdvertisementInterval is how often an unsolicited RESPONSE
	// is sent.
	DefaultAdvertisementInterval = 5 * time.Second
	// DefaultRequestInterval is how often a REQUEST is sent.
	DefaultRequestInterval = 30 * time.Second

	// Port is the well-known RIP UDP port, used as both source and
	// destination per §4.3.1.
	Port = 520

	// DefaultBroadcastAddr is this implementation's default RIP
	// destination, per the Open Question in §9: the source varies
	// between a limited broadcast and a directed broadcast across
	// revisions, so this is made configurable rather than hard-coded.
	DefaultBroadcastAddr = "255.255.255.255"
)

// AcceptSource reports whether redistribute_in accepts routes with the
// given source. The zero value accepts nothing.
type AcceptSource map[system.SourceCode]bool

// DefaultAcceptSources is the default redistribute_in accept-list:
// STATIC and SLA, per §4.3.6's example.
func DefaultAcceptSources() AcceptSource {
	return AcceptSource{system.SourceStatic: true, system.SourceSLA: true}
}

// Config holds the operator-supplied settings for a Daemon, matching the
// rp_rip1 table in the TOML configuration file.
type Config struct {
	AdminDistance         int
	DefaultMetric         int
	BroadcastAddr         string
	AdvertisementInterval time.Duration
	RequestInterval       time.Duration
	RejectOwnMessages     bool
	TriggerRedistribution bool
	AcceptSources         AcceptSource
}

// DefaultConfig returns the spec-mandated defaults: admin_distance 120,
// default_metric 1.
func DefaultConfig() Config {
	return Config{
		AdminDistance:         120,
		DefaultMetric:         1,
		BroadcastAddr:         DefaultBroadcastAddr,
		AdvertisementInterval: DefaultAdvertisementInterval,
		RequestInterval:       DefaultRequestInterval,
		RejectOwnMessages:     true,
		AcceptSources:         DefaultAcceptSources(),
	}
}

// Daemon is a RIP v1 speaker: it owns learned, redistributed, and RIB
// tables, and drives the wire protocol over a ForwardingPlane.
type Daemon struct {
	mu     sync.Mutex
	fp     fp.ForwardingPlane
	clock  clock.Clock
	logger *logging.Logger

	admin          int
	defaultMetric  int
	broadcastAddr  string
	acceptSources  AcceptSource
	rejectOwn      bool
	triggerEnabled bool

	learned       *rib.Table[Route]
	redistributed *rib.Table[Route]
	workingRIB    *rib.Table[Route]

	// redistributeTrigger receives a signal whenever internal state
	// changes in a way that ought to propagate to the Control Plane.
	// Buffered to 1 so bursts coalesce into a single pending trigger,
	// per §9's design note. Only populated when triggerEnabled is set,
	// per §4.3.4's "if trigger_redistribution is set".
	redistributeTrigger chan struct{}
}

// NewDaemon constructs a Daemon with empty tables.
func NewDaemon(fplane fp.ForwardingPlane, clk clock.Clock, logger *logging.Logger, cfg Config) *Daemon {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.AcceptSources == nil {
		cfg.AcceptSources = DefaultAcceptSources()
	}
	if cfg.BroadcastAddr == "" {
		cfg.BroadcastAddr = DefaultBroadcastAddr
	}

	return &Daemon{
		fp:                  fplane,
		clock:               clk,
		logger:              logger.WithComponent("rip1"),
		admin:               cfg.AdminDistance,
		defaultMetric:       cfg.DefaultMetric,
		broadcastAddr:       cfg.BroadcastAddr,
		acceptSources:       cfg.AcceptSources,
		rejectOwn:           cfg.RejectOwnMessages,
		triggerEnabled:      cfg.TriggerRedistribution,
		learned:             rib.NewTable(DecodeRoute(clk)),
		redistributed:       rib.NewTable(DecodeRoute(clk)),
		workingRIB:          rib.NewTable(DecodeRoute(clk)),
		redistributeTrigger: make(chan struct{}, 1),
	}
}

// AdminDistance returns the administrative distance this daemon's
// redistributed routes carry.
func (d *Daemon) AdminDistance() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.admin
}

// RIBRoutes returns a snapshot of the composite RIB.
func (d *Daemon) RIBRoutes() []Route {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.workingRIB.Items()
}

// LearnedRoutes returns a snapshot of the learned table.
func (d *Daemon) LearnedRoutes() []Route {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.learned.Items()
}

// RedistributedRoutes returns a snapshot of the redistributed table.
func (d *Daemon) RedistributedRoutes() []Route {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.redistributed.Items()
}

// RefreshRIB rebuilds the composite RIB from learned ∪ redistributed.
func (d *Daemon) RefreshRIB() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.refreshRIBLocked()
}

func (d *Daemon) refreshRIBLocked() {
	fresh := rib.NewTable(DecodeRoute(d.clock))
	fresh.ImportRoutes(d.redistributed.Items())
	fresh.ImportRoutes(d.learned.Items())
	d.workingRIB = fresh
}

// ExportRoutes collapses the RIB to one route per prefix, minimum
// metric wins.
func (d *Daemon) ExportRoutes() []Route {
	items := d.RIBRoutes()
	return rib.BestByPrefix(items, func(a, b Route) bool { return a.Metric < b.Metric })
}

// RedistributeIn wholly replaces the redistributed table, per §4.3.6:
// routes whose source isn't in the accept-list are dropped, a missing
// metric gets defaultMetric, every accepted route is clamped and
// classful-truncated.
func (d *Daemon) RedistributeIn(records []rib.Record) error {
	fresh := rib.NewTable(DecodeRoute(d.clock))

	for _, rec := range records {
		source := system.SourceCode(asString(rec["route_source"]))
		if !d.acceptSources[source] {
			continue
		}

		recCopy := rib.Record{}
		for k, v := range rec {
			recCopy[k] = v
		}
		if _, ok := recCopy["metric"]; !ok {
			recCopy["metric"] = d.defaultMetric
		}

		route, err := DecodeRoute(d.clock)(recCopy, false)
		if err != nil {
			return err
		}

		classful, err := route.Classful()
		if err != nil {
			return err
		}
		fresh.Add(classful)
	}

	d.mu.Lock()
	d.redistributed = fresh
	d.refreshRIBLocked()
	d.mu.Unlock()

	d.triggerRedistribution()
	return nil
}

// RedistributeOut selects, from the RIB, routes sourced from RIP1 with
// metric < 16 (i.e. not poisoned), one best (minimum metric) per
// prefix, tagged with this daemon's admin_distance.
func (d *Daemon) RedistributeOut() []rib.Record {
	d.mu.Lock()
	admin := d.admin
	items := d.workingRIB.Items()
	d.mu.Unlock()

	var candidates []Route
	for _, r := range items {
		if r.RouteSource != system.SourceRIP1 {
			continue
		}
		if r.Metric >= MetricInfinity {
			continue
		}
		candidates = append(candidates, r)
	}

	best := rib.BestByPrefix(candidates, func(a, b Route) bool { return a.Metric < b.Metric })

	out := make([]rib.Record, 0, len(best))
	for _, r := range best {
		rec := r.AsRecord()
		rec["admin_distance"] = admin
		rec["route_source"] = string(system.SourceRIP1)
		out = append(out, rec)
	}
	return out
}

// HandleUDPBytes decodes data per §4.3.1 and applies the corresponding
// effect. Decode errors are KindProtocolDecode and are logged and
// dropped, never surfaced, per §7.
func (d *Daemon) HandleUDPBytes(data []byte, srcIP string, srcPort int) {
	pkt, err := Decode(data)
	if err != nil {
		d.logger.Warn("dropping malformed rip1 packet", "src_ip", srcIP, "error", err.Error())
		return
	}

	d.mu.Lock()
	rejectOwn := d.rejectOwn
	d.mu.Unlock()

	if rejectOwn && srcIP == d.fp.GetLocalIP() {
		return
	}

	switch pkt.Command {
	case CommandRequest:
		d.handleRequest(srcIP, srcPort)
	case CommandResponse:
		d.handleResponse(pkt, srcIP)
	default:
		d.logger.Warn("dropping rip1 packet with unknown command", "src_ip", srcIP, "command", int(pkt.Command))
	}
}

func (d *Daemon) handleRequest(srcIP string, srcPort int) {
	if err := d.SendResponseTo(srcIP, srcPort); err != nil {
		d.logger.Warn("failed to reply to rip1 request", "dest", srcIP, "error", err.Error())
	}
}

func (d *Daemon) handleResponse(pkt Packet, srcIP string) {
	poisonedSeen := false

	d.mu.Lock()
	for _, rte := range pkt.RTEs {
		if rte.Family != FamilyIPv4 {
			continue
		}

		nextHop := rte.NextHop
		if nextHop == netip.IPv4Unspecified() {
			addr, err := netip.ParseAddr(srcIP)
			if err == nil {
				nextHop = addr
			}
		}

		metric := clampMetric(int(rte.Metric))
		status := system.StatusUp
		if metric >= MetricInfinity {
			status = system.StatusDown
			poisonedSeen = true
		}

		prefix := netip.PrefixFrom(rte.Addr, 32)
		route := NewRoute(d.clock, prefix, nextHop, metric, system.SourceRIP1)
		classful, err := route.Classful()
		if err != nil {
			d.logger.Warn("dropping rip1 rte with no classful representation", "addr", rte.Addr.String(), "error", err.Error())
			continue
		}
		classful.Status = status
		d.learned.Add(classful)
	}
	d.refreshRIBLocked()
	d.mu.Unlock()

	d.triggerRedistribution()

	if poisonedSeen {
		if err := d.SendResponse(); err != nil {
			d.logger.Warn("failed to advertise after poisoned rte", "error", err.Error())
		}
	}
}

// SendRequest broadcasts a single wildcard REQUEST and returns the
// source port used, so a caller can listen for unicast replies.
func (d *Daemon) SendRequest() (int, error) {
	pkt := RequestEverything()
	data, err := pkt.Encode()
	if err != nil {
		return 0, errors.Wrap(err, errors.KindInternal, "encode rip1 request")
	}

	d.mu.Lock()
	dest := d.broadcastAddr
	d.mu.Unlock()

	usedPort, err := d.fp.SendUDP(data, dest, Port, 0)
	if err != nil {
		return 0, errors.Wrap(err, errors.KindTransport, "send rip1 request")
	}
	return usedPort, nil
}

// SendResponse broadcasts a RESPONSE built from ExportRoutes to the
// configured broadcast address.
func (d *Daemon) SendResponse() error {
	d.mu.Lock()
	dest := d.broadcastAddr
	d.mu.Unlock()
	return d.sendResponseTo(dest, Port)
}

// SendResponseTo unicasts a RESPONSE built from ExportRoutes to
// destIP:destPort, e.g. in reply to a REQUEST.
func (d *Daemon) SendResponseTo(destIP string, destPort int) error {
	return d.sendResponseTo(destIP, destPort)
}

// sendResponseTo emits a RESPONSE built from ExportRoutes. Each
// outbound metric is min(metric+1, 16); next_hop is forced to 0.0.0.0.
func (d *Daemon) sendResponseTo(dest string, destPort int) error {
	if destPort == 0 {
		destPort = Port
	}

	exported := d.ExportRoutes()
	rtes := make([]RTE, 0, len(exported))
	for _, r := range exported {
		addr4 := r.prefixVal.Addr()
		metric := r.Metric + 1
		if metric > MetricInfinity {
			metric = MetricInfinity
		}
		rtes = append(rtes, RTE{
			Family:  FamilyIPv4,
			Addr:    addr4,
			NextHop: netip.IPv4Unspecified(),
			Metric:  uint32(metric),
		})
	}

	pkt := Packet{Command: CommandResponse, Version: ProtocolVersion, RTEs: rtes}

	for start := 0; start < len(rtes) || start == 0; start += maxRTEs {
		end := start + maxRTEs
		if end > len(rtes) {
			end = len(rtes)
		}
		chunk := pkt
		chunk.RTEs = rtes[start:end]

		data, err := chunk.Encode()
		if err != nil {
			return errors.Wrap(err, errors.KindInternal, "encode rip1 response")
		}
		if _, err := d.fp.SendUDP(data, dest, destPort, Port); err != nil {
			return errors.Wrap(err, errors.KindTransport, "send rip1 response")
		}
		if len(rtes) == 0 {
			break
		}
	}
	return nil
}

// triggerRedistribution performs a non-blocking, coalescing enqueue:
// if a trigger is already pending, this is a no-op, per §9's design
// note on collapsing bursts. A no-op entirely unless triggerEnabled
// (Config.TriggerRedistribution) is set, per §4.3.4.
func (d *Daemon) triggerRedistribution() {
	if !d.triggerEnabled {
		return
	}
	select {
	case d.redistributeTrigger <- struct{}{}:
	default:
	}
}

// RedistributeTrigger exposes the coalescing trigger channel so a
// supervisor (e.g. the Control Plane client loop) can consume pending
// redistribution signals.
func (d *Daemon) RedistributeTrigger() <-chan struct{} {
	return d.redistributeTrigger
}

// RunHousekeepingOnce performs a single aging pass over the learned
// table, per §4.3.4. Exported (rather than folded into the background
// loop) so tests can drive it deterministically against a Manual clock.
func (d *Daemon) RunHousekeepingOnce() {
	d.mu.Lock()
	now := d.clock.Now()
	changed := false

	for _, route := range d.learned.Items() {
		age := now.Sub(route.LastUpdated)
		switch {
		case age > RouteTimeout+RouteGarbageTimer:
			d.learned.Remove(route)
			changed = true
		case age > RouteTimeout && route.Metric < MetricInfinity:
			poisoned := route
			poisoned.Metric = MetricInfinity
			poisoned.Status = system.StatusDown
			d.learned.Add(poisoned)
			changed = true
		}
	}

	if changed {
		d.refreshRIBLocked()
	}
	d.mu.Unlock()

	if changed {
		d.triggerRedistribution()
	}
}
