// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package rip1

import (
	"bytes"
	"encoding/binary"
	"net/netip"

	"github.com/wrgeorge1983/rtrcp/internal/errors"
)

// Command identifies a RIP v1 message type (RFC 1058 §3.4).
type Command byte

const (
	CommandRequest  Command = 1
	CommandResponse Command = 2
)

const (
	// ProtocolVersion is the only version this daemon speaks.
	ProtocolVersion byte = 1

	// FamilyIPv4 marks an RTE carrying a real IPv4 route.
	FamilyIPv4 uint16 = 2
	// FamilyWildcard marks the single-RTE "gimme everything" REQUEST.
	FamilyWildcard uint16 = 0

	headerLen  = 4
	rteLen     = 16
	maxRTEs    = 25
	maxMessage = headerLen + maxRTEs*rteLen
)

// RTE is one Route Table Entry inside a RIP packet.
type RTE struct {
	Family  uint16
	Addr    netip.Addr // the IPv4 network address
	NextHop netip.Addr // 0.0.0.0 means "the sender of this datagram"
	Metric  uint32
}

// Packet is a decoded RIP v1 message.
type Packet struct {
	Command Command
	Version byte
	RTEs    []RTE
}

// RequestEverything builds the single-RTE wildcard REQUEST used by
// send_request.
func RequestEverything() Packet {
	return Packet{
		Command: CommandRequest,
		Version: ProtocolVersion,
		RTEs:    []RTE{{Family: FamilyWildcard, Addr: netip.IPv4Unspecified(), NextHop: netip.IPv4Unspecified(), Metric: MetricInfinity}},
	}
}

// Encode serializes p per §4.3.1: 1 command byte, 1 version byte, 2
// reserved bytes, then up to 25 fixed-width RTEs.
func (p Packet) Encode() ([]byte, error) {
	if len(p.RTEs) > maxRTEs {
		return nil, errors.Errorf(errors.KindProtocolDecode, "rip1: %d RTEs exceeds the %d-entry limit", len(p.RTEs), maxRTEs)
	}

	buf := new(bytes.Buffer)
	buf.WriteByte(byte(p.Command))
	buf.WriteByte(p.Version)
	buf.Write([]byte{0, 0}) // reserved

	for _, rte := range p.RTEs {
		var family [2]byte
		binary.BigEndian.PutUint16(family[:], rte.Family)
		buf.Write(family[:])

		addr4 := rte.Addr.As4()
		buf.Write(addr4[:])

		nh4 := rte.NextHop.As4()
		buf.Write(nh4[:])

		var metric [4]byte
		binary.BigEndian.PutUint32(metric[:], rte.Metric)
		buf.Write(metric[:])
	}

	return buf.Bytes(), nil
}

// Decode parses data as a RIP v1 packet. Any malformed input (short
// header, truncated RTE, unsupported version) is reported as
// KindProtocolDecode, which callers must log and drop rather than
// surface to the sender.
func Decode(data []byte) (Packet, error) {
	if len(data) < headerLen {
		return Packet{}, errors.Errorf(errors.KindProtocolDecode, "rip1: packet too short (%d bytes) for header", len(data))
	}
	if len(data) > maxMessage {
		return Packet{}, errors.Errorf(errors.KindProtocolDecode, "rip1: packet too long (%d bytes)", len(data))
	}

	buf := bytes.NewReader(data)

	var cmd, ver byte
	var reserved [2]byte
	readByte(buf, &cmd)
	readByte(buf, &ver)
	buf.Read(reserved[:])

	if ver != ProtocolVersion {
		return Packet{}, errors.Attr(errors.New(errors.KindProtocolDecode, "rip1: unsupported version"), "version", int(ver))
	}
	if cmd != byte(CommandRequest) && cmd != byte(CommandResponse) {
		return Packet{}, errors.Attr(errors.New(errors.KindProtocolDecode, "rip1: unknown command"), "command", int(cmd))
	}

	remaining := data[headerLen:]
	if len(remaining)%rteLen != 0 {
		return Packet{}, errors.Errorf(errors.KindProtocolDecode, "rip1: trailing %d bytes is not a whole number of RTEs", len(remaining))
	}

	count := len(remaining) / rteLen
	if count > maxRTEs {
		return Packet{}, errors.Errorf(errors.KindProtocolDecode, "rip1: %d RTEs exceeds the %d-entry limit", count, maxRTEs)
	}

	rtes := make([]RTE, 0, count)
	for i := 0; i < count; i++ {
		chunk := remaining[i*rteLen : (i+1)*rteLen]
		family := binary.BigEndian.Uint16(chunk[0:2])
		addr := netip.AddrFrom4([4]byte(chunk[2:6]))
		nextHop := netip.AddrFrom4([4]byte(chunk[6:10]))
		metric := binary.BigEndian.Uint32(chunk[10:14])
		// bytes 14:16 reserved.
		rtes = append(rtes, RTE{Family: family, Addr: addr, NextHop: nextHop, Metric: metric})
	}

	return Packet{Command: Command(cmd), Version: ver, RTEs: rtes}, nil
}

func readByte(r *bytes.Reader, dst *byte) {
	b, err := r.ReadByte()
	if err == nil {
		*dst = b
	}
}
