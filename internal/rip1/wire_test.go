package rip1

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	pkt := Packet{
		Command: CommandResponse,
		Version: ProtocolVersion,
		RTEs: []RTE{
			{Family: FamilyIPv4, Addr: netip.MustParseAddr("10.0.0.0"), NextHop: netip.IPv4Unspecified(), Metric: 2},
			{Family: FamilyIPv4, Addr: netip.MustParseAddr("192.0.2.0"), NextHop: netip.MustParseAddr("203.0.113.1"), Metric: 16},
		},
	}

	data, err := pkt.Encode()
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, pkt.Command, got.Command)
	assert.Equal(t, pkt.Version, got.Version)
	require.Len(t, got.RTEs, 2)
	assert.Equal(t, pkt.RTEs[0].Addr, got.RTEs[0].Addr)
	assert.Equal(t, pkt.RTEs[1].NextHop, got.RTEs[1].NextHop)
	assert.Equal(t, uint32(16), got.RTEs[1].Metric)
}

func TestRequestEverythingIsWildcard(t *testing.T) {
	pkt := RequestEverything()
	assert.Equal(t, CommandRequest, pkt.Command)
	require.Len(t, pkt.RTEs, 1)
	assert.Equal(t, FamilyWildcard, pkt.RTEs[0].Family)
}

func TestDecodeRejectsShortHeader(t *testing.T) {
	_, err := Decode([]byte{1, 1})
	assert.Error(t, err)
}

func TestDecodeRejectsBadVersion(t *testing.T) {
	pkt := Packet{Command: CommandRequest, Version: 9}
	data, err := pkt.Encode()
	require.NoError(t, err)

	_, err = Decode(data)
	assert.Error(t, err)
}

func TestDecodeRejectsUnknownCommand(t *testing.T) {
	pkt := Packet{Command: Command(7), Version: ProtocolVersion}
	data, err := pkt.Encode()
	require.NoError(t, err)

	_, err = Decode(data)
	assert.Error(t, err)
}

func TestDecodeRejectsPartialRTE(t *testing.T) {
	data := []byte{byte(CommandResponse), ProtocolVersion, 0, 0, 1, 2, 3}
	_, err := Decode(data)
	assert.Error(t, err)
}

func TestEncodeRejectsTooManyRTEs(t *testing.T) {
	pkt := Packet{Command: CommandResponse, Version: ProtocolVersion}
	for i := 0; i < maxRTEs+1; i++ {
		pkt.RTEs = append(pkt.RTEs, RTE{Family: FamilyIPv4, Addr: netip.IPv4Unspecified(), NextHop: netip.IPv4Unspecified(), Metric: 1})
	}
	_, err := pkt.Encode()
	assert.Error(t, err)
}
