// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package rip1

import (
	"net/netip"

	"github.com/wrgeorge1983/rtrcp/internal/errors"
)

// ClassfulPrefix truncates pfx to its legacy class A/B/C boundary, per
// §4.3.2:
//
//	0.0.0.0/1   -> /8  (class A)
//	128.0.0.0/2 -> /16 (class B)
//	192.0.0.0/3 -> /24 (class C)
//	224.0.0.0/4 and beyond -> rejected (class D/E)
//
// The returned prefix's address is pfx's address masked at the classful
// length, which both truncates a narrower (more specific) prefix down to
// its class boundary and relabels a broader prefix up to it without
// disturbing any address bits already inside that boundary.
func ClassfulPrefix(pfx netip.Prefix) (netip.Prefix, error) {
	addr := pfx.Addr()
	if !addr.Is4() {
		return netip.Prefix{}, errors.Errorf(errors.KindProtocolDecode, "rip1: only IPv4 is supported, got %s", pfx)
	}

	firstOctet := addr.As4()[0]

	var classfulLen int
	switch {
	case firstOctet < 128: // 0xxxxxxx
		classfulLen = 8
	case firstOctet < 192: // 10xxxxxx
		classfulLen = 16
	case firstOctet < 224: // 110xxxxx
		classfulLen = 24
	default: // 1110xxxx and beyond: class D/E
		return netip.Prefix{}, errors.Errorf(errors.KindProtocolDecode, "rip1: prefix %s has no classful representation (class D/E)", pfx)
	}

	return netip.PrefixFrom(addr, classfulLen).Masked(), nil
}
