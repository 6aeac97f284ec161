// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package fp is the Forwarding Plane: the only component in the control
// plane permitted to touch raw sockets. Everything else consumes it
// through the ForwardingPlane interface.
package fp

import (
	"context"
	"fmt"
	"net"
	"syscall"
	"time"

	probing "github.com/prometheus-community/pro-bing"
	"golang.org/x/sys/unix"

	"github.com/wrgeorge1983/rtrcp/internal/errors"
)

// UDPCallback is invoked for every datagram ListenUDP(Timed) receives.
type UDPCallback func(payload []byte, srcIP string, srcPort int)

// ForwardingPlane is the contract every daemon consumes for network I/O.
type ForwardingPlane interface {
	// Ping sends one ICMP echo request to dest and returns the measured
	// round-trip time. It fails with a KindTimeout error if no reply
	// arrives within timeout.
	Ping(ctx context.Context, dest string, timeout time.Duration) (time.Duration, error)

	// SendUDP emits a single UDP datagram to destIP:destPort. If srcPort
	// is 0, a random ephemeral port is chosen; the port actually used is
	// returned so a caller can listen on it for replies.
	SendUDP(payload []byte, destIP string, destPort int, srcPort int) (usedSrcPort int, err error)

	// ListenUDP binds 0.0.0.0:port with address/port reuse and invokes
	// callback for every datagram received, until ctx is cancelled.
	ListenUDP(ctx context.Context, port int, callback UDPCallback) error

	// ListenUDPTimed is ListenUDP bounded by seconds; it returns nil on
	// ordinary deadline expiry.
	ListenUDPTimed(ctx context.Context, port int, callback UDPCallback, seconds float64) error

	// GetLocalIP best-effort discovers the host's primary egress IPv4
	// address, returning "127.0.0.1" on any failure.
	GetLocalIP() string
}

// Real is the production ForwardingPlane, backed by pro-bing (ICMP) and
// the standard net package (UDP).
type Real struct{}

// New returns the production ForwardingPlane.
func New() ForwardingPlane { return Real{} }

func (Real) Ping(ctx context.Context, dest string, timeout time.Duration) (time.Duration, error) {
	pinger, err := probing.NewPinger(dest)
	if err != nil {
		return 0, errors.Wrap(err, errors.KindInternal, "create pinger")
	}

	pinger.Count = 1
	pinger.Timeout = timeout
	pinger.SetPrivileged(false)

	done := make(chan error, 1)
	go func() { done <- pinger.Run() }()

	select {
	case <-ctx.Done():
		return 0, errors.Wrap(ctx.Err(), errors.KindTimeout, fmt.Sprintf("ping %s cancelled", dest))
	case err := <-done:
		if err != nil {
			return 0, errors.Wrap(err, errors.KindTimeout, fmt.Sprintf("ping %s failed", dest))
		}
	}

	stats := pinger.Statistics()
	if stats.PacketsRecv == 0 {
		return 0, errors.Errorf(errors.KindTimeout, "ping %s: no reply within %s", dest, timeout)
	}
	return stats.AvgRtt, nil
}

func (Real) SendUDP(payload []byte, destIP string, destPort int, srcPort int) (int, error) {
	lc := net.ListenConfig{Control: broadcastReuseControl}
	pc, err := lc.ListenPacket(context.Background(), "udp4", fmt.Sprintf("0.0.0.0:%d", srcPort))
	if err != nil {
		return 0, errors.Wrap(err, errors.KindInternal, "open udp send socket")
	}
	conn := pc.(*net.UDPConn)
	defer conn.Close()

	raddr := &net.UDPAddr{IP: net.ParseIP(destIP), Port: destPort}
	if _, err := conn.WriteToUDP(payload, raddr); err != nil {
		return 0, errors.Wrap(err, errors.KindInternal, "send udp datagram")
	}

	used := conn.LocalAddr().(*net.UDPAddr).Port
	return used, nil
}

func reuseAddrControl(_, _ string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
		if sockErr == nil {
			sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
		}
	})
	if err != nil {
		return err
	}
	return sockErr
}

// broadcastReuseControl sets SO_BROADCAST (so sends to 255.255.255.255 or
// a directed broadcast don't fail with EACCES) alongside SO_REUSEADDR/
// SO_REUSEPORT (so the sender binding RIP's well-known port 520 doesn't
// collide with the listener already bound there).
func broadcastReuseControl(network, address string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
		if sockErr == nil {
			sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
		}
		if sockErr == nil {
			sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
		}
	})
	if err != nil {
		return err
	}
	return sockErr
}

func (Real) ListenUDP(ctx context.Context, port int, callback UDPCallback) error {
	return listenUDPDeadline(ctx, port, callback, 0)
}

func (Real) ListenUDPTimed(ctx context.Context, port int, callback UDPCallback, seconds float64) error {
	return listenUDPDeadline(ctx, port, callback, time.Duration(seconds*float64(time.Second)))
}

// listenUDPDeadline binds 0.0.0.0:port with SO_REUSEADDR/SO_REUSEPORT and
// reads datagrams until ctx is cancelled or, if deadline > 0, until that
// much time has elapsed.
func listenUDPDeadline(ctx context.Context, port int, callback UDPCallback, deadline time.Duration) error {
	lc := net.ListenConfig{Control: reuseAddrControl}
	pc, err := lc.ListenPacket(ctx, "udp4", fmt.Sprintf("0.0.0.0:%d", port))
	if err != nil {
		return errors.Wrap(err, errors.KindInternal, "bind udp listener")
	}
	defer pc.Close()

	conn := pc.(*net.UDPConn)

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-time.After(deadlineOrForever(deadline)):
		}
		close(done)
		conn.Close()
	}()

	buf := make([]byte, 1500)
	for {
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-done:
				return nil
			default:
				if ctx.Err() != nil {
					return nil
				}
				return errors.Wrap(err, errors.KindInternal, "read udp datagram")
			}
		}

		payload := make([]byte, n)
		copy(payload, buf[:n])
		callback(payload, addr.IP.String(), addr.Port)
	}
}

func deadlineOrForever(d time.Duration) time.Duration {
	if d <= 0 {
		return 365 * 24 * time.Hour
	}
	return d
}

func (Real) GetLocalIP() string {
	conn, err := net.Dial("udp4", "8.8.8.8:80")
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return "127.0.0.1"
	}
	return addr.IP.String()
}
