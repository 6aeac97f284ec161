package fp

import (
	"context"
	"sync"
	"time"

	"github.com/wrgeorge1983/rtrcp/internal/errors"
)

// Fake is an in-memory ForwardingPlane for tests: Ping results are
// pre-programmed per destination, and SendUDP delivers each datagram by
// calling the callbacks ListenUDP registered for the destination port,
// instead of touching real sockets.
type Fake struct {
	mu        sync.Mutex
	PingRTT   map[string]time.Duration
	PingErr   map[string]error
	LocalIP   string
	sent      []FakeDatagram
	listeners map[int][]UDPCallback
}

// FakeDatagram records a call to SendUDP for assertions in tests.
type FakeDatagram struct {
	Payload []byte
	DestIP  string
	DestPort int
	SrcPort int
}

// NewFake returns a ready-to-use Fake ForwardingPlane.
func NewFake() *Fake {
	return &Fake{
		PingRTT:   make(map[string]time.Duration),
		PingErr:   make(map[string]error),
		LocalIP:   "192.0.2.254",
		listeners: make(map[int][]UDPCallback),
	}
}

func (f *Fake) Ping(ctx context.Context, dest string, timeout time.Duration) (time.Duration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err, ok := f.PingErr[dest]; ok && err != nil {
		return 0, err
	}
	rtt, ok := f.PingRTT[dest]
	if !ok {
		return 0, errors.Errorf(errors.KindTimeout, "fake ping %s: no reply within %s", dest, timeout)
	}
	return rtt, nil
}

func (f *Fake) SendUDP(payload []byte, destIP string, destPort int, srcPort int) (int, error) {
	f.mu.Lock()
	if srcPort == 0 {
		srcPort = 40000
	}
	f.sent = append(f.sent, FakeDatagram{Payload: payload, DestIP: destIP, DestPort: destPort, SrcPort: srcPort})
	cbs := append([]UDPCallback{}, f.listeners[destPort]...)
	f.mu.Unlock()

	for _, cb := range cbs {
		cb(payload, f.LocalIP, srcPort)
	}
	return srcPort, nil
}

func (f *Fake) ListenUDP(ctx context.Context, port int, callback UDPCallback) error {
	f.mu.Lock()
	f.listeners[port] = append(f.listeners[port], callback)
	f.mu.Unlock()

	<-ctx.Done()
	return nil
}

func (f *Fake) ListenUDPTimed(ctx context.Context, port int, callback UDPCallback, seconds float64) error {
	f.mu.Lock()
	f.listeners[port] = append(f.listeners[port], callback)
	f.mu.Unlock()

	select {
	case <-ctx.Done():
	case <-time.After(time.Duration(seconds * float64(time.Second))):
	}
	return nil
}

func (f *Fake) GetLocalIP() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.LocalIP
}

// Sent returns every datagram SendUDP has emitted, for test assertions.
func (f *Fake) Sent() []FakeDatagram {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]FakeDatagram, len(f.sent))
	copy(out, f.sent)
	return out
}
