package fakesocket

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"sync"
	"time"
)

// FakeMetric is a fake metric.
var FakeMetric = []byte("foo.bar.baz:2|c")

// FakeAddr is a fake net.Addr
var FakeAddr = &net.UDPAddr{
	IP:   net.IPv4(127, 0, 0, 1),
	Port: 8181,
}

// ErrClosedConnection is returned by a closed FakePacketConn. It unwraps to net.ErrClosed.
var ErrClosedConnection = &net.OpError{Op: "read", Net: "udp", Addr: FakeAddr, Err: net.ErrClosed}

var ErrAlreadyClosedConnection = errors.New("connection is already closed")

// FakePacketConn is a fake net.PacketConn which serves queued payloads, in order, when read from.
// Reads block until a payload is queued or the connection is closed.
type FakePacketConn struct {
	payloads  chan []byte
	closed    chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	written [][]byte
}

// NewFakePacketConn creates a FakePacketConn with payloads already queued.
func NewFakePacketConn(payloads ...[]byte) *FakePacketConn {
	fpc := &FakePacketConn{
		payloads: make(chan []byte, len(payloads)+64),
		closed:   make(chan struct{}),
	}
	for _, p := range payloads {
		fpc.payloads <- p
	}
	return fpc
}

func (fpc *FakePacketConn) isClosed() bool {
	select {
	case <-fpc.closed:
		return true
	default:
		return false
	}
}

// Push queues a payload. It blocks while the queue is full and returns false if the connection is closed.
func (fpc *FakePacketConn) Push(payload []byte) bool {
	select {
	case fpc.payloads <- payload:
		return true
	case <-fpc.closed:
		return false
	}
}

// ReadFrom copies the next queued payload into b. Queued payloads are drained before a close is reported.
func (fpc *FakePacketConn) ReadFrom(b []byte) (int, net.Addr, error) {
	select {
	case p := <-fpc.payloads:
		return copy(b, p), FakeAddr, nil
	default:
	}
	select {
	case p := <-fpc.payloads:
		return copy(b, p), FakeAddr, nil
	case <-fpc.closed:
		return 0, nil, ErrClosedConnection
	}
}

// WriteTo records b.
func (fpc *FakePacketConn) WriteTo(b []byte, addr net.Addr) (int, error) {
	if fpc.isClosed() {
		return 0, ErrClosedConnection
	}
	fpc.mu.Lock()
	defer fpc.mu.Unlock()
	fpc.written = append(fpc.written, append([]byte(nil), b...))
	return len(b), nil
}

// Written returns everything written with WriteTo.
func (fpc *FakePacketConn) Written() [][]byte {
	fpc.mu.Lock()
	defer fpc.mu.Unlock()
	return append([][]byte(nil), fpc.written...)
}

// Close makes pending and future reads fail once the queue is drained.
func (fpc *FakePacketConn) Close() error {
	err := ErrAlreadyClosedConnection
	fpc.closeOnce.Do(func() {
		close(fpc.closed)
		err = nil
	})
	return err
}

// LocalAddr dummy impl.
func (fpc *FakePacketConn) LocalAddr() net.Addr { return FakeAddr }

// SetDeadline dummy impl.
func (fpc *FakePacketConn) SetDeadline(t time.Time) error { return nil }

// SetReadDeadline dummy impl.
func (fpc *FakePacketConn) SetReadDeadline(t time.Time) error { return nil }

// SetWriteDeadline dummy impl.
func (fpc *FakePacketConn) SetWriteDeadline(t time.Time) error { return nil }

// FakeRandomPacketConn is a fake net.PacketConn providing random fake metrics of every type.
type FakeRandomPacketConn struct {
	closed    chan struct{}
	closeOnce sync.Once
}

// ReadFrom generates a random payload and writes it into b.
func (frpc *FakeRandomPacketConn) ReadFrom(b []byte) (int, net.Addr, error) {
	select {
	case <-frpc.closed:
		return 0, nil, ErrClosedConnection
	default:
	}

	num := rand.Int31n(10000) // Randomize metric name
	tag := fmt.Sprintf("|#shard:%d", num%4)
	buf := new(bytes.Buffer)
	switch rand.Int31n(6) {
	case 0: // Counter
		fmt.Fprintf(buf, "mockstatsd.tester.counter_%d:%d|c%s\n", num, rand.Int31n(100), tag) // #nosec
	case 1: // Gauge
		fmt.Fprintf(buf, "mockstatsd.tester.gauge_%d:%f|g%s\n", num, rand.Float64()*100, tag) // #nosec
	case 2: // Timer
		for i := 0; i < 10; i++ {
			fmt.Fprintf(buf, "mockstatsd.tester.timer_%d:%d|ms|@0.5%s\n", num, rand.Int31n(1000), tag) // #nosec
		}
	case 3: // Histogram
		fmt.Fprintf(buf, "mockstatsd.tester.histogram_%d:%f|h%s\n", num, rand.Float64()*100, tag) // #nosec
	case 4: // Meter
		fmt.Fprintf(buf, "mockstatsd.tester.meter_%d:%d|m%s\n", num, rand.Int31n(100), tag) // #nosec
	case 5: // Set
		for i := 0; i < 10; i++ {
			fmt.Fprintf(buf, "mockstatsd.tester.set_%d:%d|s%s\n", num, rand.Int31n(9)+1, tag) // #nosec
		}
	default:
		panic(errors.New("unreachable"))
	}
	n := copy(b, buf.Bytes())
	return n, FakeAddr, nil
}

// WriteTo dummy impl.
func (frpc *FakeRandomPacketConn) WriteTo(b []byte, addr net.Addr) (int, error) { return len(b), nil }

// Close dummy impl.
func (frpc *FakeRandomPacketConn) Close() error {
	err := ErrAlreadyClosedConnection
	frpc.closeOnce.Do(func() {
		close(frpc.closed)
		err = nil
	})
	return err
}

// LocalAddr dummy impl.
func (frpc *FakeRandomPacketConn) LocalAddr() net.Addr { return FakeAddr }

// SetDeadline dummy impl.
func (frpc *FakeRandomPacketConn) SetDeadline(t time.Time) error { return nil }

// SetReadDeadline dummy impl.
func (frpc *FakeRandomPacketConn) SetReadDeadline(t time.Time) error { return nil }

// SetWriteDeadline dummy impl.
func (frpc *FakeRandomPacketConn) SetWriteDeadline(t time.Time) error { return nil }

// Factory is a replacement for net.ListenPacket() that produces instances of FakeRandomPacketConn.
func Factory() (net.PacketConn, error) {
	return &FakeRandomPacketConn{closed: make(chan struct{})}, nil
}
