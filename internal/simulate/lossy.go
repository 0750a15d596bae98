// Package simulate wraps a transport.Conn with an error-rate loss/corruption
// policy so the protocol's own retransmission machinery can be exercised
// without a real lossy network. Each logical datagram (keyed by its flag and
// sequence/ack number) is judged at most once — "single-shot" — so a frame
// that survives its first roll is never later dropped by a retransmission of
// itself, matching the simulator the client used for manual testing.
package simulate

import (
	"math/rand"
	"net"
	"time"

	"github.com/iluksbr/udpftp/internal/frame"
	"github.com/iluksbr/udpftp/internal/transport"
)

type verdict int

const (
	pass verdict = iota
	drop
	corrupt
)

// Conn wraps an inner transport.Conn, applying the error-rate policy to
// every outbound datagram. It satisfies transport.Conn.
type Conn struct {
	inner transport.Conn
	rate  float64
	rnd   *rand.Rand
	seen  map[uint64]verdict
}

// New wraps inner with an error_rate (0.0..1.0) loss/corruption policy. A
// rate of 0 makes Conn a transparent passthrough. seed controls the
// pseudo-random judging sequence, for reproducible test runs.
func New(inner transport.Conn, rate float64, seed int64) *Conn {
	return &Conn{
		inner: inner,
		rate:  rate,
		rnd:   rand.New(rand.NewSource(seed)),
		seen:  make(map[uint64]verdict),
	}
}

func frameKey(f frame.Frame) uint64 {
	return uint64(f.Flag)<<32 | uint64(f.Seq)
}

// judge returns the single-shot verdict for wire, deciding it the first
// time a given (flag, seq) pair is seen and remembering it thereafter.
func (c *Conn) judge(wire []byte) verdict {
	if c.rate <= 0 {
		return pass
	}
	f, err := frame.Decode(wire)
	if err != nil {
		return pass // já corrompido antes de chegar aqui; não é nosso papel
	}
	key := frameKey(f)
	if v, ok := c.seen[key]; ok {
		return v
	}

	v := pass
	if c.rnd.Float64() < c.rate {
		if c.rnd.Intn(2) == 0 {
			v = drop
		} else {
			v = corrupt
		}
	}
	c.seen[key] = v
	return v
}

// flipBit inverts every bit of wire's last byte, so the stored checksum no
// longer matches and frame.Decode on the receiving side reports
// frame.ErrCorrupt.
func flipBit(wire []byte) []byte {
	out := append([]byte(nil), wire...)
	out[len(out)-1] ^= 0xFF
	return out
}

func (c *Conn) apply(wire []byte) (toSend []byte, send bool) {
	switch c.judge(wire) {
	case drop:
		return nil, false
	case corrupt:
		return flipBit(wire), true
	default:
		return wire, true
	}
}

// Send implements transport.Conn.
func (c *Conn) Send(b []byte) (int, error) {
	wire, send := c.apply(b)
	if !send {
		return len(b), nil // descarte silencioso: do ponto de vista do chamador, "enviado"
	}
	return c.inner.Send(wire)
}

// SendTo implements transport.Conn.
func (c *Conn) SendTo(b []byte, addr *net.UDPAddr) (int, error) {
	wire, send := c.apply(b)
	if !send {
		return len(b), nil
	}
	return c.inner.SendTo(wire, addr)
}

// PollCall implements transport.Conn; inbound datagrams pass through
// unmodified, since the error-rate policy simulates the sending side of an
// imperfect network, not the receiving side.
func (c *Conn) PollCall(timeout time.Duration) (transport.Datagram, bool, error) {
	return c.inner.PollCall(timeout)
}

// LocalAddr implements transport.Conn.
func (c *Conn) LocalAddr() *net.UDPAddr { return c.inner.LocalAddr() }

// Close implements transport.Conn.
func (c *Conn) Close() error { return c.inner.Close() }
