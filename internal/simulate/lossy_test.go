package simulate

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iluksbr/udpftp/internal/frame"
	"github.com/iluksbr/udpftp/internal/transport"
)

type fakeConn struct {
	sent [][]byte
}

func (f *fakeConn) Send(b []byte) (int, error) {
	f.sent = append(f.sent, append([]byte(nil), b...))
	return len(b), nil
}
func (f *fakeConn) SendTo(b []byte, addr *net.UDPAddr) (int, error) { return f.Send(b) }
func (f *fakeConn) PollCall(time.Duration) (transport.Datagram, bool, error) {
	return transport.Datagram{}, false, nil
}
func (f *fakeConn) LocalAddr() *net.UDPAddr { return nil }
func (f *fakeConn) Close() error            { return nil }

func TestZeroRateIsTransparent(t *testing.T) {
	inner := &fakeConn{}
	c := New(inner, 0, 1)
	wire := frame.Encode(frame.NewData(0, []byte("x")))
	_, err := c.Send(wire)
	require.NoError(t, err)
	require.Len(t, inner.sent, 1)
	require.Equal(t, wire, inner.sent[0])
}

func TestSingleShotKeepsVerdictAcrossRetries(t *testing.T) {
	inner := &fakeConn{}
	c := New(inner, 0.9, 42)
	wire := frame.Encode(frame.NewData(7, []byte("payload")))

	first := c.judge(wire)
	for i := 0; i < 20; i++ {
		require.Equal(t, first, c.judge(wire))
	}
}

func TestFullRateEventuallyDropsOrCorrupts(t *testing.T) {
	inner := &fakeConn{}
	c := New(inner, 1.0, 7)
	wire := frame.Encode(frame.NewData(1, []byte("z")))
	_, err := c.Send(wire)
	require.NoError(t, err)

	if len(inner.sent) == 0 {
		return // dropped
	}
	_, decodeErr := frame.Decode(inner.sent[0])
	if decodeErr == nil {
		require.Equal(t, wire, inner.sent[0])
	}
}
