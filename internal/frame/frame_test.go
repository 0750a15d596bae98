package frame

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	f := NewData(42, []byte("hello, world"))
	wire := Encode(f)
	require.LessOrEqual(t, len(wire), MaxFrameSize)

	got, err := Decode(wire)
	require.NoError(t, err)
	require.Equal(t, f.Seq, got.Seq)
	require.Equal(t, f.Flag, got.Flag)
	require.Equal(t, f.Payload, got.Payload)
}

func TestDecodeRejectsShortDatagram(t *testing.T) {
	_, err := Decode([]byte{1, 2, 3})
	require.ErrorIs(t, err, ErrTooShort)
}

func TestDecodeDetectsCorruption(t *testing.T) {
	wire := Encode(NewData(1, []byte("payload")))
	wire[len(wire)-1] ^= 0xFF
	_, err := Decode(wire)
	require.ErrorIs(t, err, ErrCorrupt)
}

func TestDecodeDetectsFlippedSeqBit(t *testing.T) {
	// A single seq bit flipped in transit, with the checksum field left as
	// the sender wrote it, changes the ones-complement sum and must be caught.
	wire := Encode(NewData(7, []byte{0x00, 0x01}))
	wire[0] ^= 0x01 // flip a seq bit without touching checksum bytes
	_, err := Decode(wire)
	require.ErrorIs(t, err, ErrCorrupt)
}

func TestControlFrameCarriesDuplicateAck(t *testing.T) {
	f := NewControl(RR, 10, 9)
	wire := Encode(f)
	got, err := Decode(wire)
	require.NoError(t, err)
	ack, err := ControlAck(got)
	require.NoError(t, err)
	require.Equal(t, uint32(9), ack)
}

func TestInitPayloadRoundTrip(t *testing.T) {
	p := InitPayload{Name: "report.bin", WindowSize: 8, BufferSize: 1000}
	b, err := EncodeInit(p)
	require.NoError(t, err)
	require.Len(t, b, InitPayloadSize)

	got, err := DecodeInit(b)
	require.NoError(t, err)
	require.Equal(t, p, got)
}

func TestInitPayloadRejectsOversizedName(t *testing.T) {
	name := make([]byte, 101)
	for i := range name {
		name[i] = 'a'
	}
	_, err := EncodeInit(InitPayload{Name: string(name), WindowSize: 1, BufferSize: 1})
	require.Error(t, err)
}

func TestInitPayloadRejectsTruncatedPayload(t *testing.T) {
	b, err := EncodeInit(InitPayload{Name: "x", WindowSize: 1, BufferSize: 1})
	require.NoError(t, err)
	_, err = DecodeInit(b[:InitPayloadSize-1])
	require.Error(t, err)
}

func TestMaxFrameSizeConstant(t *testing.T) {
	require.Equal(t, 1407, MaxFrameSize)
	require.Equal(t, 1400, MaxPayload)
	require.Equal(t, 7, HeaderSize)
}
