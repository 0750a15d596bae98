package window

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReplayBufferWriteReadRoundTrip(t *testing.T) {
	b := NewReplayBuffer(5, 4) // capacity = 10 segments
	b.Write(0, []byte("abcd"))
	b.Write(1, []byte("ef"))

	got, ok := b.Read(0)
	require.True(t, ok)
	require.Equal(t, []byte("abcd"), got)

	got, ok = b.Read(1)
	require.True(t, ok)
	require.Equal(t, []byte("ef"), got)
}

func TestReplayBufferMissOutsideRange(t *testing.T) {
	b := NewReplayBuffer(2, 4) // capacity = 4 segments
	_, ok := b.Read(99)
	require.False(t, ok)
}

func TestReplayBufferEvictsOldestOnWraparound(t *testing.T) {
	b := NewReplayBuffer(1, 4) // capacity = 2 segments
	for i := uint32(0); i < 5; i++ {
		b.Write(i, []byte{byte(i)})
	}
	// Only the last 2 seqs (3, 4) should still be readable.
	_, ok := b.Read(2)
	require.False(t, ok)
	got, ok := b.Read(3)
	require.True(t, ok)
	require.Equal(t, []byte{3}, got)
	got, ok = b.Read(4)
	require.True(t, ok)
	require.Equal(t, []byte{4}, got)
}

func TestReplayBufferSizing(t *testing.T) {
	b := NewReplayBuffer(10, 1000)
	require.Len(t, b.ring, 2*10*1000)
}
