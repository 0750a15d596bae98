package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSendAndPollCallRoundTrip(t *testing.T) {
	server, err := Listen("127.0.0.1", 0)
	require.NoError(t, err)
	defer server.Close()

	client, err := Dial("127.0.0.1", server.LocalAddr().Port)
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Send([]byte("hello"))
	require.NoError(t, err)

	dg, ok, err := server.PollCall(2 * time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "hello", string(dg.Data))
}

func TestPollCallTimesOutWithoutData(t *testing.T) {
	server, err := Listen("127.0.0.1", 0)
	require.NoError(t, err)
	defer server.Close()

	_, ok, err := server.PollCall(50 * time.Millisecond)
	require.NoError(t, err)
	require.False(t, ok)
}
