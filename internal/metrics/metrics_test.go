package metrics

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransferMetricsTracksSREJs(t *testing.T) {
	m := NewTransferMetrics()
	m.AddSREJ()
	m.AddSREJ()
	m.AddRetransmission()

	snap := m.GetSnapshot()
	require.Equal(t, uint64(2), snap.SREJsReceived)
	require.Equal(t, uint64(1), snap.Retransmissions)
}

func TestServerMetricsConnectionLifecycle(t *testing.T) {
	m := NewServerMetrics()
	m.AddConnection()
	m.AddConnection()
	m.AddSREJ()
	m.RemoveConnection()

	snap := m.GetSnapshot()
	require.Equal(t, uint64(2), snap.TotalConnections)
	require.Equal(t, int64(1), snap.ActiveConnections)
	require.Equal(t, uint64(1), snap.TotalSREJsReceived)
}
