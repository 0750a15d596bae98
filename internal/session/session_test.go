package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iluksbr/udpftp/internal/config"
	"github.com/iluksbr/udpftp/internal/handshake"
)

func TestClientServerRoundTrip(t *testing.T) {
	config.HandshakeTimeout = 100 * time.Millisecond
	config.MigrationTimeout = 100 * time.Millisecond
	config.SenderFullTimeout = 50 * time.Millisecond
	config.DataTimeout = 300 * time.Millisecond

	baseDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(baseDir, "report.bin"), []byte("the quick brown fox jumps over the lazy dog"), 0o644))

	parent, err := handshake.ListenParent("127.0.0.1", 0, baseDir)
	require.NoError(t, err)
	defer parent.Close()

	go ServerLoop(parent, "127.0.0.1", baseDir, 0, nil)

	outPath := filepath.Join(t.TempDir(), "out.bin")
	stats, err := ClientRequest("127.0.0.1", parent.LocalAddr().Port, "report.bin", outPath, 4, 8, 0, nil)
	require.NoError(t, err)
	require.Greater(t, stats.DataFramesDelivered, 0)

	got, err := os.ReadFile(outPath)
	require.NoError(t, err)
	require.Equal(t, "the quick brown fox jumps over the lazy dog", string(got))
}

func TestClientServerRoundTripUnderLoss(t *testing.T) {
	config.HandshakeTimeout = 100 * time.Millisecond
	config.MigrationTimeout = 100 * time.Millisecond
	config.SenderFullTimeout = 50 * time.Millisecond
	config.DataTimeout = 500 * time.Millisecond

	baseDir := t.TempDir()
	content := make([]byte, 4000)
	for i := range content {
		content[i] = byte(i % 251)
	}
	require.NoError(t, os.WriteFile(filepath.Join(baseDir, "blob.bin"), content, 0o644))

	parent, err := handshake.ListenParent("127.0.0.1", 0, baseDir)
	require.NoError(t, err)
	defer parent.Close()

	go ServerLoop(parent, "127.0.0.1", baseDir, 0.15, nil)

	outPath := filepath.Join(t.TempDir(), "blob_out.bin")
	stats, err := ClientRequest("127.0.0.1", parent.LocalAddr().Port, "blob.bin", outPath, 8, 256, 0.15, nil)
	require.NoError(t, err)
	require.Greater(t, stats.DataFramesDelivered, 0)

	got, err := os.ReadFile(outPath)
	require.NoError(t, err)
	require.Equal(t, content, got)
}

func TestClientServerRoundTripEmptyFile(t *testing.T) {
	config.HandshakeTimeout = 100 * time.Millisecond
	config.MigrationTimeout = 100 * time.Millisecond
	config.SenderFullTimeout = 50 * time.Millisecond
	config.DataTimeout = 300 * time.Millisecond

	baseDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(baseDir, "empty.bin"), nil, 0o644))

	parent, err := handshake.ListenParent("127.0.0.1", 0, baseDir)
	require.NoError(t, err)
	defer parent.Close()

	go ServerLoop(parent, "127.0.0.1", baseDir, 0, nil)

	outPath := filepath.Join(t.TempDir(), "empty_out.bin")
	stats, err := ClientRequest("127.0.0.1", parent.LocalAddr().Port, "empty.bin", outPath, 4, 8, 0, nil)
	require.NoError(t, err)
	require.Equal(t, 0, stats.DataFramesDelivered)

	got, err := os.ReadFile(outPath)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestClientServerRoundTripStopAndWait(t *testing.T) {
	config.HandshakeTimeout = 100 * time.Millisecond
	config.MigrationTimeout = 100 * time.Millisecond
	config.SenderFullTimeout = 50 * time.Millisecond
	config.DataTimeout = 300 * time.Millisecond

	baseDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(baseDir, "small.bin"), []byte("stop and wait, one frame at a time"), 0o644))

	parent, err := handshake.ListenParent("127.0.0.1", 0, baseDir)
	require.NoError(t, err)
	defer parent.Close()

	go ServerLoop(parent, "127.0.0.1", baseDir, 0, nil)

	outPath := filepath.Join(t.TempDir(), "small_out.bin")
	stats, err := ClientRequest("127.0.0.1", parent.LocalAddr().Port, "small.bin", outPath, 1, 4, 0, nil)
	require.NoError(t, err)
	require.Greater(t, stats.DataFramesDelivered, 0)

	got, err := os.ReadFile(outPath)
	require.NoError(t, err)
	require.Equal(t, "stop and wait, one frame at a time", string(got))
}

func TestServeRequestRespondsNotFoundForMissingFile(t *testing.T) {
	config.HandshakeTimeout = 50 * time.Millisecond

	baseDir := t.TempDir()
	parent, err := handshake.ListenParent("127.0.0.1", 0, baseDir)
	require.NoError(t, err)
	defer parent.Close()

	go ServerLoop(parent, "127.0.0.1", baseDir, 0, nil)

	outPath := filepath.Join(t.TempDir(), "out.bin")
	_, err = ClientRequest("127.0.0.1", parent.LocalAddr().Port, "missing.bin", outPath, 4, 8, 0, nil)
	require.ErrorIs(t, err, handshake.ErrFileNotFound)
}
