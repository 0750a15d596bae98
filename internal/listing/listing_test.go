package listing

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iluksbr/udpftp/internal/frame"
	"github.com/iluksbr/udpftp/internal/transport"
)

func TestEncodeDecodeResponseRoundTrip(t *testing.T) {
	names := []string{"a.bin", "b.txt", "report.bin"}
	f, err := frame.Decode(EncodeResponse(names))
	require.NoError(t, err)
	require.Equal(t, names, DecodeResponse(f))
}

func TestIsRequestRecognizesOnlyListFlag(t *testing.T) {
	req, err := frame.Decode(EncodeRequest())
	require.NoError(t, err)
	require.True(t, IsRequest(req))

	data := frame.Frame{Flag: frame.DATA}
	require.False(t, IsRequest(data))
}

func TestListDirSortsNonDirectoryEntries(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.bin"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.bin"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir"), 0o755))

	names, err := ListDir(dir)
	require.NoError(t, err)
	require.Equal(t, []string{"a.bin", "b.bin"}, names)
}

func TestQueryReceivesServerListing(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "one.bin"), []byte("x"), 0o644))

	server, err := transport.Listen("127.0.0.1", 0)
	require.NoError(t, err)
	defer server.Close()

	go func() {
		dg, ok, err := server.PollCall(2 * time.Second)
		if err != nil || !ok {
			return
		}
		f, err := frame.Decode(dg.Data)
		if err != nil || !IsRequest(f) {
			return
		}
		names, _ := ListDir(dir)
		_, _ = server.SendTo(EncodeResponse(names), dg.Addr)
	}()

	names, err := Query("127.0.0.1", server.LocalAddr().Port, time.Second)
	require.NoError(t, err)
	require.Equal(t, []string{"one.bin"}, names)
}

func TestQueryTimesOutWithNoResponse(t *testing.T) {
	_, err := Query("127.0.0.1", 1, 20*time.Millisecond)
	require.Error(t, err)
}
