package fsio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileSourceReadsExactBytes(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.bin"), []byte("hello world"), 0o644))

	src, err := OpenSource(dir, "a.bin")
	require.NoError(t, err)
	defer src.Close()

	var got []byte
	buf := make([]byte, 4)
	for {
		n, err := src.Read(buf)
		require.NoError(t, err)
		if n == 0 {
			break
		}
		got = append(got, buf[:n]...)
	}
	require.Equal(t, "hello world", string(got))
}

func TestOpenSourceRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	_, err := OpenSource(dir, "../etc/passwd")
	require.Error(t, err)
}

func TestFileSinkWritesInOrder(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "sub", "out.bin")

	sink, err := CreateSink(out)
	require.NoError(t, err)
	require.NoError(t, sink.Write([]byte("abc")))
	require.NoError(t, sink.Write([]byte("def")))
	require.NoError(t, sink.Close())

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Equal(t, "abcdef", string(data))
}
