// Package listing implements the optional directory-listing convenience:
// a client can ask a server's well-known endpoint which files it serves,
// without opening a transfer session. It is not part of the core
// reliable-transfer protocol — the two flag values it uses sit outside the
// reserved core range precisely so they can never be mistaken for one of
// the core frames.
package listing

import (
	"errors"
	"net"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/iluksbr/udpftp/internal/frame"
	"github.com/iluksbr/udpftp/internal/transport"
)

// ErrNoResponse is returned when a server never answers a listing query.
var ErrNoResponse = errors.New("listing: no response from server")

// Flag values reserved for this convenience, outside the core protocol's
// 5/6/8/9/10/16/17/18 range.
const (
	List     frame.Flag = 30
	ListResp frame.Flag = 31
)

const separator = "\x00"

// EncodeRequest builds the wire form of a listing request.
func EncodeRequest() []byte {
	return frame.Encode(frame.Frame{Flag: List})
}

// IsRequest reports whether a decoded frame is a listing request.
func IsRequest(f frame.Frame) bool { return f.Flag == List }

// EncodeResponse builds the wire form of a listing response carrying
// names, null-separated.
func EncodeResponse(names []string) []byte {
	return frame.Encode(frame.Frame{Flag: ListResp, Payload: []byte(strings.Join(names, separator))})
}

// DecodeResponse extracts the names carried by a listing response frame.
func DecodeResponse(f frame.Frame) []string {
	if len(f.Payload) == 0 {
		return nil
	}
	return strings.Split(string(f.Payload), separator)
}

// ListDir returns the non-directory entries of dir, sorted, for use by a
// server answering a listing request.
func ListDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Query asks a server's well-known endpoint for its file listing, waiting
// up to timeout for a response. It does not open a transfer session.
func Query(host string, port int, timeout time.Duration) ([]string, error) {
	addr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, err
	}
	sock, err := transport.Listen("0.0.0.0", 0)
	if err != nil {
		return nil, err
	}
	defer sock.Close()

	if _, err := sock.SendTo(EncodeRequest(), addr); err != nil {
		return nil, err
	}
	dg, ok, err := sock.PollCall(timeout)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoResponse
	}
	f, err := frame.Decode(dg.Data)
	if err != nil {
		return nil, err
	}
	return DecodeResponse(f), nil
}
