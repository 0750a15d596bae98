//go:build !unix

package transport

import (
	"errors"
	"net"
	"time"
)

// pollReadable is the non-Unix fallback: there is no portable non-consuming
// readability check over net.UDPConn outside syscall.Poll, so this folds
// the wait into a deadline on the socket and reports readiness via a zero
// duration. PollCall still performs exactly one ReadFromUDP either way.
func pollReadable(conn *net.UDPConn, timeout time.Duration) (bool, error) {
	if timeout <= 0 {
		return true, nil
	}
	deadline := time.Now().Add(timeout)
	if err := conn.SetReadDeadline(deadline); err != nil {
		return false, err
	}
	if time.Now().After(deadline) {
		return false, errors.New("transport: invalid deadline")
	}
	return true, nil
}
