//go:build unix

package transport

import (
	"net"
	"time"

	"golang.org/x/sys/unix"
)

// pollReadable implements the poll-with-timeout primitive on Unix using
// golang.org/x/sys/unix.Poll against the connection's raw file descriptor,
// so a 0ms call truly performs a non-blocking readability check rather than
// always reading (and thus risking consuming a datagram the caller did not
// ask for).
func pollReadable(conn *net.UDPConn, timeout time.Duration) (bool, error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return false, err
	}

	var readable bool
	var pollErr error
	ctrlErr := raw.Control(func(fd uintptr) {
		fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
		ms := int(timeout / time.Millisecond)
		n, e := unix.Poll(fds, ms)
		if e != nil {
			pollErr = e
			return
		}
		readable = n > 0 && fds[0].Revents&unix.POLLIN != 0
	})
	if ctrlErr != nil {
		return false, ctrlErr
	}
	if pollErr != nil || !readable {
		return false, pollErr
	}
	// Data is already waiting; a short deadline just guards the read itself.
	_ = conn.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
	return true, nil
}
