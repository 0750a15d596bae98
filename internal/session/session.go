// Package session wires the handshake, the sender/receiver engines, the
// optional error-rate simulation, and file I/O together into the two
// per-transfer roles: the client requesting a file, and the server serving
// one accepted request. ClientRequest, ClientRequestManaged and ServeRequest
// each drive exactly one session to completion and return its statistics;
// ServerLoop and ManagedServer dispatch many such sessions.
package session

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/iluksbr/udpftp/internal/fsio"
	"github.com/iluksbr/udpftp/internal/handshake"
	"github.com/iluksbr/udpftp/internal/logger"
	"github.com/iluksbr/udpftp/internal/metrics"
	"github.com/iluksbr/udpftp/internal/receiver"
	"github.com/iluksbr/udpftp/internal/sender"
	"github.com/iluksbr/udpftp/internal/simulate"
	"github.com/iluksbr/udpftp/internal/transport"
)

// wrap applies the error-rate simulation to conn when rate > 0, otherwise
// returns conn unchanged.
func wrap(conn transport.Conn, rate float64) transport.Conn {
	if rate <= 0 {
		return conn
	}
	return simulate.New(conn, rate, time.Now().UnixNano())
}

func adapt(log *logger.Logger) func(string) {
	if log == nil {
		return func(string) {}
	}
	return func(msg string) { log.Info("%s", msg) }
}

// ClientRequest downloads fromFilename from remoteHost:remotePort, writing
// it to toFilename. windowSize/bufferSize negotiate the session during the
// handshake; errorRate simulates an imperfect network on the local side of
// the connection (§4.2, §4.4).
func ClientRequest(remoteHost string, remotePort int, fromFilename, toFilename string, windowSize, bufferSize int, errorRate float64, log *logger.Logger) (receiver.Stats, error) {
	return ClientRequestManaged(remoteHost, remotePort, fromFilename, toFilename, windowSize, bufferSize, errorRate, log, nil, nil)
}

// ClientRequestManaged is ClientRequest with progress reporting and
// cooperative cancellation, for interactive callers that need to drive a
// progress bar or offer a cancel button (the GUI client). onProgress and
// cancel may both be nil, in which case it behaves exactly like
// ClientRequest.
func ClientRequestManaged(remoteHost string, remotePort int, fromFilename, toFilename string, windowSize, bufferSize int, errorRate float64, log *logger.Logger, onProgress func(bytesDelivered uint64), cancel <-chan struct{}) (receiver.Stats, error) {
	sock, err := handshake.Client(remoteHost, remotePort, fromFilename, windowSize, bufferSize)
	if err != nil {
		return receiver.Stats{}, err
	}
	conn := wrap(sock, errorRate)
	defer conn.Close()

	sink, err := fsio.CreateSink(toFilename)
	if err != nil {
		return receiver.Stats{}, err
	}
	defer sink.Close()

	eng := receiver.New(conn, sink, windowSize, adapt(log))
	eng.OnProgress(onProgress)
	eng.Cancel(cancel)
	return eng.Run()
}

// ServeRequest answers one already-accepted handshake.Request: it looks up
// the requested file under baseDir, responds "File not found" if absent,
// otherwise responds "OK" and runs the sender engine to completion
// (§4.2, §4.3). host is the address family/interface the ephemeral session
// endpoint binds on, matching the well-known parent listener's host.
func ServeRequest(host, baseDir string, req handshake.Request, errorRate float64, log *logger.Logger) (sender.Stats, error) {
	src, err := fsio.OpenSource(baseDir, req.Filename)
	if err != nil {
		if rerr := handshake.RespondNotFound(host, req.ClientAddr); rerr != nil {
			return sender.Stats{}, rerr
		}
		return sender.Stats{}, err
	}
	defer src.Close()

	sock, err := handshake.RespondOK(host, req.ClientAddr)
	if err != nil {
		return sender.Stats{}, err
	}
	conn := wrap(sock, errorRate)
	defer conn.Close()

	windowSize := req.WindowSize
	bufferSize := req.BufferSize
	eng := sender.New(conn, src, windowSize, bufferSize, adapt(log))
	return eng.Run()
}

// ServerLoop accepts handshake requests on parent forever, dispatching each
// to its own goroutine so sessions never share state (§5). It returns only
// when Accept itself fails (e.g. the listener was closed).
func ServerLoop(parent *handshake.Parent, host, baseDir string, errorRate float64, log *logger.Logger) error {
	for {
		req, err := parent.Accept()
		if err != nil {
			return err
		}
		go func(req handshake.Request) {
			stats, err := ServeRequest(host, baseDir, req, errorRate, log)
			if err != nil {
				logMsg(log, fmt.Sprintf("session %s %s: %v", req.ClientAddr, req.Filename, err))
				return
			}
			logMsg(log, fmt.Sprintf("session %s %s: sent %d data frames, %d retransmissions",
				req.ClientAddr, req.Filename, stats.DataFramesSent, stats.Retransmissions))
		}(req)
	}
}

func logMsg(log *logger.Logger, msg string) {
	if log != nil {
		log.Info("%s", msg)
	}
}

// ManagedServer is a start/stop wrapper around a well-known listener and its
// accept loop, with live metrics, for hosts that need to start and stop
// serving interactively instead of blocking main() — namely the GUI server.
type ManagedServer struct {
	mu      sync.Mutex
	parent  *handshake.Parent
	baseDir string
	metrics *metrics.ServerMetrics
}

// NewManagedServer returns a ManagedServer that is not yet listening.
func NewManagedServer() *ManagedServer {
	return &ManagedServer{}
}

// SetBaseDir changes the directory files are served from. Safe to call
// before or while the server is running; takes effect on the next accepted
// request.
func (m *ManagedServer) SetBaseDir(dir string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.baseDir = dir
}

// Start binds the well-known endpoint and begins accepting requests,
// dispatching each to its own goroutine (§5). It is a no-op if already
// running.
func (m *ManagedServer) Start(host string, port int, errorRate float64, log *logger.Logger) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.parent != nil {
		return nil
	}
	parent, err := handshake.ListenParent(host, port, m.baseDir)
	if err != nil {
		return err
	}
	m.parent = parent
	m.metrics = metrics.NewServerMetrics()
	go m.acceptLoop(host, errorRate, log)
	return nil
}

// Stop closes the well-known listener, ending the accept loop.
func (m *ManagedServer) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.parent != nil {
		m.parent.Close()
		m.parent = nil
	}
}

// LocalAddr reports the well-known endpoint's bound address, or nil if not
// running.
func (m *ManagedServer) LocalAddr() *net.UDPAddr {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.parent == nil {
		return nil
	}
	return m.parent.LocalAddr()
}

// Snapshot returns the server's current metrics. Safe to call at any time.
func (m *ManagedServer) Snapshot() metrics.ServerMetrics {
	m.mu.Lock()
	mtr := m.metrics
	m.mu.Unlock()
	if mtr == nil {
		return metrics.ServerMetrics{}
	}
	return mtr.GetSnapshot()
}

func (m *ManagedServer) acceptLoop(host string, errorRate float64, log *logger.Logger) {
	for {
		m.mu.Lock()
		parent := m.parent
		m.mu.Unlock()
		if parent == nil {
			return
		}

		req, err := parent.Accept()
		if err != nil {
			return
		}

		m.metrics.AddConnection()
		go func(req handshake.Request) {
			defer m.metrics.RemoveConnection()

			m.mu.Lock()
			baseDir := m.baseDir
			m.mu.Unlock()

			stats, err := ServeRequest(host, baseDir, req, errorRate, log)
			if err != nil {
				m.metrics.AddError()
				logMsg(log, fmt.Sprintf("session %s %s: %v", req.ClientAddr, req.Filename, err))
				return
			}
			m.metrics.AddBytesSent(stats.BytesSent)
			m.metrics.AddSegmentsSent(uint64(stats.DataFramesSent))
			for i := 0; i < stats.Retransmissions; i++ {
				m.metrics.AddRetransmission()
			}
			for i := 0; i < stats.Timeouts; i++ {
				m.metrics.AddTimeout()
			}
			logMsg(log, fmt.Sprintf("session %s %s: sent %d data frames, %d retransmissions",
				req.ClientAddr, req.Filename, stats.DataFramesSent, stats.Retransmissions))
		}(req)
	}
}
