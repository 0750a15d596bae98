// Package sender implements the sender engine (§4.3): the sliding window,
// transmission of DATA frames, acknowledgement processing, retransmission on
// timeout and on selective reject, and the EOF exchange. One Engine drives
// exactly one session, single-threaded, suspending only at transport.PollCall.
package sender

import (
	"errors"
	"fmt"

	"github.com/iluksbr/udpftp/internal/config"
	"github.com/iluksbr/udpftp/internal/frame"
	"github.com/iluksbr/udpftp/internal/fsio"
	"github.com/iluksbr/udpftp/internal/transport"
	"github.com/iluksbr/udpftp/internal/window"
)

// ErrCanceled is returned when the caller's cancel channel fires mid-transfer.
var ErrCanceled = errors.New("sender: canceled")

// Stats summarizes what an Engine run did, for logging/metrics.
type Stats struct {
	DataFramesSent   int
	BytesSent        uint64
	Retransmissions  int
	Timeouts         int
	ForcedAcks       int
	ClosedUnilateral bool
}

// Engine is the sender-side state machine of one session.
type Engine struct {
	sock       transport.Conn
	source     fsio.Source
	windowSize int
	bufferSize int
	log        func(string)

	base       uint32
	nextSeq    uint32
	eofReached bool

	store  *window.Store
	replay *window.ReplayBuffer

	lastBase      uint32
	stallCounter  int
	dupBaseAcks   int // contagem de RR(base-1) consecutivos, para o fast-retransmit hint
	stallTimeouts int // timeouts consecutivos sem avanço de base

	stats Stats

	bytesSent  uint64
	onProgress func(bytesSent uint64)
	cancel     <-chan struct{}
}

// OnProgress registers a callback invoked after every DATA frame is sent,
// with the cumulative byte count sent so far. Intended for UI progress
// bars; fn may be nil.
func (e *Engine) OnProgress(fn func(bytesSent uint64)) { e.onProgress = fn }

// Cancel registers a channel that, when closed, makes Run return
// ErrCanceled at the next poll boundary. ch may be nil.
func (e *Engine) Cancel(ch <-chan struct{}) { e.cancel = ch }

// canceled reports whether the registered cancel channel has fired.
func (e *Engine) canceled() bool {
	if e.cancel == nil {
		return false
	}
	select {
	case <-e.cancel:
		return true
	default:
		return false
	}
}

// New builds a sender Engine bound to sock (already connected to the peer
// for this session) reading from source, with the negotiated window/buffer
// sizes. log may be nil.
func New(sock transport.Conn, source fsio.Source, windowSize, bufferSize int, log func(string)) *Engine {
	if log == nil {
		log = func(string) {}
	}
	return &Engine{
		sock:       sock,
		source:     source,
		windowSize: windowSize,
		bufferSize: bufferSize,
		log:        log,
		store:      window.NewStore(windowSize),
		replay:     window.NewReplayBuffer(windowSize, bufferSize),
	}
}

// Run drives the main loop to completion: fill, wait, process control
// frames, handle timeouts, and finally the EOF/terminal-RR exchange.
func (e *Engine) Run() (Stats, error) {
	for !(e.base == e.nextSeq && e.eofReached) {
		if e.canceled() {
			return e.stats, ErrCanceled
		}
		e.fill()

		dg, ok, err := e.wait()
		if err != nil {
			return e.stats, err
		}
		if ok {
			e.processControl(dg)
			e.stallTimeouts = 0
		} else {
			e.onTimeout()
		}
	}
	e.terminate()
	return e.stats, nil
}

// fill reads from the source and transmits DATA frames until the window is
// full or the source is exhausted (§4.3 step 1).
func (e *Engine) fill() {
	for e.nextSeq-e.base < uint32(e.windowSize) && !e.eofReached {
		buf := make([]byte, e.bufferSize)
		n, err := e.source.Read(buf)
		if err != nil || n == 0 {
			e.eofReached = true
			break
		}
		payload := buf[:n]
		e.replay.Write(e.nextSeq, payload)

		f := frame.NewData(e.nextSeq, payload)
		wire := frame.Encode(f)
		e.store.Put(window.Record{Seq: e.nextSeq, Bytes: wire, Flag: uint8(frame.DATA)})
		e.send(wire)
		e.stats.DataFramesSent++
		e.stats.BytesSent += uint64(n)
		e.nextSeq++
		e.bytesSent += uint64(n)
		if e.onProgress != nil {
			e.onProgress(e.bytesSent)
		}

		e.drainControlNonBlocking()
	}
}

// drainControlNonBlocking processes any control frames already waiting,
// without blocking (§4.3 step 1's "after every send").
func (e *Engine) drainControlNonBlocking() {
	for {
		dg, ok, err := e.sock.PollCall(0)
		if err != nil || !ok {
			return
		}
		e.processControl(dg)
	}
}

// wait blocks up to 1000ms if the window is full, or polls non-blockingly
// otherwise; a deadlock breaker forces a timeout if base hasn't moved for 3
// consecutive full-window waits (§4.3 step 2, §5).
func (e *Engine) wait() (transport.Datagram, bool, error) {
	full := e.nextSeq-e.base >= uint32(e.windowSize)
	if !full {
		e.lastBase = e.base
		e.stallCounter = 0
		return e.sock.PollCall(config.SenderIdleTimeout)
	}

	if e.base == e.lastBase {
		e.stallCounter++
	} else {
		e.lastBase = e.base
		e.stallCounter = 0
	}
	if e.stallCounter >= 3 {
		e.stallCounter = 0
		return transport.Datagram{}, false, nil // timeout forçado (deadlock breaker)
	}
	return e.sock.PollCall(config.SenderFullTimeout)
}

// processControl handles one received control frame (§4.3 step 3).
func (e *Engine) processControl(dg transport.Datagram) {
	f, err := frame.Decode(dg.Data)
	if err != nil {
		return // checksum inválido: descarta
	}
	switch f.Flag {
	case frame.RR:
		e.onRR(f)
	case frame.SREJ:
		e.onSREJ(f)
	}
}

func (e *Engine) onRR(f frame.Frame) {
	a, err := frame.ControlAck(f)
	if err != nil {
		return
	}
	dup := e.base > 0 && a == e.base-1
	for s := e.base; s <= a && s < e.nextSeq; s++ {
		e.store.MarkAcknowledged(s)
	}
	e.advanceBase()

	if dup {
		e.dupBaseAcks++
		if e.dupBaseAcks >= 3 {
			e.dupBaseAcks = 0
			e.resendAsTimeout(e.base)
		}
	} else {
		e.dupBaseAcks = 0
	}
}

func (e *Engine) onSREJ(f frame.Frame) {
	s, err := frame.ControlAck(f)
	if err != nil {
		return
	}
	if rec, ok := e.store.Get(s); ok {
		e.resendStored(rec, frame.RESENTSREJ)
		return
	}
	if payload, ok := e.replay.Read(s); ok {
		e.resendFromReplay(s, payload, frame.RESENTTIMEOUT)
		return
	}
	// Nem na janela nem no replay: não há o que reenviar.
}

// advanceBase slides base past every contiguous acknowledged frame starting
// at base, evicting their window records (§4.3 step 3).
func (e *Engine) advanceBase() {
	for e.base < e.nextSeq {
		rec, ok := e.store.Get(e.base)
		if !ok || !rec.Acknowledged {
			break
		}
		e.store.Evict(e.base)
		e.base++
	}
}

// onTimeout handles a sender-side timeout (§4.3 step 4): retransmit the
// base frame, or force-acknowledge it after MaxRetransmit attempts.
func (e *Engine) onTimeout() {
	e.stats.Timeouts++
	if e.base == e.nextSeq {
		return // janela vazia; nada a retransmitir (pode ocorrer após EOF pendente)
	}

	rec, ok := e.store.Get(e.base)
	if ok {
		e.resendStored(rec, frame.RESENTTIMEOUT)
		count := e.store.IncrementRetransmit(e.base)
		if count >= config.MaxRetransmit {
			e.forceAck(e.base)
			return
		}
	} else if payload, ok := e.replay.Read(e.base); ok {
		e.resendFromReplay(e.base, payload, frame.RESENTTIMEOUT)
	}

	baseBefore := e.base
	e.advanceBase()
	if e.base == baseBefore {
		e.stallTimeouts++
		if e.stallTimeouts > 10 {
			e.forceAck(e.base)
		}
	} else {
		e.stallTimeouts = 0
	}
}

// forceAck marks the stuck base slot acknowledged to guarantee forward
// progress, at the cost of a delivered gap (§4.3 step 4, §9).
func (e *Engine) forceAck(seq uint32) {
	e.store.MarkAcknowledged(seq)
	e.stats.ForcedAcks++
	e.stallTimeouts = 0
	e.advanceBase()
	e.log(fmt.Sprintf("WARN: forced ack of stuck seq=%d", seq))
}

func (e *Engine) resendAsTimeout(seq uint32) {
	if rec, ok := e.store.Get(seq); ok {
		e.resendStored(rec, frame.RESENTTIMEOUT)
		return
	}
	if payload, ok := e.replay.Read(seq); ok {
		e.resendFromReplay(seq, payload, frame.RESENTTIMEOUT)
	}
}

func (e *Engine) resendStored(rec window.Record, flag frame.Flag) {
	f, err := frame.Decode(rec.Bytes)
	if err != nil {
		return
	}
	f.Flag = flag
	wire := frame.Encode(f)
	e.store.Put(window.Record{Seq: rec.Seq, Bytes: wire, Flag: uint8(flag), Acknowledged: rec.Acknowledged, RetransmitCount: rec.RetransmitCount})
	e.send(wire)
	e.stats.Retransmissions++
}

func (e *Engine) resendFromReplay(seq uint32, payload []byte, flag frame.Flag) {
	f := frame.Frame{Seq: seq, Flag: flag, Payload: payload}
	wire := frame.Encode(f)
	e.store.Put(window.Record{Seq: seq, Bytes: wire, Flag: uint8(flag)})
	e.send(wire)
	e.stats.Retransmissions++
}

func (e *Engine) send(wire []byte) {
	_, _ = e.sock.Send(wire)
}

// terminate sends EOF and waits for a valid terminal RR (§4.3 step 5).
func (e *Engine) terminate() {
	wire := frame.Encode(frame.NewEOF(e.nextSeq, nil))
	for attempt := 1; attempt <= config.MaxRetransmit; attempt++ {
		e.send(wire)
		dg, ok, err := e.sock.PollCall(config.SenderFullTimeout)
		if err != nil || !ok {
			continue
		}
		f, err := frame.Decode(dg.Data)
		if err != nil || f.Flag != frame.RR {
			continue
		}
		a, err := frame.ControlAck(f)
		if err != nil {
			continue
		}
		if a+1 >= e.nextSeq {
			return
		}
		if attempt >= 6 {
			e.stats.ClosedUnilateral = true
			return
		}
		if attempt >= 4 {
			return
		}
	}
	e.stats.ClosedUnilateral = true
}
