// Package receiver implements the receiver engine (§4.4): in-order
// delivery to the sink, out-of-order buffering, RR/SREJ generation, and
// the EOF handshake that ends a transfer.
package receiver

import (
	"errors"

	"github.com/iluksbr/udpftp/internal/config"
	"github.com/iluksbr/udpftp/internal/frame"
	"github.com/iluksbr/udpftp/internal/fsio"
	"github.com/iluksbr/udpftp/internal/reorder"
	"github.com/iluksbr/udpftp/internal/transport"
)

// ErrGaveUp is returned when the peer goes silent for 15 consecutive
// DataTimeout intervals with the transfer incomplete (§4.4).
var ErrGaveUp = errors.New("receiver: peer unresponsive, gave up")

// Stats summarizes what an Engine run did, for logging/metrics.
type Stats struct {
	DataFramesDelivered int
	BytesDelivered      uint64
	DuplicatesDiscarded int
	OutOfOrderBuffered  int
	SREJsSent           int
	RRsSent             int
	Timeouts            int
}

// Engine is the receiver-side state machine of one session.
type Engine struct {
	sock       transport.Conn
	sink       fsio.Sink
	windowSize int
	log        func(string)

	expectedSeq        uint32
	highestReceivedSeq uint32
	haveReceived       bool
	buf                *reorder.Buffer

	consecutiveTimeouts int
	stats               Stats

	bytesDelivered uint64
	onProgress     func(bytesDelivered uint64)
	cancel         <-chan struct{}
}

// ErrCanceled is returned when the caller's cancel channel fires mid-transfer.
var ErrCanceled = errors.New("receiver: canceled")

// OnProgress registers a callback invoked after every successful delivery
// to the sink, with the cumulative byte count delivered so far. Intended
// for UI progress bars; fn may be nil.
func (e *Engine) OnProgress(fn func(bytesDelivered uint64)) { e.onProgress = fn }

// Cancel registers a channel that, when closed, makes Run return
// ErrCanceled at the next poll boundary. ch may be nil.
func (e *Engine) Cancel(ch <-chan struct{}) { e.cancel = ch }

// New builds a receiver Engine bound to sock (connected to the sender for
// this session), writing delivered payload bytes to sink in order.
func New(sock transport.Conn, sink fsio.Sink, windowSize int, log func(string)) *Engine {
	if log == nil {
		log = func(string) {}
	}
	return &Engine{
		sock:       sock,
		sink:       sink,
		windowSize: windowSize,
		log:        log,
		buf:        reorder.New(windowSize),
	}
}

// Run drives the main loop until EOF is delivered or the peer is declared
// unresponsive.
func (e *Engine) Run() (Stats, error) {
	for {
		if e.canceled() {
			return e.stats, ErrCanceled
		}

		dg, ok, err := e.sock.PollCall(config.DataTimeout)
		if err != nil {
			return e.stats, err
		}
		if !ok {
			e.consecutiveTimeouts++
			e.stats.Timeouts++
			if e.consecutiveTimeouts >= 15 {
				// Último sinal ao emissor antes de desistir: pede
				// explicitamente o próximo seq que falta (§4.4 step 3).
				e.sendSREJ(e.highestReceivedSeq + 1)
				return e.stats, ErrGaveUp
			}
			if e.haveReceived {
				e.sendRR(e.highestReceivedSeq)
			}
			continue
		}
		e.consecutiveTimeouts = 0

		f, err := frame.Decode(dg.Data)
		if err != nil {
			// checksum inválido: pede retransmissão imediata do seq
			// esperado em vez de esperar o timeout do emissor (§4.4 step 2).
			e.sendSREJ(e.expectedSeq)
			continue
		}

		switch f.Flag {
		case frame.DATA, frame.RESENTSREJ, frame.RESENTTIMEOUT:
			if done := e.onData(f); done {
				return e.stats, nil
			}
		case frame.EOF:
			if done := e.onEOF(f); done {
				return e.stats, nil
			}
		default:
			// RR/SREJ/FILENAME* não são esperados neste canal; ignora.
		}
	}
}

// onData processes one DATA, RESENT_SREJ or RESENT_TIMEOUT frame (§4.4),
// all three alike: deliver in order, buffer if
// ahead of expectedSeq, discard if a duplicate of already-delivered data.
func (e *Engine) onData(f frame.Frame) (done bool) {
	if !e.haveReceived || seqAfter(f.Seq, e.highestReceivedSeq) {
		e.highestReceivedSeq = f.Seq
		e.haveReceived = true
	}
	switch {
	case f.Seq == e.expectedSeq:
		e.deliver(f.Payload)
		e.drainBuffered()
		e.sendRR(e.expectedSeq - 1)
	case seqAfter(f.Seq, e.expectedSeq):
		if !e.buf.Has(f.Seq) {
			e.buf.Put(f.Seq, f.Payload)
			e.stats.OutOfOrderBuffered++
		}
		e.sendSREJ(e.expectedSeq)
	default:
		// seq < expectedSeq: duplicata de um frame já entregue.
		e.stats.DuplicatesDiscarded++
		e.sendRR(e.expectedSeq - 1)
	}
	return false
}

// onEOF processes an EOF frame: any payload the sender attached is
// delivered first if it's the next in-order byte, then the transfer
// completes once everything up to EOF's seq has been delivered.
func (e *Engine) onEOF(f frame.Frame) (done bool) {
	if f.Seq == e.expectedSeq {
		if len(f.Payload) > 0 {
			e.deliver(f.Payload)
		}
		e.drainBuffered()
		e.sendRR(e.expectedSeq)
		return true
	}
	if seqAfter(f.Seq, e.expectedSeq) {
		e.sendSREJ(e.expectedSeq)
		return false
	}
	e.sendRR(e.expectedSeq - 1)
	return false
}

// deliver writes payload to the sink and advances expectedSeq.
func (e *Engine) deliver(payload []byte) {
	if len(payload) > 0 {
		_ = e.sink.Write(payload)
		e.bytesDelivered += uint64(len(payload))
		e.stats.BytesDelivered = e.bytesDelivered
	}
	e.expectedSeq++
	e.stats.DataFramesDelivered++
	if e.onProgress != nil {
		e.onProgress(e.bytesDelivered)
	}
}

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

// drainBuffered delivers any reorder-buffered frames that have become the
// new expectedSeq, in sequence.
func (e *Engine) drainBuffered() {
	for {
		payload, ok := e.buf.Take(e.expectedSeq)
		if !ok {
			return
		}
		e.deliver(payload)
	}
}

// sendRR emits a positive acknowledgement for seq acked.
func (e *Engine) sendRR(acked uint32) {
	wire := frame.Encode(frame.NewControl(frame.RR, acked, acked))
	_, _ = e.sock.Send(wire)
	e.stats.RRsSent++
}

// sendSREJ requests retransmission of the missing seq.
func (e *Engine) sendSREJ(seq uint32) {
	wire := frame.Encode(frame.NewControl(frame.SREJ, seq, seq))
	_, _ = e.sock.Send(wire)
	e.stats.SREJsSent++
}

// seqAfter reports whether a comes strictly after b, treating the 32-bit
// seq space as unwrapped (transfers never approach 2^32 frames).
func seqAfter(a, b uint32) bool { return a > b }
