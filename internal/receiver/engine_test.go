package receiver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iluksbr/udpftp/internal/config"
	"github.com/iluksbr/udpftp/internal/frame"
	"github.com/iluksbr/udpftp/internal/transport"
)

type memSink struct {
	data []byte
}

func (m *memSink) Write(b []byte) error {
	m.data = append(m.data, b...)
	return nil
}

func (m *memSink) Close() error { return nil }

func pair(t *testing.T) (*transport.Socket, *transport.Socket) {
	srv, err := transport.Listen("127.0.0.1", 0)
	require.NoError(t, err)
	cli, err := transport.Dial("127.0.0.1", srv.LocalAddr().Port)
	require.NoError(t, err)
	sess, err := transport.Dial("127.0.0.1", cli.LocalAddr().Port)
	require.NoError(t, err)
	srv.Close()
	return sess, cli
}

func TestEngineDeliversInOrderAndHandlesOutOfOrder(t *testing.T) {
	config.DataTimeout = 300 * time.Millisecond

	sess, peer := pair(t)
	defer sess.Close()
	defer peer.Close()

	sink := &memSink{}
	eng := New(sess, sink, 4, nil)

	done := make(chan Stats)
	errc := make(chan error, 1)
	go func() {
		s, err := eng.Run()
		errc <- err
		done <- s
	}()

	// Envia seq=1 primeiro (fora de ordem), depois seq=0.
	peer.Send(frame.Encode(frame.NewData(1, []byte("def"))))
	time.Sleep(20 * time.Millisecond)
	peer.Send(frame.Encode(frame.NewData(0, []byte("abc"))))

	// Drena os RR/SREJ de controle emitidos até aqui (até 5 polls) antes de
	// enviar o EOF.
	for i := 0; i < 5; i++ {
		dg, ok, err := peer.PollCall(200 * time.Millisecond)
		require.NoError(t, err)
		if !ok {
			continue
		}
		f, err := frame.Decode(dg.Data)
		require.NoError(t, err)
		_ = f
	}

	peer.Send(frame.Encode(frame.NewEOF(2, nil)))

	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not finish")
	}
	<-done

	require.Equal(t, "abcdef", string(sink.data))
}

func TestEngineGivesUpAfterSustainedSilence(t *testing.T) {
	config.DataTimeout = 5 * time.Millisecond

	sess, peer := pair(t)
	defer sess.Close()
	defer peer.Close()

	sink := &memSink{}
	eng := New(sess, sink, 4, nil)

	_, err := eng.Run()
	require.ErrorIs(t, err, ErrGaveUp)
}
