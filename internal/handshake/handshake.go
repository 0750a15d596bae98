// Package handshake implements the FILENAME exchange (§4.2): the client's
// send-and-retry of a FILENAME frame to the server's well-known endpoint,
// and the server's dispatch of each request to a migrated, per-session
// ephemeral endpoint that answers "File not found" or "OK".
package handshake

import (
	"errors"
	"net"
	"strconv"
	"time"

	"github.com/iluksbr/udpftp/internal/config"
	"github.com/iluksbr/udpftp/internal/frame"
	"github.com/iluksbr/udpftp/internal/listing"
	"github.com/iluksbr/udpftp/internal/transport"
)

// Mensagens de texto simples carregadas no payload de FILENAME_RESP.
const (
	MsgOK       = "OK"
	MsgNotFound = "File not found"
)

// ErrFileNotFound é retornado ao cliente quando o servidor responde que o
// arquivo solicitado não existe.
var ErrFileNotFound = errors.New("handshake: file not found")

// ErrHandshakeTimeout é retornado quando nenhuma resposta válida chega
// depois de InitRetryLimit tentativas.
var ErrHandshakeTimeout = errors.New("handshake: no response from server")

// Client executa o handshake do lado do cliente: envia FILENAME ao
// endpoint bem-conhecido do servidor, reenviando a cada HandshakeTimeout
// até InitRetryLimit vezes, e migra para o endpoint de sessão observado na
// resposta "OK". O socket retornado já está conectado a esse endpoint e
// pronto para o motor receptor.
func Client(remoteHost string, remotePort int, filename string, windowSize, bufferSize int) (*transport.Socket, error) {
	local, err := transport.Listen("0.0.0.0", 0)
	if err != nil {
		return nil, err
	}

	serverAddr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(remoteHost, strconv.Itoa(remotePort)))
	if err != nil {
		local.Close()
		return nil, err
	}

	payload, err := frame.EncodeInit(frame.InitPayload{
		Name:       filename,
		WindowSize: uint32(windowSize),
		BufferSize: uint32(bufferSize),
	})
	if err != nil {
		local.Close()
		return nil, err
	}
	wire := frame.Encode(frame.Frame{Flag: frame.FILENAME, Payload: payload})

	for attempt := 1; attempt <= config.InitRetryLimit; attempt++ {
		if _, err := local.SendTo(wire, serverAddr); err != nil {
			local.Close()
			return nil, err
		}

		dg, ok, err := local.PollCall(config.HandshakeTimeout)
		if err != nil {
			local.Close()
			return nil, err
		}
		if !ok {
			continue
		}

		f, err := frame.Decode(dg.Data)
		if err != nil || f.Flag != frame.FILENAMERESP {
			continue // corrompido ou inesperado: aguarda a próxima tentativa
		}

		switch string(f.Payload) {
		case MsgNotFound:
			local.Close()
			return nil, ErrFileNotFound
		case MsgOK:
			local.Close()
			sess, err := transport.Dial(dg.Addr.IP.String(), dg.Addr.Port)
			if err != nil {
				return nil, err
			}
			// RespondOK aguarda qualquer datagrama do novo endpoint do
			// cliente como confirmação de que a migração foi observada
			// (§4.2) antes de fixar o destino de DATA. Sem isto o servidor
			// esgotaria MaxRetransmit tentativas e cairia de volta à porta
			// de local, já fechada.
			confirm := frame.Encode(frame.NewControl(frame.RR, 0, 0))
			if _, err := sess.Send(confirm); err != nil {
				sess.Close()
				return nil, err
			}
			return sess, nil
		}
	}

	local.Close()
	return nil, ErrHandshakeTimeout
}

// Request é um pedido FILENAME recebido pelo endpoint bem-conhecido do
// servidor, ainda não despachado para uma sessão.
type Request struct {
	Filename   string
	WindowSize int
	BufferSize int
	ClientAddr *net.UDPAddr
}

// Parent é o socket bem-conhecido do servidor, que apenas recebe FILENAME
// e despacha — nunca transfere dados ele mesmo (§4.2, §5). Também responde
// inline a pedidos de listagem de diretório (não-core, ver internal/listing),
// já que essa consulta nunca abre uma sessão.
type Parent struct {
	sock    *transport.Socket
	baseDir string
}

// ListenParent vincula o endpoint bem-conhecido do servidor. baseDir é o
// diretório anunciado em resposta a pedidos de listagem (ver internal/listing).
func ListenParent(host string, port int, baseDir string) (*Parent, error) {
	sock, err := transport.Listen(host, port)
	if err != nil {
		return nil, err
	}
	return &Parent{sock: sock, baseDir: baseDir}, nil
}

// LocalAddr retorna o endereço vinculado (útil quando port=0 foi pedido).
func (p *Parent) LocalAddr() *net.UDPAddr { return p.sock.LocalAddr() }

// Close libera o endpoint bem-conhecido.
func (p *Parent) Close() error { return p.sock.Close() }

// Accept bloqueia até receber um FILENAME válido, descartando qualquer
// outro tráfego (datagramas corrompidos ou de tipo inesperado no endpoint
// bem-conhecido não deveriam ocorrer, mas não derrubam o servidor).
func (p *Parent) Accept() (Request, error) {
	for {
		dg, ok, err := p.sock.PollCall(time.Second)
		if err != nil {
			return Request{}, err
		}
		if !ok {
			continue
		}
		f, err := frame.Decode(dg.Data)
		if err != nil {
			continue
		}
		if listing.IsRequest(f) {
			names, _ := listing.ListDir(p.baseDir)
			_, _ = p.sock.SendTo(listing.EncodeResponse(names), dg.Addr)
			continue
		}
		if f.Flag != frame.FILENAME {
			continue
		}
		init, err := frame.DecodeInit(f.Payload)
		if err != nil {
			continue
		}
		return Request{
			Filename:   init.Name,
			WindowSize: int(init.WindowSize),
			BufferSize: int(init.BufferSize),
			ClientAddr: dg.Addr,
		}, nil
	}
}

// RespondNotFound migra para um endpoint de sessão efêmero e responde
// "File not found" ao cliente até FileNotFoundRetries vezes (§4.2).
func RespondNotFound(host string, clientAddr *net.UDPAddr) error {
	sess, err := transport.Listen(host, 0)
	if err != nil {
		return err
	}
	defer sess.Close()

	wire := frame.Encode(frame.Frame{Flag: frame.FILENAMERESP, Payload: []byte(MsgNotFound)})
	for attempt := 1; attempt <= config.FileNotFoundRetries; attempt++ {
		if _, err := sess.SendTo(wire, clientAddr); err != nil {
			return err
		}
		if _, ok, err := sess.PollCall(config.HandshakeTimeout); err != nil {
			return err
		} else if ok {
			return nil // cliente insistiu mesmo após a resposta; encerra de qualquer forma
		}
	}
	return nil
}

// RespondOK migra para um endpoint de sessão efêmero, responde "OK" ao
// cliente até MaxRetransmit vezes aguardando MigrationTimeout por alguma
// confirmação, e retorna um socket já conectado ao endpoint observado do
// cliente (ou ao endpoint original de FILENAME, se nenhuma confirmação
// chegou — progresso garantido, como em todo o resto do protocolo).
func RespondOK(host string, clientAddr *net.UDPAddr) (*transport.Socket, error) {
	sess, err := transport.Listen(host, 0)
	if err != nil {
		return nil, err
	}

	wire := frame.Encode(frame.Frame{Flag: frame.FILENAMERESP, Payload: []byte(MsgOK)})
	target := clientAddr
	for attempt := 1; attempt <= config.MaxRetransmit; attempt++ {
		if _, err := sess.SendTo(wire, clientAddr); err != nil {
			sess.Close()
			return nil, err
		}
		dg, ok, err := sess.PollCall(config.MigrationTimeout)
		if err != nil {
			sess.Close()
			return nil, err
		}
		if ok {
			target = dg.Addr
			break
		}
	}

	conn, err := transport.Dial(target.IP.String(), target.Port)
	sess.Close()
	return conn, err
}
