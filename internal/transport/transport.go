// Package transport fornece o primitivo de datagrama usado pelas camadas de
// confiabilidade: resolução de endereço, criação de socket, envio bloqueante
// e um pollCall(timeout_ms) que aguarda até timeout_ms por dado legível
// (§5). Estes são os "external collaborators" descritos pela especificação:
// a especificação não normatiza como são implementados, apenas que existem.
package transport

import (
	"net"
	"strconv"
	"time"

	"github.com/iluksbr/udpftp/internal/config"
)

// Conn é o que as máquinas de estado do emissor e do receptor exigem de um
// transporte: envio, recepção com poll-e-timeout, endereço local e
// encerramento. *Socket satisfaz Conn; o pacote simulate também o faz, para
// injetar perda/corrupção sem que os motores conheçam a diferença.
type Conn interface {
	Send(b []byte) (int, error)
	SendTo(b []byte, addr *net.UDPAddr) (int, error)
	PollCall(timeout time.Duration) (Datagram, bool, error)
	LocalAddr() *net.UDPAddr
	Close() error
}

// Socket envolve um *net.UDPConn oferecendo o primitivo de poll exigido
// pelas máquinas de estado do emissor e do receptor.
type Socket struct {
	conn *net.UDPConn
}

// Listen vincula um socket UDP a host:port (port=0 deixa o SO escolher,
// usado na migração de endpoint do handshake).
func Listen(host string, port int) (*Socket, error) {
	addr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, err
	}
	_ = conn.SetReadBuffer(config.DefaultReadBuffer)
	_ = conn.SetWriteBuffer(config.DefaultWriteBuffer)
	return &Socket{conn: conn}, nil
}

// Dial resolve e conecta um socket UDP ao endpoint remoto dado.
func Dial(host string, port int) (*Socket, error) {
	addr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, err
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, err
	}
	_ = conn.SetReadBuffer(config.DefaultReadBuffer)
	_ = conn.SetWriteBuffer(config.DefaultWriteBuffer)
	return &Socket{conn: conn}, nil
}

// LocalAddr retorna o endereço local vinculado ao socket.
func (s *Socket) LocalAddr() *net.UDPAddr {
	return s.conn.LocalAddr().(*net.UDPAddr)
}

// Close libera o socket.
func (s *Socket) Close() error { return s.conn.Close() }

// SendTo envia um datagrama bloqueante a um destino explícito (uso do lado
// não-conectado, tipicamente o endpoint bem-conhecido do servidor).
func (s *Socket) SendTo(b []byte, addr *net.UDPAddr) (int, error) {
	return s.conn.WriteToUDP(b, addr)
}

// Send envia um datagrama bloqueante no socket conectado (ou ao último peer
// implícito de um socket de sessão que só fala com um endpoint).
func (s *Socket) Send(b []byte) (int, error) {
	return s.conn.Write(b)
}

// Datagram é o resultado de uma recepção bem-sucedida.
type Datagram struct {
	Data []byte
	Addr *net.UDPAddr
}

// PollCall aguarda até timeout por um datagrama legível e, se houver,
// o consome e retorna. Retorna ok=false em caso de timeout. Esta é a única
// forma de espera do modelo de concorrência (§5): um único primitivo de
// poll-com-timeout por ponto de suspensão.
func (s *Socket) PollCall(timeout time.Duration) (Datagram, bool, error) {
	readable, err := pollReadable(s.conn, timeout)
	if err != nil {
		return Datagram{}, false, err
	}
	if !readable {
		return Datagram{}, false, nil
	}

	buf := make([]byte, 65535)
	n, addr, err := s.conn.ReadFromUDP(buf)
	if err != nil {
		// A janela de legibilidade fechou entre o poll e a leitura (raro);
		// trate como timeout em vez de propagar um erro espúrio.
		return Datagram{}, false, nil
	}
	return Datagram{Data: buf[:n], Addr: addr}, true, nil
}

