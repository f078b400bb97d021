package replication

import (
	"net"
	"time"
)

// Result is the taxonomised outcome of a socket send/receive, so
// callers can decide locally instead of unwrapping error chains.
type Result int

const (
	ResultOK Result = iota
	ResultWouldBlock
	ResultTooBig
	ResultSystem
	ResultInvalidHash
	ResultAlreadyReceived
)

func (r Result) String() string {
	switch r {
	case ResultOK:
		return "ok"
	case ResultWouldBlock:
		return "would_block"
	case ResultTooBig:
		return "too_big"
	case ResultSystem:
		return "system"
	case ResultInvalidHash:
		return "invalid_hash"
	case ResultAlreadyReceived:
		return "already_received"
	default:
		return "unknown"
	}
}

// Socket is a non-blocking UDP transport capped at MaxDatagramSize.
// "Non-blocking" is implemented with a read deadline 1 ms ahead per
// Recv call rather than O_NONBLOCK, since net.UDPConn has no direct
// non-blocking mode on all platforms.
type Socket struct {
	conn *net.UDPConn
}

// Listen opens a UDP socket bound to addr (host:port, or ":0" for an
// ephemeral client port).
func Listen(addr string) (*Socket, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, err
	}
	return &Socket{conn: conn}, nil
}

// LocalAddr returns the socket's bound address.
func (s *Socket) LocalAddr() net.Addr { return s.conn.LocalAddr() }

// Close releases the underlying file descriptor.
func (s *Socket) Close() error { return s.conn.Close() }

// Send transmits buf to dst. A payload larger than MaxDatagramSize is
// rejected before it reaches the OS.
func (s *Socket) Send(dst *net.UDPAddr, buf []byte) Result {
	if len(buf)-HeaderSize > MaxDatagramSize {
		return ResultTooBig
	}
	if _, err := s.conn.WriteToUDP(buf, dst); err != nil {
		return ResultSystem
	}
	return ResultOK
}

// Recv attempts one read: a queued datagram is returned at once, and
// ResultWouldBlock is returned if nothing arrives within 1 ms, rather
// than blocking the caller's goroutine. A deadline already in the past
// would fail the read without looking at the queue.
func (s *Socket) Recv(buf []byte) (int, *net.UDPAddr, Result) {
	if err := s.conn.SetReadDeadline(time.Now().Add(time.Millisecond)); err != nil {
		return 0, nil, ResultSystem
	}
	n, addr, err := s.conn.ReadFromUDP(buf)
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return 0, nil, ResultWouldBlock
		}
		return 0, nil, ResultSystem
	}
	return n, addr, ResultOK
}
