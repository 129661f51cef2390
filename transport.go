package someip

import (
	"net"
	"time"
)

// StreamTransport is the octet-stream side of the transport layer: a
// connected, message-framed duplex link to one peer, mirroring the
// teacher's Bus/FrameHandler split between protocol logic and byte-level
// I/O. TCPConnection implements it; ConnectionManager and ConnectionPool
// hold a *TCPConnection directly rather than this interface.
type StreamTransport interface {
	// ReadMessage blocks for exactly one framed message, honoring any read
	// deadline set via SetReadDeadline.
	ReadMessage() (*Message, error)
	// WriteMessage writes one framed message, honoring any write deadline
	// set via SetWriteDeadline.
	WriteMessage(*Message) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	// RemoteAddr reports the address of the connected peer.
	RemoteAddr() net.Addr
	Close() error
}

// DatagramTransport is the datagram side of the transport layer,
// implemented by UDPClient and UDPServer. SdClient and SdServer do not use
// it; they hold a *net.UDPConn directly.
type DatagramTransport interface {
	SendTo(b []byte, addr net.Addr) (int, error)
	RecvFrom(b []byte) (n int, addr net.Addr, err error)
	SetReadDeadline(t time.Time) error
	LocalAddr() net.Addr
	Close() error
}
