package someip

import (
	"net"
	"time"
)

// UDPClient sends and receives raw datagrams over an unconnected UDP
// socket, for TP senders and other plain datagram users (SdClient and
// SdServer use their own *net.UDPConn, see UDPServer).
type UDPClient struct {
	conn *net.UDPConn
}

// NewUDPClient binds an ephemeral local socket for sending.
func NewUDPClient() (*UDPClient, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{})
	if err != nil {
		return nil, err
	}
	return &UDPClient{conn: conn}, nil
}

func (c *UDPClient) SendTo(b []byte, addr net.Addr) (int, error) { return c.conn.WriteTo(b, addr) }
func (c *UDPClient) RecvFrom(b []byte) (int, net.Addr, error)    { return c.conn.ReadFromUDP(b) }
func (c *UDPClient) SetReadDeadline(t time.Time) error           { return c.conn.SetReadDeadline(t) }
func (c *UDPClient) LocalAddr() net.Addr                         { return c.conn.LocalAddr() }
func (c *UDPClient) Close() error                                { return c.conn.Close() }

// UDPServer is a UDP socket bound to a fixed local address, optionally
// joined to an IPv4 multicast group. SdClient and SdServer each wrap one
// of these directly rather than going through this type, since they also
// need access to the *net.UDPConn for ListenMulticastUDP; UDPServer exists
// for transports (C7 senders, future consumers) that only need the plain
// DatagramTransport surface.
type UDPServer struct {
	conn *net.UDPConn
}

// NewUDPServer binds addr, joining group on iface if group is non-nil.
func NewUDPServer(addr *net.UDPAddr, group *net.UDPAddr, iface *net.Interface) (*UDPServer, error) {
	var conn *net.UDPConn
	var err error
	if group != nil {
		conn, err = net.ListenMulticastUDP("udp", iface, &net.UDPAddr{IP: group.IP, Port: addr.Port})
	} else {
		conn, err = net.ListenUDP("udp", addr)
	}
	if err != nil {
		return nil, err
	}
	return &UDPServer{conn: conn}, nil
}

func (s *UDPServer) SendTo(b []byte, addr net.Addr) (int, error) { return s.conn.WriteTo(b, addr) }
func (s *UDPServer) RecvFrom(b []byte) (int, net.Addr, error)    { return s.conn.ReadFromUDP(b) }
func (s *UDPServer) SetReadDeadline(t time.Time) error           { return s.conn.SetReadDeadline(t) }
func (s *UDPServer) LocalAddr() net.Addr                         { return s.conn.LocalAddr() }
func (s *UDPServer) Close() error                                { return s.conn.Close() }
