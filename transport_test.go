package someip

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTCPServerClientRoundTrip(t *testing.T) {
	server, err := NewTCPServer("127.0.0.1:0")
	require.NoError(t, err)
	defer server.Close()

	accepted := make(chan *TCPConnection, 1)
	acceptErr := make(chan error, 1)
	go func() {
		conn, err := server.Accept()
		if err != nil {
			acceptErr <- err
			return
		}
		accepted <- conn
	}()

	client, err := NewTCPClient("tcp", server.Addr().String())
	require.NoError(t, err)
	clientConn, err := client.ConnectTimeout(time.Second)
	require.NoError(t, err)
	defer clientConn.Close()

	var serverConn *TCPConnection
	select {
	case serverConn = <-accepted:
	case err := <-acceptErr:
		t.Fatalf("accept: %v", err)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for accept")
	}
	defer serverConn.Close()

	msg := NewRequest(ServiceId(0x1111), MethodId(0x0001)).Payload([]byte("hello")).Build()
	require.NoError(t, clientConn.WriteMessage(msg))

	require.NoError(t, serverConn.SetReadDeadline(time.Now().Add(time.Second)))
	received, err := serverConn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), received.Payload)
	assert.Equal(t, ServiceId(0x1111), received.Header.ServiceId)
}

func TestUDPClientSendRecv(t *testing.T) {
	server, err := NewUDPServer(&net.UDPAddr{IP: net.IPv4zero, Port: 0}, nil, nil)
	require.NoError(t, err)
	defer server.Close()

	client, err := NewUDPClient()
	require.NoError(t, err)
	defer client.Close()

	serverAddr := server.LocalAddr().(*net.UDPAddr)
	dest := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: serverAddr.Port}

	n, err := client.SendTo([]byte("ping"), dest)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	require.NoError(t, server.SetReadDeadline(time.Now().Add(time.Second)))
	buf := make([]byte, 16)
	n, _, err = server.RecvFrom(buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf[:n]))
}
