package someip

import (
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startEchoingRequestServer accepts one connection and echoes back every
// request it reads as a response with the same RequestID, so a Call
// round-trips without a real service behind it.
func startEchoingRequestServer(t *testing.T) (addr string, stop func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			msg, err := ReadMessage(conn)
			if err != nil {
				return
			}
			resp := msg.CreateResponse().Payload(msg.Payload).Build()
			if err := WriteMessage(conn, resp); err != nil {
				return
			}
		}
	}()

	return ln.Addr().String(), func() { _ = ln.Close() }
}

func TestConnectionManagerCallRoundTrip(t *testing.T) {
	addr, stop := startEchoingRequestServer(t)
	defer stop()

	mgr := NewConnectionManager(addr, SimpleConnectionConfig())
	defer mgr.Disconnect()

	req := NewRequest(ServiceId(0x1234), MethodId(0x0001)).Payload([]byte("ping")).Build()
	resp, err := mgr.Call(req)
	require.NoError(t, err)
	assert.Equal(t, []byte("ping"), resp.Payload)
	assert.True(t, mgr.IsConnected())

	stats := mgr.Stats()
	assert.Equal(t, uint64(1), stats.ConnectCount)
	assert.Greater(t, stats.MessagesSent, uint64(0))
	assert.Greater(t, stats.MessagesReceived, uint64(0))
}

func TestConnectionManagerSessionIdIncrementsAndSkipsZero(t *testing.T) {
	addr, stop := startEchoingRequestServer(t)
	defer stop()

	mgr := NewConnectionManager(addr, SimpleConnectionConfig())
	defer mgr.Disconnect()

	req := NewRequest(ServiceId(0x1234), MethodId(0x0001)).Build()
	first, err := mgr.Call(req)
	require.NoError(t, err)
	assert.NotEqual(t, SessionId(0), first.Header.SessionId)

	second, err := mgr.Call(NewRequest(ServiceId(0x1234), MethodId(0x0001)).Build())
	require.NoError(t, err)
	assert.Equal(t, first.Header.SessionId+1, second.Header.SessionId)
}

func TestConnectionManagerAutoReconnectOffSurfacesError(t *testing.T) {
	mgr := NewConnectionManager("127.0.0.1:1", SimpleConnectionConfig().WithConnectTimeout(50*time.Millisecond))
	_, err := mgr.Call(NewRequest(ServiceId(0x1234), MethodId(0x0001)).Build())
	assert.Error(t, err)
	assert.Equal(t, ConnectionDisconnected, mgr.State())
}

func TestConnectionStateHelpers(t *testing.T) {
	assert.True(t, ConnectionConnected.IsConnected())
	assert.False(t, ConnectionDisconnected.IsConnected())
	assert.True(t, ConnectionConnecting.IsConnecting())
	assert.True(t, ConnectionReconnecting.IsConnecting())
	assert.True(t, ConnectionFailed.IsFailed())
}

func TestShouldRetryErrorClassifiesConnectionReset(t *testing.T) {
	cfg := DefaultConnectionConfig()
	cfg.RetryPolicy.RetryOnConnectionReset = true
	cfg.RetryPolicy.RetryOnTimeout = false
	mgr := NewConnectionManager("127.0.0.1:1", cfg)

	assert.True(t, mgr.shouldRetryError(syscall.ECONNRESET))
	assert.True(t, mgr.shouldRetryError(&net.OpError{Op: "write", Err: syscall.EPIPE}))

	cfg.RetryPolicy.RetryOnConnectionReset = false
	mgr = NewConnectionManager("127.0.0.1:1", cfg)
	assert.False(t, mgr.shouldRetryError(syscall.ECONNRESET))
}

func TestShouldRetryErrorClassifiesTimeoutSeparatelyFromReset(t *testing.T) {
	cfg := DefaultConnectionConfig()
	cfg.RetryPolicy.RetryOnTimeout = true
	cfg.RetryPolicy.RetryOnConnectionReset = false
	mgr := NewConnectionManager("127.0.0.1:1", cfg)

	assert.True(t, mgr.shouldRetryError(ErrTimeout))
	assert.False(t, mgr.shouldRetryError(syscall.ECONNRESET))
}

func TestConnectionStatsUptime(t *testing.T) {
	var stats ConnectionStats
	_, ok := stats.Uptime()
	assert.False(t, ok)

	stats.RecordConnect()
	time.Sleep(5 * time.Millisecond)
	uptime, ok := stats.Uptime()
	assert.True(t, ok)
	assert.Greater(t, uptime, time.Duration(0))
}
