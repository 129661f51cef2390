package someip

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startEchoServer accepts connections on an ephemeral port and keeps them
// open without reading, just enough for pool checkout/return tests that
// never exchange messages.
func startEchoServer(t *testing.T) (addr string, stop func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				<-done
				_ = conn.Close()
			}()
		}
	}()

	return ln.Addr().String(), func() {
		close(done)
		_ = ln.Close()
	}
}

func TestConnectionPoolCapacity(t *testing.T) {
	addr, stop := startEchoServer(t)
	defer stop()

	pool := NewConnectionPool(DefaultPoolConfig().WithMaxConnections(2))

	c1, err := pool.Get(addr)
	require.NoError(t, err)
	c2, err := pool.Get(addr)
	require.NoError(t, err)

	_, err = pool.Get(addr)
	assert.ErrorIs(t, err, ErrPoolLimitReached)

	c1.Release()
	c3, err := pool.Get(addr)
	require.NoError(t, err)
	assert.Same(t, c1.Conn(), c3.Conn())

	c2.Release()
	c3.Release()
}

func TestConnectionPoolIdleEviction(t *testing.T) {
	addr, stop := startEchoServer(t)
	defer stop()

	cfg := DefaultPoolConfig().WithMaxConnections(2).WithIdleTimeout(10 * time.Millisecond)
	pool := NewConnectionPool(cfg)

	c, err := pool.Get(addr)
	require.NoError(t, err)
	c.Release()
	assert.Equal(t, 1, pool.ConnectionCount(addr))

	time.Sleep(20 * time.Millisecond)

	removed := pool.Cleanup()
	assert.Equal(t, 1, removed)
	assert.Equal(t, 0, pool.ConnectionCount(addr))
}

func TestConnectionPoolReleaseIdempotent(t *testing.T) {
	addr, stop := startEchoServer(t)
	defer stop()

	pool := NewConnectionPoolWithDefaults()
	c, err := pool.Get(addr)
	require.NoError(t, err)

	c.Release()
	assert.Equal(t, 1, pool.ConnectionCount(addr))
	c.Release()
	assert.Equal(t, 1, pool.ConnectionCount(addr), "second Release must be a no-op")
}

func TestConnectionPoolUnhealthyDiscarded(t *testing.T) {
	addr, stop := startEchoServer(t)
	defer stop()

	pool := NewConnectionPoolWithDefaults()
	c, err := pool.Get(addr)
	require.NoError(t, err)

	c.MarkUnhealthy()
	c.Release()
	assert.Equal(t, 0, pool.ConnectionCount(addr))
}

func TestConnectionPoolUnhealthyReleaseFreesCapacitySlot(t *testing.T) {
	addr, stop := startEchoServer(t)
	defer stop()

	pool := NewConnectionPool(DefaultPoolConfig().WithMaxConnections(1))

	c1, err := pool.Get(addr)
	require.NoError(t, err)

	_, err = pool.Get(addr)
	assert.ErrorIs(t, err, ErrPoolLimitReached, "capacity must count the checked-out connection, not just idle ones")

	c1.MarkUnhealthy()
	c1.Release()

	c2, err := pool.Get(addr)
	require.NoError(t, err, "discarding the unhealthy connection must free its in-use slot")
	c2.Release()
}

func TestConnectionPoolClear(t *testing.T) {
	addr, stop := startEchoServer(t)
	defer stop()

	pool := NewConnectionPoolWithDefaults()
	c, err := pool.Get(addr)
	require.NoError(t, err)
	c.Release()

	assert.Equal(t, 1, pool.TotalConnections())
	pool.Clear()
	assert.Equal(t, 0, pool.TotalConnections())
}
