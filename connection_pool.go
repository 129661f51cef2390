package someip

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// poolEntry is one idle, checked-in connection held by the pool.
type poolEntry struct {
	conn      *TCPConnection
	createdAt time.Time
	lastUsed  time.Time
}

func (e *poolEntry) isExpired(cfg PoolConfig) bool {
	if time.Since(e.lastUsed) > cfg.IdleTimeout {
		return true
	}
	if cfg.MaxLifetime != nil && time.Since(e.createdAt) > *cfg.MaxLifetime {
		return true
	}
	return false
}

// ConnectionPool pools TCP connections per endpoint address, bounding how
// many are open to any one endpoint at once. It mirrors the shape of the
// teacher's BusManager: a single mutex guarding a map, with socket creation
// itself done outside the lock.
//
// connections holds only idle, checked-in entries; inUse tracks connections
// currently checked out so MaxConnectionsPerEndpoint bounds idle+in-use
// together, not just the idle count.
type ConnectionPool struct {
	mu          sync.Mutex
	config      PoolConfig
	connections map[string][]*poolEntry
	inUse       map[string]int
}

// NewConnectionPool creates a pool with the given configuration.
func NewConnectionPool(config PoolConfig) *ConnectionPool {
	return &ConnectionPool{
		config:      config,
		connections: make(map[string][]*poolEntry),
		inUse:       make(map[string]int),
	}
}

// NewConnectionPoolWithDefaults creates a pool using DefaultPoolConfig.
func NewConnectionPoolWithDefaults() *ConnectionPool {
	return NewConnectionPool(DefaultPoolConfig())
}

// PooledConnection is a borrow handle exclusively owning a connection for
// its lifetime. Go has no destructors, so callers must `defer conn.Release()`
// themselves (DESIGN.md, Decision D4) rather than relying on a Drop-style hook.
type PooledConnection struct {
	conn      *TCPConnection
	pool      *ConnectionPool
	addr      string
	createdAt time.Time
	released  bool
	unhealthy bool
}

// Conn returns the underlying connection for reading/writing.
func (p *PooledConnection) Conn() *TCPConnection { return p.conn }

// MarkUnhealthy flags the connection so Release discards it instead of
// returning it to the pool.
func (p *PooledConnection) MarkUnhealthy() { p.unhealthy = true }

// Call sends message and waits for a matching response using the borrowed
// connection directly (no reconnect logic; pooled connections that fail are
// discarded, not repaired in place).
func (p *PooledConnection) Call(message *Message) (*Message, error) {
	if err := p.conn.WriteMessage(message); err != nil {
		p.MarkUnhealthy()
		return nil, err
	}
	requestId := message.RequestID()
	for {
		resp, err := p.conn.ReadMessage()
		if err != nil {
			p.MarkUnhealthy()
			return nil, err
		}
		if resp.RequestID() == requestId {
			return resp, nil
		}
	}
}

// Release returns the connection to its pool, or closes it outright if it
// was marked unhealthy or the pool is at capacity. Calling Release more
// than once is a no-op.
func (p *PooledConnection) Release() {
	if p.released {
		return
	}
	p.released = true
	if p.unhealthy {
		_ = p.conn.Close()
		p.pool.releaseInUseSlot(p.addr)
		return
	}
	p.pool.returnConnection(p.addr, p.conn, p.createdAt)
}

// Get checks out a connection to addr: a reusable idle one if available,
// otherwise a freshly dialed one if the endpoint is under capacity.
// Returns ErrPoolLimitReached if the endpoint already has
// MaxConnectionsPerEndpoint connections checked out or idle, combined.
func (p *ConnectionPool) Get(addr string) (*PooledConnection, error) {
	p.mu.Lock()

	entries := p.connections[addr]
	// Drop expired idle entries before looking for a reusable one (§4.11,
	// Design Note D2: a clean find-and-remove, no mutate-then-discard step).
	live := entries[:0]
	for _, e := range entries {
		if e.isExpired(p.config) {
			_ = e.conn.Close()
			poolEvictionsTotal.WithLabelValues(addr).Inc()
			continue
		}
		live = append(live, e)
	}
	p.connections[addr] = live

	if len(live) > 0 {
		entry := live[len(live)-1]
		p.connections[addr] = live[:len(live)-1]
		p.inUse[addr]++
		poolCheckoutsTotal.WithLabelValues(addr, "true").Inc()
		poolSizeGauge.WithLabelValues(addr).Set(float64(len(p.connections[addr])))
		p.mu.Unlock()
		return &PooledConnection{conn: entry.conn, pool: p, addr: addr, createdAt: entry.createdAt}, nil
	}

	// Gate on idle+in-use together: in-use connections hold no poolEntry,
	// so len(live) alone would undercount checked-out connections.
	if len(live)+p.inUse[addr] >= p.config.MaxConnectionsPerEndpoint {
		p.mu.Unlock()
		poolExhaustedTotal.WithLabelValues(addr).Inc()
		return nil, ErrPoolLimitReached
	}

	p.inUse[addr]++
	connCfg := p.config.ConnectionConfig
	p.mu.Unlock()

	client, err := NewTCPClient("tcp", addr)
	if err != nil {
		p.releaseInUseSlot(addr)
		return nil, err
	}
	conn, err := client.ConnectTimeout(connCfg.ConnectTimeout)
	if err != nil {
		p.releaseInUseSlot(addr)
		return nil, err
	}
	poolCheckoutsTotal.WithLabelValues(addr, "false").Inc()
	return &PooledConnection{conn: conn, pool: p, addr: addr, createdAt: time.Now()}, nil
}

// releaseInUseSlot decrements addr's in-use count, for a checkout that
// never produced a usable connection (dial failure) or whose connection
// was discarded instead of returned (Release of an unhealthy connection).
func (p *ConnectionPool) releaseInUseSlot(addr string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inUse[addr] > 0 {
		p.inUse[addr]--
	}
}

// returnConnection re-inserts a released connection if the endpoint is
// still under capacity; otherwise it is dropped. Either way it frees the
// in-use slot the original Get reserved.
func (p *ConnectionPool) returnConnection(addr string, conn *TCPConnection, createdAt time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.inUse[addr] > 0 {
		p.inUse[addr]--
	}

	if len(p.connections[addr]) >= p.config.MaxConnectionsPerEndpoint {
		_ = conn.Close()
		return
	}
	p.connections[addr] = append(p.connections[addr], &poolEntry{conn: conn, createdAt: createdAt, lastUsed: time.Now()})
	poolReturnsTotal.WithLabelValues(addr).Inc()
	poolSizeGauge.WithLabelValues(addr).Set(float64(len(p.connections[addr])))
}

// ConnectionCount returns the number of idle pooled connections for addr.
func (p *ConnectionPool) ConnectionCount(addr string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.connections[addr])
}

// TotalConnections returns the number of idle pooled connections across
// every endpoint.
func (p *ConnectionPool) TotalConnections() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	total := 0
	for _, entries := range p.connections {
		total += len(entries)
	}
	return total
}

// Cleanup evicts every expired idle connection across all endpoints and
// returns the count removed. Safe to call concurrently with Get.
func (p *ConnectionPool) Cleanup() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	removed := 0
	for addr, entries := range p.connections {
		live := entries[:0]
		for _, e := range entries {
			if e.isExpired(p.config) {
				_ = e.conn.Close()
				removed++
				poolEvictionsTotal.WithLabelValues(addr).Inc()
				continue
			}
			live = append(live, e)
		}
		if len(live) == 0 {
			delete(p.connections, addr)
		} else {
			p.connections[addr] = live
		}
		poolSizeGauge.WithLabelValues(addr).Set(float64(len(live)))
	}
	return removed
}

// Clear closes and removes every pooled connection.
func (p *ConnectionPool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for addr, entries := range p.connections {
		for _, e := range entries {
			_ = e.conn.Close()
		}
		poolSizeGauge.WithLabelValues(addr).Set(0)
	}
	p.connections = make(map[string][]*poolEntry)
}

// RunIdleSweep launches a goroutine that calls Cleanup every interval until
// stop is closed, the pool's equivalent of the teacher's
// launchNodeProcess background-goroutine-with-exit-channel pattern.
func (p *ConnectionPool) RunIdleSweep(interval time.Duration, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if n := p.Cleanup(); n > 0 {
					log.Debugf("[POOL] idle sweep evicted %d connections", n)
				}
			}
		}
	}()
}
