package someip

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// ConnectionManager wraps a single octet-stream transport to one endpoint,
// providing auto-reconnect with backoff and statistics collection on top
// of it. It plays the role the teacher's BusManager plays for a CAN bus:
// a mutex-guarded wrapper that owns the transport and mediates every send
// and receive, rather than letting callers touch the socket directly.
type ConnectionManager struct {
	mu       sync.Mutex
	addr     string
	config   ConnectionConfig
	state    ConnectionState
	conn     *TCPConnection
	clientId ClientId
	session  uint16
	stats    ConnectionStats
	attempts uint32
}

// NewConnectionManager creates a manager for addr in the Disconnected
// state; it does not dial until Call/Send/Receive or Reconnect is invoked.
func NewConnectionManager(addr string, config ConnectionConfig) *ConnectionManager {
	return &ConnectionManager{
		addr:     addr,
		config:   config,
		state:    ConnectionDisconnected,
		clientId: ClientId(0x0001),
		session:  1,
	}
}

// ConnectNow creates a manager and connects immediately, returning an error
// if the initial connection attempt fails.
func ConnectNow(addr string, config ConnectionConfig) (*ConnectionManager, error) {
	m := NewConnectionManager(addr, config)
	m.mu.Lock()
	defer m.mu.Unlock()
	return m, m.ensureConnected()
}

// State returns the manager's current ConnectionState.
func (m *ConnectionManager) State() ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Stats returns a snapshot of the manager's connection statistics.
func (m *ConnectionManager) Stats() ConnectionStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// SetClientId sets the ClientId stamped on every outgoing message.
func (m *ConnectionManager) SetClientId(id ClientId) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clientId = id
}

// ClientId returns the ClientId stamped on outgoing messages.
func (m *ConnectionManager) ClientId() ClientId {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clientId
}

// Addr returns the manager's target address.
func (m *ConnectionManager) Addr() string {
	return m.addr
}

// IsConnected reports whether the manager currently holds a live connection.
func (m *ConnectionManager) IsConnected() bool {
	return m.State().IsConnected()
}

// nextSessionId implements the §4.12 wraparound contract: session ids
// increment from 1 and skip 0, since 0 is reserved.
func (m *ConnectionManager) nextSessionId() SessionId {
	id := m.session
	m.session++
	if m.session == 0 {
		m.session = 1
	}
	return SessionId(id)
}

func (m *ConnectionManager) setState(s ConnectionState) {
	m.state = s
	observeConnectionState(m.addr, s)
}

// ensureConnected must be called with mu held.
func (m *ConnectionManager) ensureConnected() error {
	if m.conn != nil && m.state == ConnectionConnected {
		return nil
	}
	return m.doConnect()
}

// doConnect must be called with mu held.
func (m *ConnectionManager) doConnect() error {
	m.setState(ConnectionConnecting)

	client, err := NewTCPClient("tcp", m.addr)
	if err != nil {
		m.setState(ConnectionDisconnected)
		m.stats.RecordFailure()
		connectionFailuresTotal.WithLabelValues(m.addr).Inc()
		return err
	}
	conn, err := client.ConnectTimeout(m.config.ConnectTimeout)
	if err != nil {
		m.setState(ConnectionDisconnected)
		m.stats.RecordFailure()
		connectionFailuresTotal.WithLabelValues(m.addr).Inc()
		return err
	}

	m.conn = conn
	m.setState(ConnectionConnected)
	m.stats.RecordConnect()
	m.attempts = 0
	log.Infof("[CONNECTION][%s] connected", m.addr)
	return nil
}

// tryReconnect must be called with mu held. It blocks the caller's
// goroutine for the backoff delay between attempts, same as the Rust
// reference's thread::sleep loop.
func (m *ConnectionManager) tryReconnect() error {
	if !m.config.AutoReconnect {
		m.setState(ConnectionFailed)
		return &ConnectionError{State: m.state, Err: ErrAutoReconnectOff}
	}

	for m.config.RetryPolicy.ShouldRetry(m.attempts) {
		m.setState(ConnectionReconnecting)
		m.stats.RecordReconnect()
		connectionReconnectsTotal.WithLabelValues(m.addr).Inc()

		delay := m.config.RetryPolicy.DelayForAttempt(m.attempts)
		m.mu.Unlock()
		time.Sleep(delay)
		m.mu.Lock()

		m.attempts++
		if err := m.doConnect(); err == nil {
			return nil
		}
	}

	m.setState(ConnectionFailed)
	return &ConnectionError{State: m.state, Err: ErrReconnectFailed}
}

// shouldRetryError classifies err per §4.10's ConnectionReset/BrokenPipe vs
// TimedOut/WouldBlock rule.
func (m *ConnectionManager) shouldRetryError(err error) bool {
	if IsTimeout(err) {
		return m.config.RetryPolicy.RetryOnTimeout
	}
	if IsConnectionReset(err) {
		return m.config.RetryPolicy.RetryOnConnectionReset
	}
	return false
}

// handleError must be called with mu held. It tears down the dead
// connection and, if the error looks transient and auto-reconnect is
// enabled, attempts to reconnect before returning the original error to
// the caller, who is expected to retry the operation.
func (m *ConnectionManager) handleError(err error) error {
	m.conn = nil
	m.setState(ConnectionDisconnected)
	m.stats.RecordDisconnect()

	if m.shouldRetryError(err) && m.config.AutoReconnect {
		_ = m.tryReconnect()
	}
	return err
}

// Call sends message and blocks for the matching response, discarding any
// stale response whose RequestID does not match (per §5's abandonment
// rule for superseded calls).
func (m *ConnectionManager) Call(message *Message) (*Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	message.Header.ClientId = m.clientId
	message.Header.SessionId = m.nextSessionId()

	if err := m.ensureConnected(); err != nil {
		return nil, err
	}

	requestId := message.RequestID()
	bytes := message.ToBytes()
	if err := m.conn.WriteMessage(message); err != nil {
		return nil, m.handleError(err)
	}
	m.stats.RecordSend(len(bytes))
	connectionBytesTotal.WithLabelValues(m.addr, "sent").Add(float64(len(bytes)))

	for {
		response, err := m.conn.ReadMessage()
		if err != nil {
			return nil, m.handleError(err)
		}
		m.stats.RecordReceive(len(response.ToBytes()))
		connectionBytesTotal.WithLabelValues(m.addr, "received").Add(float64(len(response.ToBytes())))
		if response.RequestID() == requestId {
			return response, nil
		}
	}
}

// Send transmits message without waiting for a response.
func (m *ConnectionManager) Send(message *Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	message.Header.ClientId = m.clientId
	message.Header.SessionId = m.nextSessionId()

	if err := m.ensureConnected(); err != nil {
		return err
	}

	bytes := message.ToBytes()
	if err := m.conn.WriteMessage(message); err != nil {
		return m.handleError(err)
	}
	m.stats.RecordSend(len(bytes))
	connectionBytesTotal.WithLabelValues(m.addr, "sent").Add(float64(len(bytes)))
	return nil
}

// Receive blocks for the next inbound message, regardless of RequestID.
func (m *ConnectionManager) Receive() (*Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureConnected(); err != nil {
		return nil, err
	}

	message, err := m.conn.ReadMessage()
	if err != nil {
		return nil, m.handleError(err)
	}
	m.stats.RecordReceive(len(message.ToBytes()))
	connectionBytesTotal.WithLabelValues(m.addr, "received").Add(float64(len(message.ToBytes())))
	return message, nil
}

// Disconnect closes the underlying connection, if any.
func (m *ConnectionManager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
		m.setState(ConnectionDisconnected)
		m.stats.RecordDisconnect()
	}
}

// Reconnect forces a fresh connection attempt, discarding any existing one.
func (m *ConnectionManager) Reconnect() error {
	m.Disconnect()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = 0
	return m.ensureConnected()
}
