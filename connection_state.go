package someip

import (
	"fmt"
	"time"
)

// ConnectionState is the lifecycle state of a managed connection.
type ConnectionState int

const (
	ConnectionDisconnected ConnectionState = iota
	ConnectionConnecting
	ConnectionConnected
	ConnectionReconnecting
	ConnectionFailed
)

var connectionStateNames = map[ConnectionState]string{
	ConnectionDisconnected: "Disconnected",
	ConnectionConnecting:   "Connecting",
	ConnectionConnected:    "Connected",
	ConnectionReconnecting: "Reconnecting",
	ConnectionFailed:       "Failed",
}

func (s ConnectionState) String() string {
	if name, ok := connectionStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("ConnectionState(%d)", int(s))
}

// IsConnected reports whether the connection is usable.
func (s ConnectionState) IsConnected() bool { return s == ConnectionConnected }

// IsConnecting reports whether a connection attempt (initial or reconnect)
// is in progress.
func (s ConnectionState) IsConnecting() bool {
	return s == ConnectionConnecting || s == ConnectionReconnecting
}

// IsFailed reports whether the connection has given up and will not retry.
func (s ConnectionState) IsFailed() bool { return s == ConnectionFailed }

// ConnectionStats accumulates lifetime counters and timestamps for one
// managed connection. Every mutator is also mirrored into the package's
// Prometheus metrics (see metrics.go) when called through ConnectionManager.
type ConnectionStats struct {
	ConnectCount     uint64
	FailureCount     uint64
	ReconnectCount   uint64
	MessagesSent     uint64
	MessagesReceived uint64
	BytesSent        uint64
	BytesReceived    uint64
	LastConnected    time.Time
	LastDisconnected time.Time
	LastError        time.Time
}

// RecordConnect marks a successful connection.
func (s *ConnectionStats) RecordConnect() {
	s.ConnectCount++
	s.LastConnected = time.Now()
}

// RecordDisconnect marks a disconnection.
func (s *ConnectionStats) RecordDisconnect() {
	s.LastDisconnected = time.Now()
}

// RecordFailure marks a connection failure.
func (s *ConnectionStats) RecordFailure() {
	s.FailureCount++
	s.LastError = time.Now()
}

// RecordReconnect marks a reconnection attempt.
func (s *ConnectionStats) RecordReconnect() {
	s.ReconnectCount++
}

// RecordSend marks a sent message of n bytes.
func (s *ConnectionStats) RecordSend(n int) {
	s.MessagesSent++
	s.BytesSent += uint64(n)
}

// RecordReceive marks a received message of n bytes.
func (s *ConnectionStats) RecordReceive(n int) {
	s.MessagesReceived++
	s.BytesReceived += uint64(n)
}

// Uptime reports how long the connection has been up, valid only once a
// connection has actually succeeded.
func (s *ConnectionStats) Uptime() (time.Duration, bool) {
	if s.LastConnected.IsZero() {
		return 0, false
	}
	return time.Since(s.LastConnected), true
}
