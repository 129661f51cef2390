package someip

import "time"

// BackoffKind selects which delay curve a RetryPolicy follows between
// reconnect attempts.
type BackoffKind int

const (
	BackoffFixed BackoffKind = iota
	BackoffExponential
	BackoffLinear
)

// BackoffStrategy computes the delay before reconnect attempt N (0-indexed).
// Only the fields relevant to Kind are meaningful, mirroring the Rust
// reference's enum with per-variant payloads.
type BackoffStrategy struct {
	Kind BackoffKind

	// BackoffFixed
	Delay time.Duration

	// BackoffExponential
	Base       time.Duration
	Max        time.Duration
	Multiplier float64

	// BackoffLinear
	Initial   time.Duration
	Increment time.Duration
	LinearMax time.Duration
}

// DefaultBackoffStrategy returns the conventional exponential curve: 100ms
// base, doubling each attempt, capped at 30s.
func DefaultBackoffStrategy() BackoffStrategy {
	return BackoffStrategy{
		Kind:       BackoffExponential,
		Base:       100 * time.Millisecond,
		Max:        30 * time.Second,
		Multiplier: 2.0,
	}
}

// DelayForAttempt computes the wait before the given 0-indexed attempt.
func (b BackoffStrategy) DelayForAttempt(attempt uint32) time.Duration {
	switch b.Kind {
	case BackoffFixed:
		return b.Delay
	case BackoffLinear:
		delay := b.Initial + b.Increment*time.Duration(attempt)
		if delay > b.LinearMax {
			return b.LinearMax
		}
		return delay
	case BackoffExponential:
		fallthrough
	default:
		delayMs := float64(b.Base.Milliseconds()) * pow(b.Multiplier, attempt)
		maxMs := float64(b.Max.Milliseconds())
		if delayMs > maxMs {
			delayMs = maxMs
		}
		return time.Duration(delayMs) * time.Millisecond
	}
}

func pow(base float64, exp uint32) float64 {
	result := 1.0
	for i := uint32(0); i < exp; i++ {
		result *= base
	}
	return result
}

// RetryPolicy governs whether and how long a connection manager waits
// before each reconnect attempt.
type RetryPolicy struct {
	// MaxRetries caps the number of attempts; nil means unlimited.
	MaxRetries             *uint32
	Backoff                BackoffStrategy
	RetryOnTimeout         bool
	RetryOnConnectionReset bool
}

// DefaultRetryPolicy allows 5 retries with the default exponential backoff,
// retrying on both timeout and connection-reset errors.
func DefaultRetryPolicy() RetryPolicy {
	max := uint32(5)
	return RetryPolicy{
		MaxRetries:             &max,
		Backoff:                DefaultBackoffStrategy(),
		RetryOnTimeout:         true,
		RetryOnConnectionReset: true,
	}
}

// NoRetryPolicy disables reconnection entirely.
func NoRetryPolicy() RetryPolicy {
	zero := uint32(0)
	return RetryPolicy{
		MaxRetries:             &zero,
		Backoff:                BackoffStrategy{Kind: BackoffFixed, Delay: 0},
		RetryOnTimeout:         false,
		RetryOnConnectionReset: false,
	}
}

// UnlimitedRetryPolicy retries forever with the default backoff.
func UnlimitedRetryPolicy() RetryPolicy {
	p := DefaultRetryPolicy()
	p.MaxRetries = nil
	return p
}

// FixedRetryPolicy retries up to maxRetries times with a constant delay.
func FixedRetryPolicy(maxRetries uint32, delay time.Duration) RetryPolicy {
	p := DefaultRetryPolicy()
	p.MaxRetries = &maxRetries
	p.Backoff = BackoffStrategy{Kind: BackoffFixed, Delay: delay}
	return p
}

// ShouldRetry reports whether another attempt should be made after the
// given 0-indexed attempt count has already been tried.
func (p RetryPolicy) ShouldRetry(attempt uint32) bool {
	if p.MaxRetries == nil {
		return true
	}
	return attempt < *p.MaxRetries
}

// DelayForAttempt delegates to the configured backoff strategy.
func (p RetryPolicy) DelayForAttempt(attempt uint32) time.Duration {
	return p.Backoff.DelayForAttempt(attempt)
}

// KeepAliveConfig is advisory: it documents a connection's desired
// keep-alive cadence without this implementation sending application-level
// probe frames itself (see SPEC_FULL.md §9's note on KeepAliveConfig).
type KeepAliveConfig struct {
	Interval time.Duration
	Timeout  time.Duration
	Probes   uint32
}

// DefaultKeepAliveConfig matches the Rust reference's 30s/5s/3 defaults.
func DefaultKeepAliveConfig() KeepAliveConfig {
	return KeepAliveConfig{Interval: 30 * time.Second, Timeout: 5 * time.Second, Probes: 3}
}

// ConnectionConfig configures one ConnectionManager.
type ConnectionConfig struct {
	AutoReconnect  bool
	RetryPolicy    RetryPolicy
	KeepAlive      *KeepAliveConfig
	ConnectTimeout time.Duration
	ReadTimeout    *time.Duration
	WriteTimeout   *time.Duration
}

// DefaultConnectionConfig auto-reconnects with the default retry policy and
// keep-alive, and 5s/30s/30s connect/read/write timeouts.
func DefaultConnectionConfig() ConnectionConfig {
	keepAlive := DefaultKeepAliveConfig()
	readTimeout := 30 * time.Second
	writeTimeout := 30 * time.Second
	return ConnectionConfig{
		AutoReconnect:  true,
		RetryPolicy:    DefaultRetryPolicy(),
		KeepAlive:      &keepAlive,
		ConnectTimeout: 5 * time.Second,
		ReadTimeout:    &readTimeout,
		WriteTimeout:   &writeTimeout,
	}
}

// SimpleConnectionConfig disables auto-reconnect, retries and keep-alive,
// and leaves read/write timeouts unset.
func SimpleConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		AutoReconnect:  false,
		RetryPolicy:    NoRetryPolicy(),
		KeepAlive:      nil,
		ConnectTimeout: 5 * time.Second,
	}
}

// RobustConnectionConfig is an alias for DefaultConnectionConfig, named to
// match the Rust reference's `robust()` constructor.
func RobustConnectionConfig() ConnectionConfig {
	return DefaultConnectionConfig()
}

func (c ConnectionConfig) WithAutoReconnect(enabled bool) ConnectionConfig {
	c.AutoReconnect = enabled
	return c
}

func (c ConnectionConfig) WithRetryPolicy(policy RetryPolicy) ConnectionConfig {
	c.RetryPolicy = policy
	return c
}

func (c ConnectionConfig) WithKeepAlive(cfg KeepAliveConfig) ConnectionConfig {
	c.KeepAlive = &cfg
	return c
}

func (c ConnectionConfig) WithoutKeepAlive() ConnectionConfig {
	c.KeepAlive = nil
	return c
}

func (c ConnectionConfig) WithConnectTimeout(d time.Duration) ConnectionConfig {
	c.ConnectTimeout = d
	return c
}

func (c ConnectionConfig) WithReadTimeout(d time.Duration) ConnectionConfig {
	c.ReadTimeout = &d
	return c
}

func (c ConnectionConfig) WithWriteTimeout(d time.Duration) ConnectionConfig {
	c.WriteTimeout = &d
	return c
}

// PoolConfig configures a ConnectionPool.
type PoolConfig struct {
	MaxConnectionsPerEndpoint int
	IdleTimeout               time.Duration
	MaxLifetime               *time.Duration
	ConnectionConfig          ConnectionConfig
}

// DefaultPoolConfig allows 10 connections per endpoint, evicts after 60s
// idle or 1h lifetime, and dials new connections with SimpleConnectionConfig
// (pooled connections do not auto-reconnect; the pool itself replaces them).
func DefaultPoolConfig() PoolConfig {
	maxLifetime := time.Hour
	return PoolConfig{
		MaxConnectionsPerEndpoint: 10,
		IdleTimeout:               60 * time.Second,
		MaxLifetime:               &maxLifetime,
		ConnectionConfig:          SimpleConnectionConfig(),
	}
}

func (c PoolConfig) WithMaxConnections(max int) PoolConfig {
	c.MaxConnectionsPerEndpoint = max
	return c
}

func (c PoolConfig) WithIdleTimeout(d time.Duration) PoolConfig {
	c.IdleTimeout = d
	return c
}

func (c PoolConfig) WithMaxLifetime(d time.Duration) PoolConfig {
	c.MaxLifetime = &d
	return c
}

func (c PoolConfig) WithoutMaxLifetime() PoolConfig {
	c.MaxLifetime = nil
	return c
}

func (c PoolConfig) WithConnectionConfig(cfg ConnectionConfig) PoolConfig {
	c.ConnectionConfig = cfg
	return c
}
