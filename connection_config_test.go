package someip

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffStrategyFixed(t *testing.T) {
	b := BackoffStrategy{Kind: BackoffFixed, Delay: 200 * time.Millisecond}
	assert.Equal(t, 200*time.Millisecond, b.DelayForAttempt(0))
	assert.Equal(t, 200*time.Millisecond, b.DelayForAttempt(10))
}

func TestBackoffStrategyExponential(t *testing.T) {
	b := BackoffStrategy{
		Kind:       BackoffExponential,
		Base:       100 * time.Millisecond,
		Max:        1 * time.Second,
		Multiplier: 2.0,
	}
	assert.Equal(t, 100*time.Millisecond, b.DelayForAttempt(0))
	assert.Equal(t, 200*time.Millisecond, b.DelayForAttempt(1))
	assert.Equal(t, 400*time.Millisecond, b.DelayForAttempt(2))
	// Capped at Max once the doubling series would exceed it.
	assert.Equal(t, 1*time.Second, b.DelayForAttempt(10))
}

func TestBackoffStrategyLinear(t *testing.T) {
	b := BackoffStrategy{
		Kind:      BackoffLinear,
		Initial:   100 * time.Millisecond,
		Increment: 50 * time.Millisecond,
		LinearMax: 300 * time.Millisecond,
	}
	assert.Equal(t, 100*time.Millisecond, b.DelayForAttempt(0))
	assert.Equal(t, 150*time.Millisecond, b.DelayForAttempt(1))
	assert.Equal(t, 300*time.Millisecond, b.DelayForAttempt(10))
}

func TestRetryPolicyUnlimited(t *testing.T) {
	p := UnlimitedRetryPolicy()
	assert.True(t, p.ShouldRetry(0))
	assert.True(t, p.ShouldRetry(1_000_000))
}

func TestRetryPolicyNoRetry(t *testing.T) {
	p := NoRetryPolicy()
	assert.False(t, p.ShouldRetry(0))
}

func TestRetryPolicyFixedBoundary(t *testing.T) {
	p := FixedRetryPolicy(3, 10*time.Millisecond)
	assert.True(t, p.ShouldRetry(0))
	assert.True(t, p.ShouldRetry(2))
	assert.False(t, p.ShouldRetry(3))
	assert.Equal(t, 10*time.Millisecond, p.DelayForAttempt(0))
}

func TestConnectionConfigBuilders(t *testing.T) {
	cfg := SimpleConnectionConfig().
		WithAutoReconnect(false).
		WithConnectTimeout(2 * time.Second)
	assert.False(t, cfg.AutoReconnect)
	assert.Equal(t, 2*time.Second, cfg.ConnectTimeout)

	robust := RobustConnectionConfig()
	assert.True(t, robust.AutoReconnect)
	assert.NotNil(t, robust.KeepAlive)

	without := robust.WithoutKeepAlive()
	assert.Nil(t, without.KeepAlive)
}

func TestPoolConfigBuilders(t *testing.T) {
	cfg := DefaultPoolConfig().WithMaxConnections(2).WithIdleTimeout(5 * time.Second)
	assert.Equal(t, 2, cfg.MaxConnectionsPerEndpoint)
	assert.Equal(t, 5*time.Second, cfg.IdleTimeout)

	withLifetime := cfg.WithMaxLifetime(time.Minute)
	assert.NotNil(t, withLifetime.MaxLifetime)
	assert.Equal(t, time.Minute, *withLifetime.MaxLifetime)

	withoutLifetime := withLifetime.WithoutMaxLifetime()
	assert.Nil(t, withoutLifetime.MaxLifetime)
}
