package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultMatchesLibraryDefaults(t *testing.T) {
	cfg := Default()
	assert.True(t, cfg.Connection.AutoReconnect)
	assert.Equal(t, 10, cfg.Pool.MaxConnectionsPerEndpoint)
	assert.Equal(t, 1392, cfg.TP.MaxSegmentPayload)
}

func TestLoadOverridesSelectedFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "someip.ini")
	contents := `
[connection]
auto_reconnect = false
max_retries = 2
connect_timeout = 1500

[pool]
max_connections_per_endpoint = 4
idle_timeout = 2000

[sd_client]
find_ttl = 7
subscribe_ttl = 42

[tp]
max_segment_payload = 512
max_contexts = 16
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.False(t, cfg.Connection.AutoReconnect)
	require.NotNil(t, cfg.Connection.RetryPolicy.MaxRetries)
	assert.Equal(t, uint32(2), *cfg.Connection.RetryPolicy.MaxRetries)
	assert.Equal(t, 1500*time.Millisecond, cfg.Connection.ConnectTimeout)

	assert.Equal(t, 4, cfg.Pool.MaxConnectionsPerEndpoint)
	assert.Equal(t, 2000*time.Millisecond, cfg.Pool.IdleTimeout)

	assert.Equal(t, uint32(7), cfg.SdClient.FindTtl)
	assert.Equal(t, uint32(42), cfg.SdClient.SubscribeTtl)

	assert.Equal(t, 512, cfg.TP.MaxSegmentPayload)
	assert.Equal(t, 16, cfg.TP.MaxContexts)
	// Untouched fields fall back to the library default.
	assert.Equal(t, DefaultTPConfig().ReassemblyTimeout, cfg.TP.ReassemblyTimeout)
	assert.Equal(t, DefaultTPConfig().MaxBufferedBytes, cfg.TP.MaxBufferedBytes)

	reassembler := cfg.TP.NewReassembler()
	require.NotNil(t, reassembler)
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load("/nonexistent/path/someip.ini")
	assert.Error(t, err)
}

func TestLoadEmptyFileKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.ini")
	require.NoError(t, os.WriteFile(path, []byte(""), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}
