// Package config loads SOME/IP library settings from an ini-formatted file,
// the same way the teacher's od_parser.go loads a CANopen EDS file: one
// section per concern, keys read with gopkg.in/ini.v1 and defaulted when
// absent rather than treated as a parse error.
package config

import (
	"net"
	"strconv"
	"time"

	"gopkg.in/ini.v1"

	"github.com/gosomeip/someip"
)

// Config holds every setting enumerated in SPEC_FULL.md §6.4, defaulted
// from the matching package-level Default*() constructor when a section or
// key is missing from the file.
type Config struct {
	Connection someip.ConnectionConfig
	Pool       someip.PoolConfig
	SdClient   someip.SdClientConfig
	SdServer   someip.SdServerConfig
	TP         TPConfig
}

// TPConfig holds the SOME/IP-TP section's settings.
type TPConfig struct {
	MaxSegmentPayload int
	ReassemblyTimeout time.Duration
	MaxContexts       int
	MaxBufferedBytes  int
}

// DefaultTPConfig matches tp_segment.go's DefaultMaxSegmentPayload and
// tp_reassembler.go's DefaultReassemblyTimeout/DefaultMaxReassemblyContexts/
// DefaultMaxReassemblyBytes.
func DefaultTPConfig() TPConfig {
	return TPConfig{
		MaxSegmentPayload: someip.DefaultMaxSegmentPayload,
		ReassemblyTimeout: someip.DefaultReassemblyTimeout,
		MaxContexts:       someip.DefaultMaxReassemblyContexts,
		MaxBufferedBytes:  someip.DefaultMaxReassemblyBytes,
	}
}

// NewReassembler builds a someip.TpReassembler honoring this TPConfig's
// limits.
func (c TPConfig) NewReassembler() *someip.TpReassembler {
	return someip.NewTpReassemblerWithLimits(c.ReassemblyTimeout, c.MaxContexts, c.MaxBufferedBytes)
}

// Default returns a Config built entirely from the library's own
// Default*() constructors, as if no file had been loaded at all.
func Default() *Config {
	return &Config{
		Connection: someip.DefaultConnectionConfig(),
		Pool:       someip.DefaultPoolConfig(),
		SdClient:   someip.DefaultSdClientConfig(),
		SdServer:   someip.DefaultSdServerConfig(),
		TP:         DefaultTPConfig(),
	}
}

// Load reads path and returns a Config, filling in defaults for any
// section or key the file omits.
func Load(path string) (*Config, error) {
	file, err := ini.Load(path)
	if err != nil {
		return nil, err
	}
	return fromFile(file)
}

func fromFile(file *ini.File) (*Config, error) {
	cfg := Default()

	if file.HasSection("connection") {
		sec := file.Section("connection")
		applyBool(sec, "auto_reconnect", &cfg.Connection.AutoReconnect)
		applyDuration(sec, "connect_timeout", &cfg.Connection.ConnectTimeout)
		applyDurationPtr(sec, "read_timeout", &cfg.Connection.ReadTimeout)
		applyDurationPtr(sec, "write_timeout", &cfg.Connection.WriteTimeout)

		if key := sec.Key("max_retries"); key.Value() != "" {
			n, err := key.Uint()
			if err != nil {
				return nil, err
			}
			max := uint32(n)
			cfg.Connection.RetryPolicy.MaxRetries = &max
		}
		applyBool(sec, "retry_on_timeout", &cfg.Connection.RetryPolicy.RetryOnTimeout)
		applyBool(sec, "retry_on_connection_reset", &cfg.Connection.RetryPolicy.RetryOnConnectionReset)

		if key := sec.Key("backoff_base_ms"); key.Value() != "" {
			n, err := key.Int64()
			if err != nil {
				return nil, err
			}
			cfg.Connection.RetryPolicy.Backoff.Base = time.Duration(n) * time.Millisecond
		}
		if key := sec.Key("backoff_max_ms"); key.Value() != "" {
			n, err := key.Int64()
			if err != nil {
				return nil, err
			}
			cfg.Connection.RetryPolicy.Backoff.Max = time.Duration(n) * time.Millisecond
		}
	}

	if file.HasSection("pool") {
		sec := file.Section("pool")
		if key := sec.Key("max_connections_per_endpoint"); key.Value() != "" {
			n, err := key.Int()
			if err != nil {
				return nil, err
			}
			cfg.Pool.MaxConnectionsPerEndpoint = n
		}
		applyDuration(sec, "idle_timeout", &cfg.Pool.IdleTimeout)
		if key := sec.Key("max_lifetime_s"); key.Value() != "" {
			n, err := key.Int64()
			if err != nil {
				return nil, err
			}
			lifetime := time.Duration(n) * time.Second
			cfg.Pool.MaxLifetime = &lifetime
		}
	}

	if file.HasSection("sd_client") {
		sec := file.Section("sd_client")
		applyUDPAddr(sec, "bind_addr", &cfg.SdClient.BindAddr)
		applyUDPAddr(sec, "multicast_addr", &cfg.SdClient.MulticastAddr)
		if key := sec.Key("find_ttl"); key.Value() != "" {
			n, err := key.Uint()
			if err != nil {
				return nil, err
			}
			cfg.SdClient.FindTtl = uint32(n)
		}
		if key := sec.Key("subscribe_ttl"); key.Value() != "" {
			n, err := key.Uint()
			if err != nil {
				return nil, err
			}
			cfg.SdClient.SubscribeTtl = uint32(n)
		}
	}

	if file.HasSection("sd_server") {
		sec := file.Section("sd_server")
		applyUDPAddr(sec, "bind_addr", &cfg.SdServer.BindAddr)
		applyUDPAddr(sec, "multicast_addr", &cfg.SdServer.MulticastAddr)
		applyDuration(sec, "offer_interval", &cfg.SdServer.OfferInterval)
	}

	if file.HasSection("tp") {
		sec := file.Section("tp")
		if key := sec.Key("max_segment_payload"); key.Value() != "" {
			n, err := key.Int()
			if err != nil {
				return nil, err
			}
			cfg.TP.MaxSegmentPayload = n
		}
		applyDuration(sec, "reassembly_timeout", &cfg.TP.ReassemblyTimeout)
		if key := sec.Key("max_contexts"); key.Value() != "" {
			n, err := key.Int()
			if err != nil {
				return nil, err
			}
			cfg.TP.MaxContexts = n
		}
		if key := sec.Key("max_buffered_bytes"); key.Value() != "" {
			n, err := key.Int()
			if err != nil {
				return nil, err
			}
			cfg.TP.MaxBufferedBytes = n
		}
	}

	return cfg, nil
}

func applyBool(sec *ini.Section, key string, dst *bool) {
	if k := sec.Key(key); k.Value() != "" {
		if v, err := k.Bool(); err == nil {
			*dst = v
		}
	}
}

func applyDuration(sec *ini.Section, key string, dst *time.Duration) {
	if k := sec.Key(key); k.Value() != "" {
		if ms, err := k.Int64(); err == nil {
			*dst = time.Duration(ms) * time.Millisecond
		}
	}
}

func applyDurationPtr(sec *ini.Section, key string, dst **time.Duration) {
	if k := sec.Key(key); k.Value() != "" {
		if ms, err := k.Int64(); err == nil {
			d := time.Duration(ms) * time.Millisecond
			*dst = &d
		}
	}
}

// applyUDPAddr parses a "host:port" value into a *net.UDPAddr. Values that
// fail to parse leave dst untouched, preferring the existing default over a
// hard Load failure for this single field.
func applyUDPAddr(sec *ini.Section, key string, dst **net.UDPAddr) {
	value := sec.Key(key).Value()
	if value == "" {
		return
	}
	host, portStr, err := net.SplitHostPort(value)
	if err != nil {
		return
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return
	}
	*dst = &net.UDPAddr{IP: net.ParseIP(host), Port: port}
}
