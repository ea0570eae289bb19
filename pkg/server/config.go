package server

import (
	"fmt"
	"net"
	"time"

	"github.com/marmos91/endpointd/pkg/protocol/http1"
)

// Config holds configuration parameters for the endpoint server.
//
// These values control server behavior including request limits, timeouts,
// and execution resources. Zero values are replaced by defaults in New.
//
// Default values (applied by New if zero):
//   - Address: "127.0.0.1:0" (loopback, OS-assigned port)
//   - MaxBodySize: 65536
//   - MaxHeaderBytes: 8192
//   - ReadTimeout: 30s
//   - WriteTimeout: 30s
//   - ShutdownTimeout: 10s
//   - AcceptorPoolSize: 1
//   - WorkerPoolSize: 1024
type Config struct {
	// Address is the host:port to listen on. Port 0 lets the OS choose;
	// the chosen address is reported by Server.Addr.
	Address string `mapstructure:"address" yaml:"address" validate:"required"`

	// MaxBodySize is the aggregation limit for request bodies. A body of
	// exactly this many bytes is accepted; one more byte is a bad request.
	MaxBodySize int64 `mapstructure:"max_body_size" yaml:"max_body_size" validate:"min=0"`

	// MaxHeaderBytes bounds the request line plus header block.
	MaxHeaderBytes int `mapstructure:"max_header_bytes" yaml:"max_header_bytes" validate:"min=0"`

	// ReadTimeout is the maximum duration for reading a complete request.
	// A negative value disables the deadline.
	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout is the maximum duration for writing the response.
	// A negative value disables the deadline.
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`

	// ShutdownTimeout is the maximum duration Close waits for in-flight
	// connections before force-closing them.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"min=0"`

	// AcceptorPoolSize is the number of acceptor units of an owned acceptor
	// pool. Ignored when executors are supplied.
	AcceptorPoolSize int `mapstructure:"acceptor_pool_size" yaml:"acceptor_pool_size" validate:"min=0"`

	// WorkerPoolSize bounds the number of connections serviced at once by an
	// owned worker pool. Ignored when executors are supplied.
	WorkerPoolSize int `mapstructure:"worker_pool_size" yaml:"worker_pool_size" validate:"min=0"`

	// RateLimit throttles how fast new connections are accepted.
	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
}

// RateLimitConfig configures accept throttling. A zero RequestsPerSecond
// disables it.
type RateLimitConfig struct {
	RequestsPerSecond uint `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	Burst             uint `mapstructure:"burst" yaml:"burst"`
}

// ApplyDefaults replaces zero values with defaults. Negative timeouts are kept.
func (c *Config) ApplyDefaults() {
	if c.Address == "" {
		c.Address = "127.0.0.1:0"
	}
	if c.MaxBodySize <= 0 {
		c.MaxBodySize = http1.DefaultMaxBodySize
	}
	if c.MaxHeaderBytes <= 0 {
		c.MaxHeaderBytes = http1.DefaultMaxHeaderBytes
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	if c.AcceptorPoolSize <= 0 {
		c.AcceptorPoolSize = 1
	}
	if c.WorkerPoolSize <= 0 {
		c.WorkerPoolSize = 1024
	}
}

// Validate checks values ApplyDefaults cannot repair.
func (c *Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.Address); err != nil {
		return fmt.Errorf("invalid Address %q: %w", c.Address, err)
	}
	if c.ShutdownTimeout < 0 {
		return fmt.Errorf("invalid ShutdownTimeout %v: must be >= 0", c.ShutdownTimeout)
	}
	if c.RateLimit.Burst > 0 && c.RateLimit.RequestsPerSecond == 0 {
		return fmt.Errorf("invalid RateLimit: burst %d set without requests_per_second", c.RateLimit.Burst)
	}
	return nil
}

// DefaultConfig returns a Config with every default applied.
func DefaultConfig() Config {
	var c Config
	c.ApplyDefaults()
	return c
}

func (c *Config) limits() http1.Limits {
	return http1.Limits{
		MaxBodySize:    c.MaxBodySize,
		MaxHeaderBytes: c.MaxHeaderBytes,
	}
}
