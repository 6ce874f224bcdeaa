// Package config holds server configuration.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/gobwas/wsreactor/handshake"
	"github.com/gobwas/wsreactor/internal/logging"
)

// Defaults.
const (
	DefaultAddr             = "0.0.0.0:10000"
	DefaultBacklog          = 1024
	DefaultReadBufferSize   = 4096
	DefaultMaxEvents        = 128
	DefaultIdleTimeout      = 30 * time.Second
	DefaultHandshakeTimeout = time.Minute
	DefaultPollInterval     = 250 * time.Millisecond
)

// Environment variable names.
const (
	EnvAddr             = "WSREACTOR_ADDR"
	EnvBacklog          = "WSREACTOR_BACKLOG"
	EnvReadBufferSize   = "WSREACTOR_READ_BUFFER"
	EnvMaxHeaderSize    = "WSREACTOR_MAX_HEADER_SIZE"
	EnvMaxEvents        = "WSREACTOR_MAX_EVENTS"
	EnvMaxConns         = "WSREACTOR_MAX_CONNS"
	EnvIdleTimeout      = "WSREACTOR_IDLE_TIMEOUT"
	EnvHandshakeTimeout = "WSREACTOR_HANDSHAKE_TIMEOUT"
	EnvPollInterval     = "WSREACTOR_POLL_INTERVAL"
	EnvLogLevel         = "WSREACTOR_LOG_LEVEL"
	EnvLogFormat        = "WSREACTOR_LOG_FORMAT"
)

// Config describes the server.
type Config struct {
	// Addr is the TCP address to listen on.
	Addr string

	// Backlog is the listen(2) backlog.
	Backlog int

	// ReadBufferSize is the size of buffer used for a single read call.
	ReadBufferSize int

	// MaxHeaderSize limits the handshake request head size.
	MaxHeaderSize int

	// MaxEvents is the number of readiness events handled per poll call.
	MaxEvents int

	// MaxConns limits number of live connections. Zero means no limit.
	MaxConns int

	// IdleTimeout is how long a connection may stay without activity before
	// its handshake is completed. Zero disables the limit.
	IdleTimeout time.Duration

	// HandshakeTimeout is how long after accept a connection may stay short
	// of completed handshake, no matter how active it is. Zero disables the
	// limit.
	HandshakeTimeout time.Duration

	// PollInterval bounds a single poll wait. It also sets how often idle
	// connections are looked for.
	PollInterval time.Duration

	LogLevel  string
	LogFormat string
}

// Default returns configuration with default values.
func Default() Config {
	return Config{
		Addr:             DefaultAddr,
		Backlog:          DefaultBacklog,
		ReadBufferSize:   DefaultReadBufferSize,
		MaxHeaderSize:    handshake.DefaultMaxHeaderSize,
		MaxEvents:        DefaultMaxEvents,
		IdleTimeout:      DefaultIdleTimeout,
		HandshakeTimeout: DefaultHandshakeTimeout,
		PollInterval:     DefaultPollInterval,
		LogLevel:         "info",
		LogFormat:        string(logging.FormatText),
	}
}

// Validate checks configuration values.
func (c Config) Validate() error {
	var errs []error
	if _, _, err := net.SplitHostPort(c.Addr); err != nil {
		errs = append(errs, fmt.Errorf("addr: %w", err))
	}
	if c.ReadBufferSize <= 0 {
		errs = append(errs, fmt.Errorf("read buffer size must be positive: %d", c.ReadBufferSize))
	}
	if c.MaxHeaderSize <= 0 {
		errs = append(errs, fmt.Errorf("max header size must be positive: %d", c.MaxHeaderSize))
	}
	if c.MaxEvents <= 0 {
		errs = append(errs, fmt.Errorf("max events must be positive: %d", c.MaxEvents))
	}
	if c.MaxConns < 0 {
		errs = append(errs, fmt.Errorf("max conns must not be negative: %d", c.MaxConns))
	}
	if c.IdleTimeout < 0 {
		errs = append(errs, fmt.Errorf("idle timeout must not be negative: %s", c.IdleTimeout))
	}
	if c.HandshakeTimeout < 0 {
		errs = append(errs, fmt.Errorf("handshake timeout must not be negative: %s", c.HandshakeTimeout))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("poll interval must be positive: %s", c.PollInterval))
	}
	if _, ok := logging.ParseLevel(c.LogLevel); !ok {
		errs = append(errs, fmt.Errorf("unknown log level: %q", c.LogLevel))
	}
	if _, ok := logging.ParseFormat(c.LogFormat); !ok {
		errs = append(errs, fmt.Errorf("unknown log format: %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

// Logging returns logging configuration derived from c.
func (c Config) Logging() logging.Config {
	level, _ := logging.ParseLevel(c.LogLevel)
	format, _ := logging.ParseFormat(c.LogFormat)
	return logging.Config{
		Level:  level,
		Format: format,
	}
}

// LoadEnv overrides fields of c with values of environment variables that
// are set. Lookup is os.LookupEnv if nil.
func LoadEnv(c *Config, lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	var errs []error
	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if v, ok := lookup(name); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = n
		}
	}
	dur := func(name string, dst *time.Duration) {
		if v, ok := lookup(name); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = d
		}
	}

	str(EnvAddr, &c.Addr)
	num(EnvBacklog, &c.Backlog)
	num(EnvReadBufferSize, &c.ReadBufferSize)
	num(EnvMaxHeaderSize, &c.MaxHeaderSize)
	num(EnvMaxEvents, &c.MaxEvents)
	num(EnvMaxConns, &c.MaxConns)
	dur(EnvIdleTimeout, &c.IdleTimeout)
	dur(EnvHandshakeTimeout, &c.HandshakeTimeout)
	dur(EnvPollInterval, &c.PollInterval)
	str(EnvLogLevel, &c.LogLevel)
	str(EnvLogFormat, &c.LogFormat)

	return errors.Join(errs...)
}
