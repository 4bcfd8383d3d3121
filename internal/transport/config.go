// Package transport dials and listens for framed stream connections.
package transport

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrAddressRequired = errors.New("transport: address required")
	ErrUnknownNetwork  = errors.New("transport: unsupported network")
)

// BackoffConfig defines retry backoff behavior.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// Config holds connection parameters. Zero timeouts disable the matching
// deadline. MaxAttempts <= 0 retries until ctx ends.
type Config struct {
	Network        string
	Address        string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxAttempts    int
	Backoff        BackoffConfig
}

func DefaultConfig() Config {
	return Config{
		Network:        "tcp",
		Address:        "127.0.0.1:9400",
		ConnectTimeout: 5 * time.Second,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		MaxAttempts:    5,
		Backoff: BackoffConfig{
			InitialDelay: 250 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     5 * time.Second,
			Jitter:       true,
		},
	}
}

// WithDefaults fills an empty network and a zero backoff.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if strings.TrimSpace(c.Network) == "" {
		c.Network = def.Network
	}
	if c.Backoff == (BackoffConfig{}) {
		c.Backoff = def.Backoff
	}
	return c
}

func (c Config) Validate() error {
	switch c.Network {
	case "tcp", "tcp4", "tcp6", "unix":
	default:
		return ErrUnknownNetwork
	}
	if strings.TrimSpace(c.Address) == "" {
		return ErrAddressRequired
	}
	return nil
}
