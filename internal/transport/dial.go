package transport

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"time"

	"github.com/rs/zerolog/log"
)

// Dial connects to cfg.Address, retrying with backoff until it succeeds,
// MaxAttempts is spent or ctx ends. The returned conn applies the
// configured read and write timeouts.
func Dial(ctx context.Context, cfg Config) (net.Conn, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	dialer := net.Dialer{Timeout: cfg.ConnectTimeout}

	var attempt int
	for {
		attempt++
		conn, err := dialer.DialContext(ctx, cfg.Network, cfg.Address)
		if err == nil {
			log.Debug().
				Str("addr", cfg.Address).
				Int("attempt", attempt).
				Msg("transport.Dial connected")
			return NewDeadlineConn(conn, cfg.ReadTimeout, cfg.WriteTimeout), nil
		}
		log.Warn().
			Err(err).
			Str("addr", cfg.Address).
			Int("attempt", attempt).
			Msg("transport.Dial attempt failed")
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if cfg.MaxAttempts > 0 && attempt >= cfg.MaxAttempts {
			return nil, fmt.Errorf("transport: dial %s after %d attempts: %w", cfg.Address, attempt, err)
		}
		if err := sleep(ctx, NextBackoffDelay(cfg.Backoff, attempt, rng)); err != nil {
			return nil, err
		}
	}
}

// Listen opens a listener on cfg.Address. Accepted conns are not wrapped;
// callers apply timeouts with NewDeadlineConn.
func Listen(cfg Config) (net.Listener, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ln, err := net.Listen(cfg.Network, cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("transport: listen %s: %w", cfg.Address, err)
	}
	return ln, nil
}
