package config

import (
	"github.com/danmuck/packetio/internal/protocol/codec"
	"github.com/danmuck/packetio/internal/protocol/frame"
	"github.com/danmuck/packetio/internal/protocol/packet"
	"github.com/danmuck/packetio/internal/transport"
)

// PacketConfig builds the adapter configuration for cfg's codec section.
// The observer is left for the caller.
func (cfg Config) PacketConfig() (packet.Config, error) {
	c, err := codec.New(cfg.Codec.Name, cfg.Codec.Compression)
	if err != nil {
		return packet.Config{}, err
	}
	return packet.Config{
		Codec:  c,
		Limits: frame.Limits{MaxPayloadBytes: cfg.Codec.MaxPayloadBytes},
	}, nil
}

func (cfg Config) TransportConfig() transport.Config {
	t := cfg.Transport
	return transport.Config{
		Network:        t.Network,
		Address:        t.Addr,
		ConnectTimeout: t.ConnectTimeout.Std(),
		ReadTimeout:    t.ReadTimeout.Std(),
		WriteTimeout:   t.WriteTimeout.Std(),
		MaxAttempts:    t.MaxAttempts,
		Backoff: transport.BackoffConfig{
			InitialDelay: t.Backoff.InitialDelay.Std(),
			Multiplier:   t.Backoff.Multiplier,
			MaxDelay:     t.Backoff.MaxDelay.Std(),
			Jitter:       t.Backoff.Jitter,
		},
	}
}
