package packet

import (
	"time"

	"github.com/danmuck/packetio/internal/protocol/codec"
	"github.com/danmuck/packetio/internal/protocol/frame"
)

// Config selects the payload codec and frame limits for an adapter.
type Config struct {
	Codec    codec.Codec
	Limits   frame.Limits
	Observer Observer
}

func DefaultConfig() Config {
	return Config{
		Codec:  codec.Default(),
		Limits: frame.DefaultLimits(),
	}
}

// WithDefaults fills a nil codec. Limits are left alone since the zero
// value is a valid (uncapped) choice.
func (c Config) WithDefaults() Config {
	if c.Codec == nil {
		c.Codec = codec.Default()
	}
	return c
}

// Observer is notified after every frame an adapter sends or receives.
// Implementations must not block.
type Observer interface {
	FrameSent(Event)
	FrameReceived(Event)
}

// Event describes one completed (or failed) frame operation.
type Event struct {
	Codec        string
	PayloadBytes int
	Duration     time.Duration
	Err          error
}

func (c Config) sent(start time.Time, n int, err error) {
	if c.Observer == nil {
		return
	}
	c.Observer.FrameSent(Event{Codec: c.Codec.Name(), PayloadBytes: n, Duration: time.Since(start), Err: err})
}

func (c Config) received(start time.Time, n int, err error) {
	if c.Observer == nil {
		return
	}
	c.Observer.FrameReceived(Event{Codec: c.Codec.Name(), PayloadBytes: n, Duration: time.Since(start), Err: err})
}
