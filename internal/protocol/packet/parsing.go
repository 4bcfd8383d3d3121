package packet

import (
	"fmt"

	"github.com/danmuck/packetio/internal/protocol/codec"
	"github.com/danmuck/packetio/internal/protocol/frame"
)

// ParseLength interprets a length prefix the caller read itself.
func ParseLength(b [frame.LengthSize]byte) uint32 {
	return frame.ParseLength(b)
}

// EncodePayload runs v through c without framing it.
func EncodePayload(v any, c codec.Codec) ([]byte, error) {
	if c == nil {
		c = codec.Default()
	}
	payload, err := c.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrEncode, c.Name(), err)
	}
	return payload, nil
}

// DecodePayload decodes one complete payload into a new T.
func DecodePayload[T any](data []byte, c codec.Codec) (T, error) {
	var v T
	if err := DecodePayloadInto(data, &v, c); err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}

// DecodePayloadInto decodes one complete payload into the value v points to.
func DecodePayloadInto(data []byte, v any, c codec.Codec) error {
	if c == nil {
		c = codec.Default()
	}
	if err := c.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDecode, c.Name(), err)
	}
	return nil
}

// AppendFrame encodes v and appends the complete frame to dst, for callers
// batching frames into their own buffers.
func AppendFrame(dst []byte, v any, cfg Config) ([]byte, error) {
	cfg = cfg.WithDefaults()
	payload, err := EncodePayload(v, cfg.Codec)
	if err != nil {
		return dst, err
	}
	return frame.AppendFrame(dst, payload, cfg.Limits)
}
