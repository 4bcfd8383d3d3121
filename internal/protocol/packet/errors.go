package packet

import (
	"errors"

	"github.com/danmuck/packetio/internal/protocol/frame"
)

// Error kinds, matched with errors.Is. Each wraps its underlying cause. A
// call cancelled before touching the stream returns the bare ctx error.
var (
	ErrIO              = errors.New("packet: stream i/o failed")
	ErrEncode          = errors.New("packet: encode failed")
	ErrDecode          = errors.New("packet: decode failed")
	ErrPayloadTooLarge = frame.ErrPayloadTooLarge
	// ErrPartialFrame means a cancelled call or a rejected length left part
	// of a frame on the stream. The connection must be closed.
	ErrPartialFrame = errors.New("packet: stream left mid-frame")
)
