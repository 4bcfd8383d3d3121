package packet

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/danmuck/packetio/internal/protocol/frame"
)

// AsyncConn is the context-aware adapter. Every I/O step (the length
// prefix, then the payload) runs on its own goroutine while the caller
// waits on either the step or ctx, so a stalled peer never pins the
// caller past cancellation. Frames are byte-identical to Conn's.
//
// Cancelling before any byte moves returns ctx.Err() and leaves the stream
// untouched. Cancelling mid-frame returns ErrPartialFrame and breaks that
// direction for good: the abandoned step may still be running and nothing
// resynchronises the stream. A received length over the limit breaks the
// receive side the same way. Close the underlying connection afterwards.
type AsyncConn struct {
	rw  io.ReadWriter
	cfg Config

	sendBroken atomic.Bool
	recvBroken atomic.Bool
}

// Result carries one ReceiveAsync outcome.
type Result[T any] struct {
	Value T
	Err   error
}

type direction int

const (
	dirSend direction = iota
	dirRecv
)

func (d direction) String() string {
	if d == dirSend {
		return "send"
	}
	return "receive"
}

func NewAsyncConn(rw io.ReadWriter, cfg Config) *AsyncConn {
	return &AsyncConn{rw: rw, cfg: cfg.WithDefaults()}
}

// Broken reports whether a cancelled call or an oversized length left
// either direction mid-frame.
func (c *AsyncConn) Broken() bool {
	return c.sendBroken.Load() || c.recvBroken.Load()
}

func (c *AsyncConn) Send(ctx context.Context, v any) error {
	start := time.Now()
	n, err := c.send(ctx, v)
	c.cfg.sent(start, n, err)
	return err
}

func (c *AsyncConn) send(ctx context.Context, v any) (int, error) {
	if c.sendBroken.Load() {
		return 0, fmt.Errorf("%w: %s side", ErrPartialFrame, dirSend)
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	payload, err := EncodePayload(v, c.cfg.Codec)
	if err != nil {
		return 0, err
	}
	size := uint64(len(payload))
	if !c.cfg.Limits.Allows(size) {
		return len(payload), fmt.Errorf("%w: %d bytes exceeds limit %d", ErrPayloadTooLarge, size, c.cfg.Limits.MaxPayloadBytes)
	}

	err = c.step(ctx, dirSend, false, func() error {
		return frame.WriteLength(c.rw, uint32(size))
	})
	if err != nil {
		return len(payload), err
	}
	if size > 0 {
		err = c.step(ctx, dirSend, true, func() error {
			return frame.WritePayload(c.rw, payload)
		})
		if err != nil {
			return len(payload), err
		}
	}
	return len(payload), nil
}

// Receive decodes the next frame into the value v points to.
func (c *AsyncConn) Receive(ctx context.Context, v any) error {
	start := time.Now()
	n, err := c.receive(ctx, v)
	c.cfg.received(start, n, err)
	return err
}

func (c *AsyncConn) receive(ctx context.Context, v any) (int, error) {
	if c.recvBroken.Load() {
		return 0, fmt.Errorf("%w: %s side", ErrPartialFrame, dirRecv)
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var size uint32
	err := c.step(ctx, dirRecv, false, func() error {
		n, err := frame.ReadLength(c.rw)
		size = n
		return err
	})
	if err != nil {
		return 0, err
	}
	if !c.cfg.Limits.Allows(uint64(size)) {
		c.markBroken(dirRecv)
		return 0, oversized(size, c.cfg.Limits)
	}

	payload := []byte{}
	if size > 0 {
		err = c.step(ctx, dirRecv, true, func() error {
			p, err := frame.ReadPayload(c.rw, size)
			payload = p
			return err
		})
		if err != nil {
			return 0, err
		}
	}
	return len(payload), DecodePayloadInto(payload, v, c.cfg.Codec)
}

// ReceiveContext reads the next frame from c as a T.
func ReceiveContext[T any](ctx context.Context, c *AsyncConn) (T, error) {
	var v T
	if err := c.Receive(ctx, &v); err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}

// SendAsync starts Send on a new goroutine. The channel yields exactly one
// value.
func (c *AsyncConn) SendAsync(ctx context.Context, v any) <-chan error {
	out := make(chan error, 1)
	go func() {
		out <- c.Send(ctx, v)
	}()
	return out
}

// ReceiveAsync starts ReceiveContext on a new goroutine. The channel yields
// exactly one value.
func ReceiveAsync[T any](ctx context.Context, c *AsyncConn) <-chan Result[T] {
	out := make(chan Result[T], 1)
	go func() {
		v, err := ReceiveContext[T](ctx, c)
		out <- Result[T]{Value: v, Err: err}
	}()
	return out
}

// step runs one I/O operation as a suspension point. midFrame marks steps
// that follow bytes already moved in the same frame.
func (c *AsyncConn) step(ctx context.Context, dir direction, midFrame bool, fn func() error) error {
	if err := ctx.Err(); err != nil {
		if midFrame {
			c.markBroken(dir)
			return fmt.Errorf("%w: %w", ErrPartialFrame, err)
		}
		return err
	}

	done := make(chan error, 1)
	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return stepErr(err)
	case <-ctx.Done():
		// Prefer a step that finished in the same instant.
		select {
		case err := <-done:
			return stepErr(err)
		default:
		}
		c.markBroken(dir)
		c.interrupt(dir)
		return fmt.Errorf("%w: %w", ErrPartialFrame, ctx.Err())
	}
}

func stepErr(err error) error {
	if err == nil {
		return nil
	}
	return ioErr(err)
}

func (c *AsyncConn) markBroken(dir direction) {
	if dir == dirSend {
		c.sendBroken.Store(true)
		return
	}
	c.recvBroken.Store(true)
}

type readDeadliner interface {
	SetReadDeadline(time.Time) error
}

type writeDeadliner interface {
	SetWriteDeadline(time.Time) error
}

// interrupt unblocks an abandoned step when the stream supports deadlines.
func (c *AsyncConn) interrupt(dir direction) {
	now := time.Now()
	switch dir {
	case dirSend:
		if d, ok := c.rw.(writeDeadliner); ok {
			_ = d.SetWriteDeadline(now)
		}
	case dirRecv:
		if d, ok := c.rw.(readDeadliner); ok {
			_ = d.SetReadDeadline(now)
		}
	}
}
