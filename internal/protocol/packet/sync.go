package packet

import (
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/danmuck/packetio/internal/protocol/frame"
)

// Writer sends one frame per Send call, blocking until the whole frame is
// written. It does no buffering or locking; one goroutine sends at a time.
type Writer struct {
	w   io.Writer
	cfg Config
}

func NewWriter(w io.Writer, cfg Config) *Writer {
	return &Writer{w: w, cfg: cfg.WithDefaults()}
}

func (w *Writer) Send(v any) error {
	start := time.Now()
	n, err := w.send(v)
	w.cfg.sent(start, n, err)
	return err
}

func (w *Writer) send(v any) (int, error) {
	payload, err := EncodePayload(v, w.cfg.Codec)
	if err != nil {
		return 0, err
	}
	if err := frame.WriteFrame(w.w, payload, w.cfg.Limits); err != nil {
		return len(payload), ioErr(err)
	}
	return len(payload), nil
}

// Reader receives one frame per Receive call, blocking until the whole
// frame is read. A length prefix over the limit leaves its payload unread,
// so the Reader refuses every later frame with ErrPartialFrame.
type Reader struct {
	r   io.Reader
	cfg Config

	broken atomic.Bool
}

func NewReader(r io.Reader, cfg Config) *Reader {
	return &Reader{r: r, cfg: cfg.WithDefaults()}
}

// Receive decodes the next frame into the value v points to.
func (r *Reader) Receive(v any) error {
	start := time.Now()
	n, err := r.receive(v)
	r.cfg.received(start, n, err)
	return err
}

// Broken reports whether an oversized length left the stream misaligned.
func (r *Reader) Broken() bool {
	return r.broken.Load()
}

func (r *Reader) receive(v any) (int, error) {
	if r.broken.Load() {
		return 0, fmt.Errorf("%w: %s side", ErrPartialFrame, dirRecv)
	}
	size, err := frame.ReadLength(r.r)
	if err != nil {
		return 0, ioErr(err)
	}
	if !r.cfg.Limits.Allows(uint64(size)) {
		r.broken.Store(true)
		return 0, oversized(size, r.cfg.Limits)
	}
	payload, err := frame.ReadPayload(r.r, size)
	if err != nil {
		return 0, ioErr(err)
	}
	return len(payload), DecodePayloadInto(payload, v, r.cfg.Codec)
}

// Receive reads the next frame from r as a T.
func Receive[T any](r *Reader) (T, error) {
	var v T
	if err := r.Receive(&v); err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}

// Conn is a blocking adapter over a duplex stream. One goroutine may send
// while another receives.
type Conn struct {
	*Reader
	*Writer
}

func NewConn(rw io.ReadWriter, cfg Config) *Conn {
	return &Conn{
		Reader: NewReader(rw, cfg),
		Writer: NewWriter(rw, cfg),
	}
}

// SendTo writes v to w as a single frame.
func SendTo(w io.Writer, v any, cfg Config) error {
	return NewWriter(w, cfg).Send(v)
}

// ReceiveFrom reads a single frame from r as a T.
func ReceiveFrom[T any](r io.Reader, cfg Config) (T, error) {
	return Receive[T](NewReader(r, cfg))
}

// oversized reports a received length over the limit. Its payload is still
// on the stream, so the error also carries ErrPartialFrame.
func oversized(size uint32, limits frame.Limits) error {
	return fmt.Errorf("%w: %w: %d bytes exceeds limit %d", ErrPartialFrame, ErrPayloadTooLarge, size, limits.MaxPayloadBytes)
}

// ioErr classifies a frame error. Limit violations keep their own kind.
func ioErr(err error) error {
	if errors.Is(err, frame.ErrPayloadTooLarge) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrIO, err)
}
