package frame

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

const (
	// LengthSize is the size of the big-endian length prefix.
	LengthSize = 4
	// MaxLength is the largest payload the length prefix can describe.
	MaxLength = math.MaxUint32

	// readChunk bounds each allocation step while reading a large payload.
	readChunk = 64 * 1024
)

var (
	ErrPayloadTooLarge = errors.New("frame: payload too large")
	ErrShortLength     = errors.New("frame: length prefix must be 4 bytes")
)

// Limits constrains frame decode/encode memory use.
// A zero MaxPayloadBytes disables the cap.
type Limits struct {
	MaxPayloadBytes uint32
}

func DefaultLimits() Limits {
	return Limits{
		MaxPayloadBytes: 8 * 1024 * 1024,
	}
}

// Unlimited accepts any length the prefix can carry.
func Unlimited() Limits {
	return Limits{}
}

// Allows reports whether a payload of n bytes fits the limits.
func (l Limits) Allows(n uint64) bool {
	if n > MaxLength {
		return false
	}
	return l.MaxPayloadBytes == 0 || n <= uint64(l.MaxPayloadBytes)
}

func (l Limits) check(n uint64) error {
	if l.Allows(n) {
		return nil
	}
	if n > MaxLength {
		return fmt.Errorf("%w: %d bytes exceeds the 32-bit length field", ErrPayloadTooLarge, n)
	}
	return fmt.Errorf("%w: %d bytes exceeds limit %d", ErrPayloadTooLarge, n, l.MaxPayloadBytes)
}

// ParseLength interprets a length prefix. It performs no I/O.
func ParseLength(b [LengthSize]byte) uint32 {
	return binary.BigEndian.Uint32(b[:])
}

// ParseLengthBytes is ParseLength for callers holding a slice.
func ParseLengthBytes(b []byte) (uint32, error) {
	if len(b) != LengthSize {
		return 0, fmt.Errorf("%w: got %d", ErrShortLength, len(b))
	}
	return binary.BigEndian.Uint32(b), nil
}

func EncodeLength(n uint32) [LengthSize]byte {
	var b [LengthSize]byte
	binary.BigEndian.PutUint32(b[:], n)
	return b
}

// AppendFrame appends the length prefix and payload to dst.
func AppendFrame(dst, payload []byte, limits Limits) ([]byte, error) {
	if err := limits.check(uint64(len(payload))); err != nil {
		return dst, err
	}
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(payload)))
	return append(dst, payload...), nil
}

// WriteFrame writes one frame to w. Both the prefix and the payload are
// written in full or the call fails.
func WriteFrame(w io.Writer, payload []byte, limits Limits) error {
	if err := limits.check(uint64(len(payload))); err != nil {
		return err
	}
	if err := WriteLength(w, uint32(len(payload))); err != nil {
		return err
	}
	return WritePayload(w, payload)
}

func WriteLength(w io.Writer, n uint32) error {
	b := EncodeLength(n)
	if err := writeAll(w, b[:]); err != nil {
		return fmt.Errorf("frame: write length: %w", err)
	}
	return nil
}

func WritePayload(w io.Writer, payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	if err := writeAll(w, payload); err != nil {
		return fmt.Errorf("frame: write payload: %w", err)
	}
	return nil
}

// ReadFrame reads one frame from r. io.EOF is returned only when the stream
// ends cleanly on a frame boundary.
func ReadFrame(r io.Reader, limits Limits) ([]byte, error) {
	n, err := ReadLength(r)
	if err != nil {
		return nil, err
	}
	if err := limits.check(uint64(n)); err != nil {
		return nil, err
	}
	return ReadPayload(r, n)
}

func ReadLength(r io.Reader) (uint32, error) {
	var b [LengthSize]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, fmt.Errorf("frame: read length: %w", err)
	}
	return ParseLength(b), nil
}

// ReadPayload reads exactly n bytes. Payloads larger than one chunk are
// read incrementally so a short stream fails before the full size is
// allocated.
func ReadPayload(r io.Reader, n uint32) ([]byte, error) {
	if n == 0 {
		return []byte{}, nil
	}
	if n <= readChunk {
		payload := make([]byte, n)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, fmt.Errorf("frame: read payload: %w", unexpected(err))
		}
		return payload, nil
	}

	var buf bytes.Buffer
	buf.Grow(readChunk)
	copied, err := io.CopyN(&buf, r, int64(n))
	if copied < int64(n) {
		if err == nil || errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("frame: read payload: %w", err)
	}
	return buf.Bytes(), nil
}

func writeAll(w io.Writer, p []byte) error {
	n, err := w.Write(p)
	if err != nil {
		return err
	}
	if n < len(p) {
		return io.ErrShortWrite
	}
	return nil
}

// The length prefix already promised more bytes, so a bare EOF here is
// always a truncated frame.
func unexpected(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
