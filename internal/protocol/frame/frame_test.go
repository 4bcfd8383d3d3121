package frame

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/danmuck/packetio/internal/protocol/tlv"
	"github.com/danmuck/packetio/internal/testutil/testlog"
)

func TestReadWriteFrameRoundTrip(t *testing.T) {
	testlog.Start(t)
	payload := tlv.EncodeFields([]tlv.Field{tlv.NewString(1, "intent-1")})
	var buf bytes.Buffer
	if err := WriteFrame(&buf, payload, DefaultLimits()); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	if got := buf.Len(); got != LengthSize+len(payload) {
		t.Fatalf("unexpected wire size: %d", got)
	}
	out, err := ReadFrame(&buf, DefaultLimits())
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if !bytes.Equal(out, payload) {
		t.Fatalf("payload mismatch")
	}
}

func TestWriteFrameWireLayout(t *testing.T) {
	testlog.Start(t)
	var buf bytes.Buffer
	if err := WriteFrame(&buf, []byte{0x82, 0x01, 0x02}, DefaultLimits()); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	want := []byte{0x00, 0x00, 0x00, 0x03, 0x82, 0x01, 0x02}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("wire mismatch: got=% x want=% x", buf.Bytes(), want)
	}

	appended, err := AppendFrame(nil, []byte{0x82, 0x01, 0x02}, DefaultLimits())
	if err != nil {
		t.Fatalf("append frame: %v", err)
	}
	if !bytes.Equal(appended, want) {
		t.Fatalf("append mismatch: got=% x want=% x", appended, want)
	}
}

func TestFrameSequencePreservesOrder(t *testing.T) {
	testlog.Start(t)
	payloads := [][]byte{[]byte("one"), {}, []byte("three"), bytes.Repeat([]byte{0xAB}, readChunk+17)}
	var buf bytes.Buffer
	for _, p := range payloads {
		if err := WriteFrame(&buf, p, Unlimited()); err != nil {
			t.Fatalf("write frame: %v", err)
		}
	}
	for i, want := range payloads {
		got, err := ReadFrame(&buf, Unlimited())
		if err != nil {
			t.Fatalf("read frame %d: %v", i, err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("frame %d mismatch: len got=%d want=%d", i, len(got), len(want))
		}
	}
	if _, err := ReadFrame(&buf, Unlimited()); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF at clean boundary, got %v", err)
	}
}

func TestZeroLengthFrame(t *testing.T) {
	testlog.Start(t)
	got, err := ReadFrame(bytes.NewReader([]byte{0, 0, 0, 0}), DefaultLimits())
	if err != nil {
		t.Fatalf("read zero frame: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil payload, got %v", got)
	}
}

func TestMaxLengthPrefixOnShortStream(t *testing.T) {
	testlog.Start(t)
	wire := append([]byte{0xFF, 0xFF, 0xFF, 0xFF}, bytes.Repeat([]byte{1}, 1024)...)

	_, err := ReadFrame(bytes.NewReader(wire), Unlimited())
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected io.ErrUnexpectedEOF, got %v", err)
	}

	_, err = ReadFrame(bytes.NewReader(wire), DefaultLimits())
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestReadFrameTruncated(t *testing.T) {
	testlog.Start(t)
	cases := map[string][]byte{
		"short length":         {0, 0},
		"short payload":        {0, 0, 0, 5, 'a', 'b'},
		"length without bytes": {0, 0, 0, 1},
	}
	for name, wire := range cases {
		_, err := ReadFrame(bytes.NewReader(wire), DefaultLimits())
		if !errors.Is(err, io.ErrUnexpectedEOF) {
			t.Fatalf("%s: expected io.ErrUnexpectedEOF, got %v", name, err)
		}
	}
}

func TestWriteFrameRejectsOversizedPayload(t *testing.T) {
	testlog.Start(t)
	var buf bytes.Buffer
	err := WriteFrame(&buf, make([]byte, 16), Limits{MaxPayloadBytes: 8})
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("oversized payload must not touch the stream, wrote %d bytes", buf.Len())
	}
}

type shortWriter struct{}

func (shortWriter) Write(p []byte) (int, error) {
	if len(p) <= 1 {
		return len(p), nil
	}
	return len(p) - 1, nil
}

func TestWriteFrameShortWrite(t *testing.T) {
	testlog.Start(t)
	err := WriteFrame(shortWriter{}, []byte("payload"), DefaultLimits())
	if !errors.Is(err, io.ErrShortWrite) {
		t.Fatalf("expected io.ErrShortWrite, got %v", err)
	}
}

func TestParseLength(t *testing.T) {
	testlog.Start(t)
	if got := ParseLength([4]byte{0, 0, 1, 2}); got != 258 {
		t.Fatalf("ParseLength got=%d", got)
	}
	if got := ParseLength(EncodeLength(MaxLength)); got != MaxLength {
		t.Fatalf("max round trip got=%d", got)
	}
	if _, err := ParseLengthBytes([]byte{1, 2, 3}); !errors.Is(err, ErrShortLength) {
		t.Fatalf("expected ErrShortLength, got %v", err)
	}
}

func TestLimitsAllows(t *testing.T) {
	testlog.Start(t)
	if !Unlimited().Allows(MaxLength) {
		t.Fatalf("unlimited should allow MaxLength")
	}
	if Unlimited().Allows(MaxLength + 1) {
		t.Fatalf("nothing beyond the 32-bit field is allowed")
	}
	l := Limits{MaxPayloadBytes: 10}
	if !l.Allows(10) || l.Allows(11) {
		t.Fatalf("limit boundary mismatch")
	}
}
