package packet

import (
	"bytes"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/danmuck/packetio/internal/protocol/codec"
	"github.com/danmuck/packetio/internal/protocol/frame"
	"github.com/danmuck/packetio/internal/testutil/testlog"
)

func TestSendWritesLengthThenPayload(t *testing.T) {
	testlog.Start(t)
	var buf bytes.Buffer
	conn := NewConn(&buf, DefaultConfig())

	in := record{Field1: 1, Field2: 2}
	if err := conn.Send(in); err != nil {
		t.Fatalf("send: %v", err)
	}
	want := []byte{0x00, 0x00, 0x00, 0x03, 0x82, 0x01, 0x02}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("wire mismatch: got=% x want=% x", buf.Bytes(), want)
	}

	out, err := Receive[record](conn.Reader)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if out != in {
		t.Fatalf("record mismatch: got=%+v want=%+v", out, in)
	}
}

func TestSendTLVRecord(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultConfig()
	cfg.Codec = codec.TLV()
	var buf bytes.Buffer
	if err := SendTo(&buf, tlvRecord{Field1: 1, Field2: 2}, cfg); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got := buf.Bytes()[:frame.LengthSize]; !bytes.Equal(got, []byte{0, 0, 0, 17}) {
		t.Fatalf("unexpected length prefix: % x", got)
	}
	out, err := ReceiveFrom[tlvRecord](&buf, cfg)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if out != (tlvRecord{Field1: 1, Field2: 2}) {
		t.Fatalf("record mismatch: %+v", out)
	}
}

func TestManualParseOverPipe(t *testing.T) {
	testlog.Start(t)
	reader, writer, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer reader.Close()
	defer writer.Close()

	in := record{Field1: 1, Field2: 2}
	if err := NewWriter(writer, DefaultConfig()).Send(in); err != nil {
		t.Fatalf("send: %v", err)
	}

	var sizeBuf [frame.LengthSize]byte
	if _, err := io.ReadFull(reader, sizeBuf[:]); err != nil {
		t.Fatalf("read length: %v", err)
	}
	size := ParseLength(sizeBuf)
	packet := make([]byte, size)
	if _, err := io.ReadFull(reader, packet); err != nil {
		t.Fatalf("read payload: %v", err)
	}
	out, err := DecodePayload[record](packet, codec.CBOR())
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if out != in {
		t.Fatalf("record mismatch: got=%+v want=%+v", out, in)
	}
}

func TestZeroLengthPayload(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultConfig()
	cfg.Codec = codec.Binary()
	var buf bytes.Buffer
	conn := NewConn(&buf, cfg)
	if err := conn.Send(ping{}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), []byte{0, 0, 0, 0}) {
		t.Fatalf("unexpected wire bytes: % x", buf.Bytes())
	}
	var p ping
	if err := conn.Receive(&p); err != nil {
		t.Fatalf("receive: %v", err)
	}
}

func TestMaxLengthPrefix(t *testing.T) {
	testlog.Start(t)
	wire := append([]byte{0xFF, 0xFF, 0xFF, 0xFF}, []byte("short")...)

	cfg := DefaultConfig()
	cfg.Limits = frame.Unlimited()
	_, err := ReceiveFrom[message](bytes.NewReader(wire), cfg)
	if !errors.Is(err, ErrIO) || !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected ErrIO wrapping io.ErrUnexpectedEOF, got %v", err)
	}

	_, err = ReceiveFrom[message](bytes.NewReader(wire), DefaultConfig())
	if !errors.Is(err, ErrPayloadTooLarge) || errors.Is(err, ErrIO) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}

// oversizedThenValid is a 77-byte frame followed by a valid message frame.
func oversizedThenValid(t *testing.T) []byte {
	t.Helper()
	wire, err := frame.AppendFrame(nil, bytes.Repeat([]byte{0xA5}, 77), frame.Unlimited())
	if err != nil {
		t.Fatalf("append oversized frame: %v", err)
	}
	wire, err = AppendFrame(wire, message{Seq: 1, Body: "ok"}, DefaultConfig())
	if err != nil {
		t.Fatalf("append valid frame: %v", err)
	}
	return wire
}

func TestReceiveAfterOversizedLengthRefuses(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultConfig()
	cfg.Limits = frame.Limits{MaxPayloadBytes: 16}
	reader := NewReader(bytes.NewReader(oversizedThenValid(t)), cfg)

	_, err := Receive[message](reader)
	if !errors.Is(err, ErrPayloadTooLarge) || !errors.Is(err, ErrPartialFrame) {
		t.Fatalf("expected ErrPayloadTooLarge and ErrPartialFrame, got %v", err)
	}
	if !reader.Broken() {
		t.Fatalf("oversized length should break the reader")
	}

	// The payload bytes must never be read back as a length.
	_, err = Receive[message](reader)
	if !errors.Is(err, ErrPartialFrame) || errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPartialFrame on the next receive, got %v", err)
	}
}

func TestReceiveTruncatedFrame(t *testing.T) {
	testlog.Start(t)
	wire := []byte{0, 0, 0, 10, 1, 2, 3}
	_, err := ReceiveFrom[message](bytes.NewReader(wire), DefaultConfig())
	if !errors.Is(err, ErrIO) {
		t.Fatalf("expected ErrIO, got %v", err)
	}
	if errors.Is(err, ErrDecode) {
		t.Fatalf("truncation must not reach the decoder: %v", err)
	}
}

func TestReceiveCleanEOF(t *testing.T) {
	testlog.Start(t)
	_, err := ReceiveFrom[message](bytes.NewReader(nil), DefaultConfig())
	if !errors.Is(err, ErrIO) || !errors.Is(err, io.EOF) {
		t.Fatalf("expected ErrIO wrapping io.EOF, got %v", err)
	}
}

func TestReceiveMalformedPayload(t *testing.T) {
	testlog.Start(t)
	wire, err := frame.AppendFrame(nil, []byte{0xFF, 0xFE, 0xFD}, frame.DefaultLimits())
	if err != nil {
		t.Fatalf("append frame: %v", err)
	}
	_, err = ReceiveFrom[message](bytes.NewReader(wire), DefaultConfig())
	if !errors.Is(err, ErrDecode) || errors.Is(err, ErrIO) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestSendUnsupportedValue(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultConfig()
	cfg.Codec = codec.TLV()
	var buf bytes.Buffer
	err := SendTo(&buf, struct {
		N int `tlv:"1"`
	}{N: 1}, cfg)
	if !errors.Is(err, ErrEncode) || !errors.Is(err, codec.ErrUnsupportedType) {
		t.Fatalf("expected ErrEncode wrapping codec.ErrUnsupportedType, got %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("failed encode must not write, wrote %d bytes", buf.Len())
	}
}

func TestSendOversizedPayload(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultConfig()
	cfg.Limits = frame.Limits{MaxPayloadBytes: 8}
	var buf bytes.Buffer
	err := SendTo(&buf, message{Seq: 1, Body: "far too long for the limit"}, cfg)
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("oversized payload must not write, wrote %d bytes", buf.Len())
	}
}

func TestFramesArriveInSendOrder(t *testing.T) {
	testlog.Start(t)
	var buf bytes.Buffer
	conn := NewConn(&buf, DefaultConfig())
	for i := uint64(0); i < 100; i++ {
		if err := conn.Send(message{Seq: i, Body: "m"}); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}
	for i := uint64(0); i < 100; i++ {
		got, err := Receive[message](conn.Reader)
		if err != nil {
			t.Fatalf("receive %d: %v", i, err)
		}
		if got.Seq != i {
			t.Fatalf("out of order: got seq=%d want=%d", got.Seq, i)
		}
	}
}

func TestObserverSeesEveryFrame(t *testing.T) {
	testlog.Start(t)
	obs := &recordingObserver{}
	cfg := DefaultConfig()
	cfg.Observer = obs
	var buf bytes.Buffer
	conn := NewConn(&buf, cfg)
	if err := conn.Send(message{Seq: 1}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := Receive[message](conn.Reader); err != nil {
		t.Fatalf("receive: %v", err)
	}
	if _, err := Receive[message](conn.Reader); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF, got %v", err)
	}
	sent, received := obs.counts()
	if sent != 1 || received != 2 {
		t.Fatalf("unexpected observer counts sent=%d received=%d", sent, received)
	}
	if obs.sent[0].Codec != "cbor" || obs.sent[0].PayloadBytes == 0 || obs.sent[0].Err != nil {
		t.Fatalf("unexpected sent event: %+v", obs.sent[0])
	}
	if obs.received[1].Err == nil {
		t.Fatalf("failed receive should report its error")
	}
}

func TestObserverSeesFailedSendSize(t *testing.T) {
	testlog.Start(t)
	obs := &recordingObserver{}
	cfg := DefaultConfig()
	cfg.Observer = obs
	w := NewWriter(failingWriter{}, cfg)
	if err := w.Send(message{Seq: 1, Body: "lost"}); !errors.Is(err, ErrIO) {
		t.Fatalf("expected ErrIO, got %v", err)
	}
	want, err := EncodePayload(message{Seq: 1, Body: "lost"}, cfg.Codec)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if got := obs.sent[0].PayloadBytes; got != len(want) {
		t.Fatalf("unexpected payload bytes got=%d want=%d", got, len(want))
	}
}

func TestAppendFrameMatchesSend(t *testing.T) {
	testlog.Start(t)
	in := message{Seq: 9, Body: "batched"}
	batched, err := AppendFrame(nil, in, DefaultConfig())
	if err != nil {
		t.Fatalf("append frame: %v", err)
	}
	var buf bytes.Buffer
	if err := SendTo(&buf, in, DefaultConfig()); err != nil {
		t.Fatalf("send: %v", err)
	}
	if !bytes.Equal(batched, buf.Bytes()) {
		t.Fatalf("AppendFrame and Send disagree: % x vs % x", batched, buf.Bytes())
	}
}
