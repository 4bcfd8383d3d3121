package packet

import (
	"errors"
	"io"
	"sync"
)

// record is the two-field sample record: field1 is one byte, field2 two.
type record struct {
	_      struct{} `cbor:",toarray"`
	Field1 uint8
	Field2 uint16
}

type tlvRecord struct {
	Field1 uint8  `tlv:"1,required"`
	Field2 uint16 `tlv:"2,required"`
}

type message struct {
	Seq  uint64 `cbor:"seq"`
	Body string `cbor:"body"`
}

// ping encodes to zero payload bytes.
type ping struct{}

func (ping) MarshalBinary() ([]byte, error) {
	return []byte{}, nil
}

func (*ping) UnmarshalBinary(data []byte) error {
	if len(data) != 0 {
		return errors.New("ping: unexpected payload")
	}
	return nil
}

type duplex struct {
	io.Reader
	io.Writer
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, io.ErrClosedPipe
}

type recordingObserver struct {
	mu       sync.Mutex
	sent     []Event
	received []Event
}

func (o *recordingObserver) FrameSent(e Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, e)
}

func (o *recordingObserver) FrameReceived(e Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.received = append(o.received, e)
}

func (o *recordingObserver) counts() (int, int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.sent), len(o.received)
}
