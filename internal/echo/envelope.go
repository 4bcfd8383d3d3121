package echo

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidEnvelope = errors.New("echo: invalid envelope")
	ErrEchoMismatch    = errors.New("echo: echoed envelope does not match")
)

// Envelope is the unit exchanged by Client and Server.
type Envelope struct {
	ID       string `cbor:"id" msgpack:"id" json:"id" tlv:"1,required"`
	Seq      uint64 `cbor:"seq" msgpack:"seq" json:"seq" tlv:"2,required"`
	SentAtMS uint64 `cbor:"sent_at_ms" msgpack:"sent_at_ms" json:"sent_at_ms" tlv:"3"`
	Body     []byte `cbor:"body,omitempty" msgpack:"body,omitempty" json:"body,omitempty" tlv:"4"`
}

func NewEnvelope(seq uint64, body []byte) Envelope {
	return Envelope{
		ID:       uuid.NewString(),
		Seq:      seq,
		SentAtMS: uint64(time.Now().UnixMilli()),
		Body:     body,
	}
}

func (e Envelope) Validate() error {
	if _, err := uuid.Parse(e.ID); err != nil {
		return fmt.Errorf("%w: id %q: %w", ErrInvalidEnvelope, e.ID, err)
	}
	return nil
}
