package codec

import (
	"encoding"
	"fmt"
)

type binaryCodec struct{}

// Binary delegates to the value's own encoding.BinaryMarshaler and
// encoding.BinaryUnmarshaler implementations.
func Binary() Codec {
	return binaryCodec{}
}

func (binaryCodec) Name() string {
	return "binary"
}

func (binaryCodec) Marshal(v any) ([]byte, error) {
	m, ok := v.(encoding.BinaryMarshaler)
	if !ok {
		return nil, fmt.Errorf("%w: %T does not implement encoding.BinaryMarshaler", ErrUnsupportedType, v)
	}
	return m.MarshalBinary()
}

func (binaryCodec) Unmarshal(data []byte, v any) error {
	u, ok := v.(encoding.BinaryUnmarshaler)
	if !ok {
		return fmt.Errorf("%w: %T does not implement encoding.BinaryUnmarshaler", ErrUnsupportedType, v)
	}
	return u.UnmarshalBinary(data)
}
