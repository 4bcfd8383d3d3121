// Package codec turns values into payload bytes and back.
//
// Every codec here is deterministic (the same logical value always yields
// the same bytes) and consumes exactly the bytes it is handed: trailing
// data after one well-formed value is a decode error.
package codec

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrUnsupportedType      = errors.New("codec: unsupported type")
	ErrTrailingBytes        = errors.New("codec: trailing bytes after value")
	ErrUnknownCodec         = errors.New("codec: unknown codec")
	ErrUnknownCompression   = errors.New("codec: unknown compression")
	ErrDecompressedTooLarge = errors.New("codec: decompressed payload too large")
)

// Codec marshals and unmarshals values to and from bytes.
type Codec interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// Default is the codec used when none is configured.
func Default() Codec {
	return CBOR()
}

var constructors = map[string]func() Codec{
	"cbor":    CBOR,
	"msgpack": MsgPack,
	"json":    JSON,
	"binary":  Binary,
	"tlv":     TLV,
}

// Names lists the registered codec names in sorted order.
func Names() []string {
	out := make([]string, 0, len(constructors))
	for name := range constructors {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func ByName(name string) (Codec, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return Default(), nil
	}
	ctor, ok := constructors[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
	return ctor(), nil
}

// New resolves a codec by name and wraps it with the named compression.
func New(name, compression string) (Codec, error) {
	inner, err := ByName(name)
	if err != nil {
		return nil, err
	}
	algo, err := ParseCompression(compression)
	if err != nil {
		return nil, err
	}
	if algo == CompressionNone {
		return inner, nil
	}
	return Compressed(inner, algo), nil
}
