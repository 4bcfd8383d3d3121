package codec

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

type Compression string

const (
	CompressionNone Compression = "none"
	CompressionZstd Compression = "zstd"
	CompressionLZ4  Compression = "lz4"
)

// MaxDecompressedBytes caps what one compressed payload may expand to.
const MaxDecompressedBytes = 64 * 1024 * 1024

func ParseCompression(raw string) (Compression, error) {
	switch Compression(strings.ToLower(strings.TrimSpace(raw))) {
	case "", CompressionNone:
		return CompressionNone, nil
	case CompressionZstd:
		return CompressionZstd, nil
	case CompressionLZ4:
		return CompressionLZ4, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCompression, raw)
	}
}

// zstd encoders and decoders are safe for concurrent EncodeAll/DecodeAll.
// A single encoder goroutine keeps output deterministic.
var (
	zstdEnc *zstd.Encoder
	zstdDec *zstd.Decoder
)

func init() {
	var err error

	zstdEnc, err = zstd.NewWriter(nil,
		zstd.WithEncoderConcurrency(1),
		zstd.WithEncoderLevel(zstd.SpeedDefault),
	)
	if err != nil {
		panic("codec: zstd encoder initialization failed: " + err.Error())
	}

	zstdDec, err = zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderMaxMemory(MaxDecompressedBytes),
	)
	if err != nil {
		panic("codec: zstd decoder initialization failed: " + err.Error())
	}
}

type compressedCodec struct {
	inner Codec
	algo  Compression
}

// Compressed wraps inner so its output is compressed with algo.
func Compressed(inner Codec, algo Compression) Codec {
	return compressedCodec{inner: inner, algo: algo}
}

func (c compressedCodec) Name() string {
	return c.inner.Name() + "+" + string(c.algo)
}

func (c compressedCodec) Marshal(v any) ([]byte, error) {
	raw, err := c.inner.Marshal(v)
	if err != nil {
		return nil, err
	}
	switch c.algo {
	case CompressionZstd:
		return zstdEnc.EncodeAll(raw, nil), nil
	case CompressionLZ4:
		var buf bytes.Buffer
		zw := lz4.NewWriter(&buf)
		if _, err := zw.Write(raw); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return raw, nil
	}
}

func (c compressedCodec) Unmarshal(data []byte, v any) error {
	raw, err := c.decompress(data)
	if err != nil {
		return err
	}
	return c.inner.Unmarshal(raw, v)
}

func (c compressedCodec) decompress(data []byte) ([]byte, error) {
	switch c.algo {
	case CompressionZstd:
		raw, err := zstdDec.DecodeAll(data, nil)
		switch {
		case errors.Is(err, zstd.ErrDecoderSizeExceeded), errors.Is(err, zstd.ErrWindowSizeExceeded):
			return nil, fmt.Errorf("%w: zstd: %w", ErrDecompressedTooLarge, err)
		case err != nil:
			return nil, fmt.Errorf("codec: zstd: %w", err)
		case len(raw) > MaxDecompressedBytes:
			return nil, ErrDecompressedTooLarge
		}
		return raw, nil
	case CompressionLZ4:
		zr := lz4.NewReader(bytes.NewReader(data))
		raw, err := io.ReadAll(io.LimitReader(zr, MaxDecompressedBytes+1))
		if err != nil {
			return nil, fmt.Errorf("codec: lz4: %w", err)
		}
		if len(raw) > MaxDecompressedBytes {
			return nil, ErrDecompressedTooLarge
		}
		return raw, nil
	default:
		return data, nil
	}
}
