package main

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/danmuck/packetio/internal/protocol/codec"
	"github.com/danmuck/packetio/internal/protocol/frame"
	"github.com/danmuck/packetio/internal/protocol/tlv"
)

// hexPreview bounds how much of an undecodable payload is dumped.
const hexPreview = 64

func runInspect(args []string, stdin io.Reader, stdout io.Writer) error {
	var common commonFlags
	var path string

	fs := pflag.NewFlagSet("packetctl inspect", pflag.ContinueOnError)
	fs.SetOutput(stdout)
	common.register(fs)
	fs.StringVarP(&path, "file", "f", "-", "frame stream to read, - for stdin")
	if help, err := parseFlags(fs, args); help || err != nil {
		return err
	}
	cfg, err := common.load(fs)
	if err != nil {
		return err
	}
	pcfg, err := cfg.PacketConfig()
	if err != nil {
		return err
	}

	in := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	return inspect(bufio.NewReader(in), pcfg.Codec, pcfg.Limits, stdout)
}

// inspect prints one line per frame until a clean end of stream.
func inspect(r io.Reader, c codec.Codec, limits frame.Limits, stdout io.Writer) error {
	for n := 0; ; n++ {
		payload, err := frame.ReadFrame(r, limits)
		if errors.Is(err, io.EOF) {
			fmt.Fprintf(stdout, "%d frame(s)\n", n)
			return nil
		}
		if err != nil {
			return fmt.Errorf("frame %d: %w", n, err)
		}
		fmt.Fprintf(stdout, "frame %d: length=%d %s\n", n, len(payload), describe(payload, c))
	}
}

func describe(payload []byte, c codec.Codec) string {
	if len(payload) == 0 {
		return "empty"
	}
	switch c.Name() {
	case "cbor":
		if diag, err := codec.Diagnose(payload); err == nil {
			return diag
		}
	case "tlv":
		if fields, err := tlv.DecodeFields(payload); err == nil {
			parts := make([]string, 0, len(fields))
			for _, f := range fields {
				parts = append(parts, fmt.Sprintf("%d:t%d:%dB", f.ID, f.Type, len(f.Value)))
			}
			return "tlv{" + strings.Join(parts, " ") + "}"
		}
	default:
		var v any
		if err := c.Unmarshal(payload, &v); err == nil {
			return fmt.Sprintf("%v", v)
		}
	}
	return "undecoded " + hex.EncodeToString(payload[:min(len(payload), hexPreview)])
}
