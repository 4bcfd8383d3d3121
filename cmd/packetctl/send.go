package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/danmuck/packetio/internal/config"
	"github.com/danmuck/packetio/internal/echo"
)

func runSend(args []string, stdout io.Writer) error {
	var common commonFlags
	var count, size int
	var body string

	fs := pflag.NewFlagSet("packetctl send", pflag.ContinueOnError)
	fs.SetOutput(stdout)
	common.register(fs)
	fs.IntVarP(&count, "count", "n", 10, "envelopes to send")
	fs.IntVar(&size, "size", 0, "body size in bytes when --body is not set")
	fs.StringVar(&body, "body", "", "literal body for every envelope")
	if help, err := parseFlags(fs, args); help || err != nil {
		return err
	}
	if count <= 0 {
		return fmt.Errorf("--count must be positive")
	}
	if size < 0 {
		return fmt.Errorf("--size must not be negative")
	}

	cfg, err := common.load(fs)
	if err != nil {
		return err
	}
	if err := requireEnvelopeCodec(cfg); err != nil {
		return err
	}
	initLogging(cfg)

	payload := []byte(body)
	if !fs.Changed("body") && size > 0 {
		payload = bytes.Repeat([]byte{'x'}, size)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return send(ctx, cfg, count, payload, stdout)
}

func send(ctx context.Context, cfg config.Config, count int, body []byte, stdout io.Writer) error {
	pcfg, err := cfg.PacketConfig()
	if err != nil {
		return err
	}
	client, err := echo.Dial(ctx, cfg.TransportConfig(), pcfg)
	if err != nil {
		return err
	}
	defer client.Close()

	log.Debug().Str("addr", cfg.Transport.Addr).Int("count", count).Msg("packetctl send started")
	stats, err := client.Run(ctx, count, body)
	fmt.Fprintf(stdout, "codec=%s sent=%d received=%d rtt_min=%s rtt_mean=%s rtt_max=%s\n",
		pcfg.Codec.Name(), stats.Sent, stats.Received, stats.MinRTT, stats.MeanRTT(), stats.MaxRTT)
	return err
}
