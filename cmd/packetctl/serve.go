package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/danmuck/packetio/internal/config"
	"github.com/danmuck/packetio/internal/echo"
	"github.com/danmuck/packetio/internal/observability"
	"github.com/danmuck/packetio/internal/transport"
)

func runServe(args []string, stdout io.Writer) error {
	var common commonFlags
	var async, metrics bool
	var metricsAddr string

	fs := pflag.NewFlagSet("packetctl serve", pflag.ContinueOnError)
	fs.SetOutput(stdout)
	common.register(fs)
	fs.BoolVar(&async, "async", false, "use the context-aware adapter per connection")
	fs.BoolVar(&metrics, "metrics", false, "serve /health and /metrics (overrides config)")
	fs.StringVar(&metricsAddr, "metrics-addr", "", "metrics listen address (overrides config)")
	if help, err := parseFlags(fs, args); help || err != nil {
		return err
	}

	cfg, err := common.load(fs)
	if err != nil {
		return err
	}
	if err := requireEnvelopeCodec(cfg); err != nil {
		return err
	}
	if fs.Changed("metrics") {
		cfg.Metrics.Enabled = metrics
	}
	if fs.Changed("metrics-addr") {
		cfg.Metrics.Addr = metricsAddr
	}
	logger := initLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return serve(ctx, cfg, async, logger)
}

func serve(ctx context.Context, cfg config.Config, async bool, logger zerolog.Logger) error {
	pcfg, err := cfg.PacketConfig()
	if err != nil {
		return err
	}
	if cfg.Metrics.Enabled {
		pcfg.Observer = observability.NewFrameMetrics(cfg.Name)
		stopMetrics, err := startMetrics(cfg, logger)
		if err != nil {
			return err
		}
		defer stopMetrics()
	}

	ln, err := transport.Listen(cfg.TransportConfig())
	if err != nil {
		return err
	}
	srv := echo.NewServer(echo.ServerConfig{
		Packet:       pcfg,
		Async:        async,
		ReadTimeout:  cfg.Transport.ReadTimeout.Std(),
		WriteTimeout: cfg.Transport.WriteTimeout.Std(),
	})
	log.Info().
		Str("addr", ln.Addr().String()).
		Str("codec", pcfg.Codec.Name()).
		Bool("async", async).
		Msg("packetctl serve started")
	err = srv.Serve(ctx, ln)
	log.Info().Uint64("echoed", srv.Echoed()).Msg("packetctl serve stopped")
	return err
}

func startMetrics(cfg config.Config, logger zerolog.Logger) (func(), error) {
	gin.SetMode(gin.ReleaseMode)
	httpSrv := &http.Server{
		Addr:              cfg.Metrics.Addr,
		Handler:           observability.NewMetricsRouter(cfg.Name, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return nil, fmt.Errorf("metrics listen %s: %w", cfg.Metrics.Addr, err)
	case <-time.After(50 * time.Millisecond):
	}
	log.Info().Str("addr", cfg.Metrics.Addr).Msg("packetctl metrics started")

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn().Err(err).Msg("packetctl metrics shutdown")
		}
	}, nil
}
