package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/danmuck/packetio/internal/config"
	"github.com/danmuck/packetio/internal/logging"
	"github.com/danmuck/packetio/internal/observability"
)

// commonFlags override values loaded from --config.
type commonFlags struct {
	configPath  string
	addr        string
	codecName   string
	compression string
	maxPayload  uint32
	logLevel    string
}

func (f *commonFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.configPath, "config", "c", "", "config file (.toml, .yaml or .yml)")
	fs.StringVarP(&f.addr, "addr", "a", "", "transport address (overrides config)")
	fs.StringVar(&f.codecName, "codec", "", "payload codec: cbor|msgpack|json|tlv (binary for inspect only)")
	fs.StringVar(&f.compression, "compression", "", "payload compression: none|zstd|lz4")
	fs.Uint32Var(&f.maxPayload, "max-payload", 0, "largest accepted payload in bytes, 0 for no cap")
	fs.StringVar(&f.logLevel, "log-level", "", "log level: trace|debug|info|warn|error|off")
}

// load builds the effective config: defaults, then the file, then
// PACKETIO_LOG_LEVEL, then any flags the user set explicitly.
func (f *commonFlags) load(fs *pflag.FlagSet) (config.Config, error) {
	cfg := config.Default()
	if f.configPath != "" {
		loaded, err := config.Load(f.configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}
	if level, ok := logging.EnvLevel(); ok {
		cfg.Log.Level = level.String()
	}
	if fs.Changed("addr") {
		cfg.Transport.Addr = f.addr
	}
	if fs.Changed("codec") {
		cfg.Codec.Name = f.codecName
	}
	if fs.Changed("compression") {
		cfg.Codec.Compression = f.compression
	}
	if fs.Changed("max-payload") {
		cfg.Codec.MaxPayloadBytes = f.maxPayload
	}
	if fs.Changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if err := config.Validate(cfg); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// errBinaryEnvelope rejects the binary codec for serve and send.
var errBinaryEnvelope = errors.New("codec binary cannot carry echo envelopes; use cbor, msgpack, json or tlv")

// requireEnvelopeCodec fails fast on codecs that cannot encode an
// echo.Envelope, instead of erroring on every frame.
func requireEnvelopeCodec(cfg config.Config) error {
	if strings.EqualFold(strings.TrimSpace(cfg.Codec.Name), "binary") {
		return errBinaryEnvelope
	}
	return nil
}

// initLogging tags the runtime logger and applies the effective level.
func initLogging(cfg config.Config) zerolog.Logger {
	logging.ConfigureRuntime()
	logger := observability.InitLogger(cfg.Name)
	if level, ok := logging.ParseLevel(cfg.Log.Level); ok {
		zerolog.SetGlobalLevel(level)
	}
	return logger
}

func parseFlags(fs *pflag.FlagSet, args []string) (bool, error) {
	if err := fs.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return true, nil
		}
		return false, err
	}
	if fs.NArg() > 0 {
		return false, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return false, nil
}
