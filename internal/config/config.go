package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/danmuck/packetio/internal/logging"
	"github.com/danmuck/packetio/internal/protocol/codec"
	"github.com/danmuck/packetio/internal/protocol/frame"
)

// Config is the file-level configuration shared by packetctl commands.
type Config struct {
	Name      string          `toml:"name" yaml:"name"`
	Transport TransportConfig `toml:"transport" yaml:"transport"`
	Codec     CodecConfig     `toml:"codec" yaml:"codec"`
	Metrics   MetricsConfig   `toml:"metrics" yaml:"metrics"`
	Log       LogConfig       `toml:"log" yaml:"log"`
}

type TransportConfig struct {
	Network        string        `toml:"network" yaml:"network"`
	Addr           string        `toml:"addr" yaml:"addr"`
	ConnectTimeout Duration      `toml:"connect_timeout" yaml:"connect_timeout"`
	ReadTimeout    Duration      `toml:"read_timeout" yaml:"read_timeout"`
	WriteTimeout   Duration      `toml:"write_timeout" yaml:"write_timeout"`
	MaxAttempts    int           `toml:"max_attempts" yaml:"max_attempts"`
	Backoff        BackoffConfig `toml:"backoff" yaml:"backoff"`
}

type BackoffConfig struct {
	InitialDelay Duration `toml:"initial_delay" yaml:"initial_delay"`
	Multiplier   float64  `toml:"multiplier" yaml:"multiplier"`
	MaxDelay     Duration `toml:"max_delay" yaml:"max_delay"`
	Jitter       bool     `toml:"jitter" yaml:"jitter"`
}

// CodecConfig selects the payload codec. MaxPayloadBytes of 0 lifts the
// frame size cap.
type CodecConfig struct {
	Name            string `toml:"name" yaml:"name"`
	Compression     string `toml:"compression" yaml:"compression"`
	MaxPayloadBytes uint32 `toml:"max_payload_bytes" yaml:"max_payload_bytes"`
}

type MetricsConfig struct {
	Enabled bool   `toml:"enabled" yaml:"enabled"`
	Addr    string `toml:"addr" yaml:"addr"`
}

type LogConfig struct {
	Level string `toml:"level" yaml:"level"`
}

// Format is a config file encoding.
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// FormatOf picks the encoding from a file extension. Unknown extensions
// are read as TOML.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatTOML
	}
}

func Default() Config {
	return Config{
		Name: "packetctl",
		Transport: TransportConfig{
			Network:        "tcp",
			Addr:           "127.0.0.1:9400",
			ConnectTimeout: Duration(5 * time.Second),
			ReadTimeout:    Duration(15 * time.Second),
			WriteTimeout:   Duration(15 * time.Second),
			MaxAttempts:    5,
			Backoff: BackoffConfig{
				InitialDelay: Duration(250 * time.Millisecond),
				Multiplier:   2.0,
				MaxDelay:     Duration(5 * time.Second),
				Jitter:       true,
			},
		},
		Codec: CodecConfig{
			Name:            "cbor",
			Compression:     string(codec.CompressionNone),
			MaxPayloadBytes: frame.DefaultLimits().MaxPayloadBytes,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9401",
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	cfg, err := Parse(data, FormatOf(path))
	if err != nil {
		return Config{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return cfg, nil
}

// Parse decodes data over the defaults. Keys absent from data keep their
// default values.
func Parse(data []byte, format Format) (Config, error) {
	cfg := Default()
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && len(bytes.TrimSpace(data)) > 0 {
			return Config{}, err
		}
	default:
		md, err := toml.Decode(string(data), &cfg)
		if err != nil {
			return Config{}, err
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return Config{}, fmt.Errorf("unknown key %q", undecoded[0].String())
		}
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("config missing name")
	}
	switch cfg.Transport.Network {
	case "tcp", "tcp4", "tcp6", "unix":
	default:
		return fmt.Errorf("transport.network %q unsupported", cfg.Transport.Network)
	}
	if strings.TrimSpace(cfg.Transport.Addr) == "" {
		return fmt.Errorf("transport.addr is required")
	}
	if cfg.Transport.Backoff.Multiplier < 0 {
		return fmt.Errorf("transport.backoff.multiplier must not be negative")
	}
	if _, err := codec.ByName(cfg.Codec.Name); err != nil {
		return fmt.Errorf("codec.name: %w", err)
	}
	if _, err := codec.ParseCompression(cfg.Codec.Compression); err != nil {
		return fmt.Errorf("codec.compression: %w", err)
	}
	if cfg.Metrics.Enabled && strings.TrimSpace(cfg.Metrics.Addr) == "" {
		return fmt.Errorf("metrics.addr required when metrics are enabled")
	}
	if _, ok := logging.ParseLevel(cfg.Log.Level); !ok {
		return fmt.Errorf("log.level %q unknown", cfg.Log.Level)
	}
	return nil
}

// Encode renders cfg in the given format.
func Encode(cfg Config, format Format) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
	default:
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
