package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/packetio/internal/testutil/testlog"
)

func TestTemplatesParseAndValidate(t *testing.T) {
	testlog.Start(t)
	for _, kind := range []string{"server", "client"} {
		for _, format := range []Format{FormatTOML, FormatYAML} {
			tmpl, err := Template(kind, format)
			if err != nil {
				t.Fatalf("template %s/%s: %v", kind, format, err)
			}
			cfg, err := Parse([]byte(tmpl), format)
			if err != nil {
				t.Fatalf("parse %s/%s: %v", kind, format, err)
			}
			if !strings.HasPrefix(cfg.Name, "packetctl-") {
				t.Fatalf("unexpected name %q", cfg.Name)
			}
		}
	}
}

func TestTOMLAndYAMLAgree(t *testing.T) {
	testlog.Start(t)
	fromTOML, err := Parse([]byte(clientTemplates[FormatTOML]), FormatTOML)
	if err != nil {
		t.Fatalf("parse toml: %v", err)
	}
	fromYAML, err := Parse([]byte(clientTemplates[FormatYAML]), FormatYAML)
	if err != nil {
		t.Fatalf("parse yaml: %v", err)
	}
	if fromTOML != fromYAML {
		t.Fatalf("formats disagree:\ntoml=%+v\nyaml=%+v", fromTOML, fromYAML)
	}
	if fromTOML.Transport.Backoff.InitialDelay.Std() != 250*time.Millisecond {
		t.Fatalf("unexpected backoff initial delay %v", fromTOML.Transport.Backoff.InitialDelay)
	}
}

func TestParseKeepsDefaultsForMissingKeys(t *testing.T) {
	testlog.Start(t)
	cfg, err := Parse([]byte("name = \"partial\"\n"), FormatTOML)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	def := Default()
	if cfg.Transport != def.Transport || cfg.Codec != def.Codec {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}

func TestParseRejectsBadInput(t *testing.T) {
	testlog.Start(t)
	cases := map[string]string{
		"unknown key":   "name = \"x\"\nbogus = 1\n",
		"codec":         "[codec]\nname = \"protobuf\"\n",
		"compression":   "[codec]\ncompression = \"gzip\"\n",
		"network":       "[transport]\nnetwork = \"udp\"\n",
		"duration":      "[transport]\nread_timeout = \"soon\"\n",
		"log level":     "[log]\nlevel = \"loud\"\n",
		"metrics addr":  "[metrics]\nenabled = true\naddr = \"\"\n",
		"empty address": "[transport]\naddr = \"\"\n",
	}
	for name, raw := range cases {
		if _, err := Parse([]byte(raw), FormatTOML); err == nil {
			t.Fatalf("%s: expected parse error", name)
		}
	}
	if _, err := Parse([]byte("codec:\n  bogus: 1\n"), FormatYAML); err == nil {
		t.Fatalf("yaml unknown field: expected parse error")
	}
}

func TestWriteTemplateAndLoad(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	for _, name := range []string{"server.toml", "server.yaml"} {
		path := filepath.Join(dir, name)
		if err := WriteTemplate(path, "server", false); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		if err := WriteTemplate(path, "server", false); err == nil {
			t.Fatalf("write %s: expected refusal to overwrite", name)
		}
		if err := WriteTemplate(path, "server", true); err != nil {
			t.Fatalf("overwrite %s: %v", name, err)
		}
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("load %s: %v", name, err)
		}
		if !cfg.Metrics.Enabled {
			t.Fatalf("%s: metrics should be enabled", name)
		}
	}
	if _, err := Load(filepath.Join(dir, "missing.toml")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	testlog.Start(t)
	cfg := Default()
	cfg.Codec.Compression = "lz4"
	cfg.Transport.ReadTimeout = Duration(42 * time.Second)
	for _, format := range []Format{FormatTOML, FormatYAML} {
		raw, err := Encode(cfg, format)
		if err != nil {
			t.Fatalf("encode %s: %v", format, err)
		}
		got, err := Parse(raw, format)
		if err != nil {
			t.Fatalf("parse %s: %v\n%s", format, err, raw)
		}
		if got != cfg {
			t.Fatalf("%s round trip mismatch: got=%+v want=%+v", format, got, cfg)
		}
	}
}

func TestConversions(t *testing.T) {
	testlog.Start(t)
	cfg := Default()
	cfg.Codec.Name = "msgpack"
	cfg.Codec.Compression = "zstd"
	cfg.Codec.MaxPayloadBytes = 0
	pc, err := cfg.PacketConfig()
	if err != nil {
		t.Fatalf("packet config: %v", err)
	}
	if pc.Codec.Name() != "msgpack+zstd" {
		t.Fatalf("unexpected codec %q", pc.Codec.Name())
	}
	if !pc.Limits.Allows(1 << 31) {
		t.Fatalf("zero max_payload_bytes should lift the cap")
	}
	tc := cfg.TransportConfig()
	if tc.Address != cfg.Transport.Addr || tc.ReadTimeout != 15*time.Second {
		t.Fatalf("unexpected transport config %+v", tc)
	}
	if err := tc.Validate(); err != nil {
		t.Fatalf("transport config invalid: %v", err)
	}
}
