package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/danmuck/packetio/internal/config"
	"github.com/danmuck/packetio/internal/logging"
	"github.com/danmuck/packetio/internal/observability"
)

func main() {
	logging.ConfigureRuntime()
	observability.InitLogger("configgen")

	fs := pflag.NewFlagSet("configgen", pflag.ExitOnError)
	kind := fs.StringP("kind", "k", "server", "config kind: server|client")
	output := fs.StringP("output", "o", "", "output path for config template (.toml, .yaml or .yml)")
	validate := fs.Bool("validate", false, "validate an existing config file")
	input := fs.StringP("input", "i", "", "config path for validation (defaults to the per-kind path)")
	force := fs.Bool("force", false, "overwrite existing config file")
	_ = fs.Parse(os.Args[1:])

	if *validate {
		path := *input
		if path == "" {
			path = defaultPath(*kind)
		}
		cfg, err := config.Load(path)
		if err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("config invalid")
		}
		log.Info().Str("path", path).Str("name", cfg.Name).Msg("config valid")
		return
	}

	target := *output
	if target == "" {
		target = defaultPath(*kind)
	}
	if err := config.WriteTemplate(target, *kind, *force); err != nil {
		log.Fatal().Err(err).Msg("write template failed")
	}
	log.Info().Str("kind", *kind).Str("path", target).Msg("wrote config template")
}

func defaultPath(kind string) string {
	return fmt.Sprintf("cmd/packetctl/%s.toml", kind)
}
