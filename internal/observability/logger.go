package observability

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger tags the process logger with app and installs it on
// log.Logger. Call logging.ConfigureRuntime first so the console writer,
// timestamps and env overrides are already in place. Output goes to stderr
// so command results on stdout stay parseable.
func InitLogger(app string) zerolog.Logger {
	logger := log.Logger.With().Str("app", app).Logger()
	log.Logger = logger
	return logger
}
