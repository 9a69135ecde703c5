package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// New returns the root logger for a binary. Dev environments get the
// human-readable console writer, everything else emits JSON.
func New(service, env string) zerolog.Logger {
	return newLogger(os.Stdout, service, env)
}

func newLogger(out io.Writer, service, env string) zerolog.Logger {
	if env == "dev" {
		out = zerolog.ConsoleWriter{Out: out}
	}
	return zerolog.New(out).With().Timestamp().Str("service", service).Logger()
}
