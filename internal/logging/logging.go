// Package logging configures the daemon's structured logger.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Config controls the base zerolog logger the daemon builds its component
// loggers from.
type Config struct {
	Level   string // "debug", "info", "warn", "error"; defaults to info
	Pretty  bool   // console-writer output instead of JSON, for interactive use
	Service string // attached to every log entry
}

// Configure builds the base logger for Config. Unlike a package-global
// logger, the caller holds the returned value and derives component loggers
// from it with .With().Str("component", ...).Logger() — each Monitor and
// Registry in this process gets its own child, not a shared mutable global.
func Configure(cfg Config) zerolog.Logger {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		if parsed, err := zerolog.ParseLevel(cfg.Level); err == nil {
			level = parsed
		}
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	var writer = os.Stderr
	if cfg.Pretty {
		return zerolog.New(zerolog.ConsoleWriter{Out: writer, TimeFormat: time.Kitchen}).
			With().Timestamp().Str("service", cfg.Service).Logger()
	}
	return zerolog.New(writer).With().Timestamp().Str("service", cfg.Service).Logger()
}
