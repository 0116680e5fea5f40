// Package clog provides the engine's structured logging setup.
//
// Cottontail DB has no process of its own (the CLI and server are
// external collaborators), so this package only configures a global
// zerolog.Logger and hands out component-scoped children; it never
// calls os.Exit or reads flags.
package clog

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the global logger instance used by every internal package
// through WithComponent. It defaults to a console writer on stderr so
// the engine is never silent before Init is called; until Init sets a
// level, zerolog's global default (debug) applies.
var Logger zerolog.Logger

// Level names accepted by Config.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config configures the global logger.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

func init() {
	Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()
}

// Init (re)configures the global logger. Safe to call once at process
// start. The level it sets applies everywhere, but internal packages
// build their component loggers from Logger at package initialisation,
// so they keep the default output and format; a new Output or
// JSONOutput reaches only loggers obtained through WithComponent after
// Init returns.
func Init(cfg Config) {
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	if cfg.JSONOutput {
		Logger = zerolog.New(output).With().Timestamp().Logger()
	} else {
		Logger = zerolog.New(zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}).
			With().Timestamp().Logger()
	}
}

// WithComponent returns a child logger tagged with the given component
// name, e.g. "disk-manager", "buffer-pool", "entity".
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}
