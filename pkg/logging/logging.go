// Package logging configures the global zerolog logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hostscan/hostscan/pkg/config"
)

// Level resolves the effective level: the more verbose of the configured
// level and the CLI verbosity. verbose forces debug; otherwise a count of 0
// means error, 1 info and 2 or more debug.
func Level(configured string, verbosity int, verbose bool) zerolog.Level {
	if verbose {
		return zerolog.DebugLevel
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(configured))
	if err != nil || configured == "" {
		lvl = zerolog.ErrorLevel
	}

	var fromFlags zerolog.Level
	switch {
	case verbosity <= 0:
		fromFlags = zerolog.ErrorLevel
	case verbosity == 1:
		fromFlags = zerolog.InfoLevel
	default:
		fromFlags = zerolog.DebugLevel
	}
	return min(lvl, fromFlags)
}

// Setup installs the global logger writing to stderr, or to cfg.File when
// set. The returned closer releases the log file and is never nil.
func Setup(cfg config.LogConfig, level zerolog.Level, stderr io.Writer) (io.Closer, error) {
	var (
		out    io.Writer = stderr
		closer io.Closer = io.NopCloser(nil)
	)
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return closer, fmt.Errorf("open log file: %w", err)
		}
		out, closer = f, f
	}

	switch cfg.Format {
	case "json":
	case "", "text":
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339, NoColor: cfg.File != ""}
	default:
		_ = closer.Close()
		return io.NopCloser(nil), fmt.Errorf("unsupported log format %q", cfg.Format)
	}

	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	return closer, nil
}
