// Package logging configures the process-wide zerolog logger for batch
// runs: human-readable console output on a terminal, JSON for the
// scheduler's log collector otherwise.
package logging

import (
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// Setup builds the root logger. level accepts the usual zerolog names
// (debug, info, warn, error); anything unrecognized falls back to info.
func Setup(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if isatty.IsTerminal(os.Stderr.Fd()) {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(lvl).With().Timestamp().Logger()
}

// RunID returns a short correlation id tying all lines of one run
// together. Eight characters of a UUID keep the logs readable.
func RunID() string {
	return uuid.New().String()[:8]
}
