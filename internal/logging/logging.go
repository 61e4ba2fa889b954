// Package logging builds the zerolog logger shared by the CLI, the pipeline
// and the dashboard server.
package logging

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/TobiSchelling/nexuscds/internal/config"
)

// New returns a logger writing to w at the configured level. verbose forces
// debug output regardless of the configured level.
func New(cfg config.Logging, verbose bool, w io.Writer) (zerolog.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), err
	}
	if verbose {
		level = zerolog.DebugLevel
	}

	out := w
	switch strings.ToLower(cfg.Format) {
	case "", "console":
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.DateTime}
	case "json":
	default:
		return zerolog.Nop(), fmt.Errorf("unknown log format %q (console, json)", cfg.Format)
	}

	ctx := zerolog.New(out).Level(level).With().Timestamp()
	if verbose {
		ctx = ctx.Caller()
	}
	return ctx.Logger(), nil
}

// parseLevel accepts zerolog names as well as the upper-case forms used in
// config files ("INFO", "WARNING").
func parseLevel(s string) (zerolog.Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "":
		return zerolog.InfoLevel, nil
	case "warning":
		s = "warn"
	}
	level, err := zerolog.ParseLevel(s)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}
