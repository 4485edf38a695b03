// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package logging builds the zerolog logger shared by every stage.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/texmark/pkg/types"
)

const (
	formatConsole = "console"
	formatJSON    = "json"
)

// New returns a logger writing to w (stderr when nil) at the configured
// level. Unknown levels fall back to info; unknown formats fall back to
// console.
func New(cfg types.LogConfig, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}

	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	out := w
	if !strings.EqualFold(cfg.Format, formatJSON) {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).Level(level).With().Timestamp().Str("service", "texmark").Logger()
}

// Nop returns a disabled logger for callers that do not care about output.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
