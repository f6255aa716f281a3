// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package logging configures the global zerolog logger. Logs go to stderr;
// stdout carries only command output.
package logging

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pdiddy/dataset-fetcher/pkg/types"
)

// New builds a logger writing to w according to cfg.
func New(w io.Writer, cfg types.LogConfig) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		l, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		level = l
	}

	var out io.Writer
	switch types.LogFormat(strings.ToLower(string(cfg.Format))) {
	case types.LogJSON:
		out = w
	case types.LogConsole, "":
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	default:
		return zerolog.Nop(), fmt.Errorf("invalid log format %q", cfg.Format)
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}

// Setup installs a logger built from cfg as the global log.Logger.
func Setup(w io.Writer, cfg types.LogConfig) error {
	l, err := New(w, cfg)
	if err != nil {
		return err
	}
	log.Logger = l
	return nil
}
