// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"log/slog"
	"os"

	"golang.org/x/term"
)

// NewCommandLogger creates the structured logger for command
// operations. When stderr is a terminal the output is human-readable
// text; when piped or redirected (scripts, CI) it switches to JSON.
// Setting RELIQUARY_DEBUG to any non-empty value lowers the level to
// Debug.
//
// Commands scope the logger with context via With():
//
//	logger := cli.NewCommandLogger().With("command", "rollover",
//	    "bundle", path)
func NewCommandLogger() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("RELIQUARY_DEBUG") != "" {
		level = slog.LevelDebug
	}

	var handler slog.Handler
	options := &slog.HandlerOptions{Level: level}
	if term.IsTerminal(int(os.Stderr.Fd())) {
		handler = slog.NewTextHandler(os.Stderr, options)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, options)
	}
	return slog.New(handler)
}
