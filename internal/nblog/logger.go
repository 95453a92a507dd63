// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package nblog builds the structured logger fiberpc's binaries and
// server engines share, and tags engine-scoped child loggers so every
// line one engine emits carries the same transport attributes.
package nblog

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Options selects the logger's level, output format, and destination.
// The zero value is info-level JSON on stdout.
type Options struct {
	Level  string // "debug", "info", "warn", "error"; default "info"
	Format string // "json" (default) or "text"
	File   string // append to this path instead of stdout when set
}

// New builds a slog.Logger from opts. When opts.File is set, log
// output goes to that file alone — stdout stays clean for command
// output, like the response payload fiberpc-echo's call subcommand
// prints — and the returned io.Closer releases it on shutdown. With no
// file, output goes to stdout and the Closer is a no-op.
func New(opts Options) (*slog.Logger, io.Closer, error) {
	var level slog.Level
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
			return nil, nil, fmt.Errorf("nblog: log level %q: %w", opts.Level, err)
		}
	}

	var w io.Writer = os.Stdout
	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("nblog: opening log file: %w", err)
		}
		w = f
		closer = f
	}

	hopts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if opts.Format == "text" {
		handler = slog.NewTextHandler(w, hopts)
	} else {
		handler = slog.NewJSONHandler(w, hopts)
	}

	return slog.New(handler), closer, nil
}

// Engine returns a child logger tagged with a server engine's
// transport and bound address, so a process running several engines at
// once (fiberpc-echo serve can run all three) keeps their log lines
// attributable.
func Engine(l *slog.Logger, transport, addr string) *slog.Logger {
	return l.With("transport", transport, "addr", addr)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
