// Copyright (c) OscarVanL
// SPDX-License-Identifier: Apache-2.0

// Package logger provides a structured logger built on log/slog.
package logger

import (
	"errors"
	"io"
	"log/slog"
)

var errInvalidLogLevel = errors.New("unrecognized log level")

// New returns a JSON slog logger writing to w, filtered at the given
// textual level (debug, info, warn, error).
func New(w io.Writer, levelText string) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(levelText)); err != nil {
		return &slog.Logger{}, errors.Join(errInvalidLogLevel, err)
	}

	logHandler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})

	return slog.New(logHandler), nil
}
