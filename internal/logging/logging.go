// Package logging wires the process-wide slog default logger to a
// devlog handler, matching the teacher server's init-time logging setup.
package logging

import (
	"log/slog"
	"os"

	"hermannm.dev/devlog"
)

// Level is the shared level toggle; Init binds it to the default logger so
// that later calls to Level.Set adjust verbosity in place.
var Level slog.LevelVar

// Init installs a devlog-backed slog.Logger as the process default. Call
// once at startup, before any other package logs.
func Init(debug bool) {
	if debug {
		Level.Set(slog.LevelDebug)
	}
	slog.SetDefault(slog.New(devlog.NewHandler(os.Stdout, &devlog.Options{
		Level: &Level,
	})))
}
