// Package logger builds the structured logger shared by every component.
// Output goes to stderr so command output on stdout stays machine readable.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// Options controls logger construction
type Options struct {
	Level   string
	Verbose bool
	Quiet   bool
	Output  io.Writer
}

// New creates a logger. Verbose forces debug, quiet forces error.
func New(opts Options) *log.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	l := log.NewWithOptions(out, log.Options{
		ReportTimestamp: opts.Verbose,
		Prefix:          "cenly",
	})
	l.SetLevel(Level(opts))
	return l
}

// Level resolves the effective level from flags and the configured name
func Level(opts Options) log.Level {
	switch {
	case opts.Verbose:
		return log.DebugLevel
	case opts.Quiet:
		return log.ErrorLevel
	}
	switch strings.ToLower(strings.TrimSpace(opts.Level)) {
	case "debug":
		return log.DebugLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// Discard returns a logger that drops everything, for tests and library callers
func Discard() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

// OrDiscard returns l, or a discarding logger when l is nil
func OrDiscard(l *log.Logger) *log.Logger {
	if l == nil {
		return Discard()
	}
	return l
}
