// Package log provides structured logging setup shared by the library and
// the CLI.
package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Format selects the log output format.
type Format string

// Format values.
const (
	FormatPretty Format = "pretty"
	FormatJSON   Format = "json"
)

// NewLogger creates a logger writing to stdout in the given format at the
// given level.
func NewLogger(format Format, level string) *slog.Logger {
	return NewLoggerWithWriter(os.Stdout, format, level)
}

// NewLoggerWithWriter creates a logger that writes to the specified writer.
func NewLoggerWithWriter(w io.Writer, format Format, level string) *slog.Logger {
	lvl := ParseLevel(level)

	var handler slog.Handler
	switch format {
	case FormatJSON:
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	default:
		handler = newTerminalHandler(w, &slog.HandlerOptions{Level: lvl})
	}

	return slog.New(handler)
}

// ParseLevel converts a level name to an slog.Level, defaulting to Info.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
