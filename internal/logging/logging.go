// Package logging configures log/slog for sysinfo.
//
// Logs are JSON on stderr so stdout stays reserved for the report. Every
// record carries the module name and version; debug records also carry
// their source location.
//
//	logging.SetDefaultStructuredLoggerWithWriter(os.Stderr, "sysinfo", version, "debug")
//	slog.Debug("reader finished", "field", "GPU Info")
package logging

import (
	"io"
	"log/slog"
	"strings"
)

// ParseLogLevel converts a case-insensitive level name to a slog.Level.
// Unknown names map to Info.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newStructuredLogger(w io.Writer, module, version, level string) *slog.Logger {
	lvl := ParseLogLevel(level)
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl <= slog.LevelDebug,
	})
	return slog.New(handler).With(
		slog.String("module", module),
		slog.String("version", version),
	)
}

// SetDefaultStructuredLoggerWithWriter installs the default logger writing
// JSON records at level to w.
func SetDefaultStructuredLoggerWithWriter(w io.Writer, module, version, level string) {
	slog.SetDefault(newStructuredLogger(w, module, version, level))
}
