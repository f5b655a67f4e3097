package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/nerrad567/ctlremap/internal/infrastructure/config"
)

// serviceName tags every log entry so aggregated logs from several
// daemons stay attributable.
const serviceName = "ctlremap"

// Logger is the daemon's logger: slog with the service defaults
// attached. The zero value is not usable; build one with New or
// Default. Safe for concurrent use, like the slog.Logger it embeds.
type Logger struct {
	*slog.Logger
}

// New builds a logger from the logging section of config.yaml. Format
// picks the handler (json for machines, text for eyeballs), level
// filters, and output selects stdout or stderr. Every entry carries
// service and version fields.
func New(cfg config.LoggingConfig, version string) *Logger {
	var output io.Writer = os.Stdout
	if strings.ToLower(cfg.Output) == "stderr" {
		output = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "text" {
		handler = slog.NewTextHandler(output, opts)
	} else {
		handler = slog.NewJSONHandler(output, opts)
	}

	base := slog.New(handler).With(
		"service", serviceName,
		"version", version,
	)
	return &Logger{Logger: base}
}

// parseLevel maps a config string to a slog.Level. Unrecognised input,
// including the empty string ahead of config load, means info.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// With returns a child logger carrying extra default attributes. The
// daemon hands each component its own:
//
//	provider.SetLogger(logger.With("component", "memctl"))
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Default is the early-startup logger, used before config.yaml has been
// read: JSON to stdout at info level, version "dev".
func Default() *Logger {
	return New(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}, "dev")
}
