package logging

import (
	"log/slog"

	"github.com/google/uuid"
)

// EnableTrace switches on very verbose logging (payload sizes, per-candidate scores).
// It is set when a log level of TRACE is configured.
var EnableTrace = false

// Trace logs a message at DEBUG level, but only if EnableTrace is true.
func Trace(logger *slog.Logger, msg string, args ...any) {
	if EnableTrace {
		logger.Debug(msg, args...)
	}
}

// WithTrace returns a logger tagged with a fresh trace ID so all log lines of one
// orchestration can be correlated.
func WithTrace(logger *slog.Logger) (*slog.Logger, string) {
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.NewString()
	return logger.With("trace", id[:8]), id
}
