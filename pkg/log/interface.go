// Package log provides a structured logging interface for treepredict.
//
// This package defines a minimal, slog-compatible logging interface with a
// zerolog-backed implementation. Only the outer layers log: the evaluation
// facade, the model cache and the command-line tool. The stack machine and
// the tree evaluators never log, they run per row.
//
// Key features:
//   - slog-compatible interface
//   - inference-specific structured attributes (model id, model type, operation)
//   - Context-aware logging with field chaining
//   - Test-friendly capture through TestLogger
//
// Example usage:
//
//	logger := log.GetLoggerWithName("treepredict.cache").With(
//	    log.ModelIDKey, "model_id#1",
//	    log.ModelTypeKey, "opcode",
//	)
//	logger.Debug("Model compiled",
//	    log.OperationKey, log.OperationCompile,
//	    log.InstructionsKey, 9,
//	)
package log

import (
	"context"
)

// Logger defines a structured logging interface compatible with Go's log/slog.
//
// The interface supports method chaining through the With method, allowing
// for creation of contextual loggers with pre-populated fields.
type Logger interface {
	// Debug logs a debug-level message with optional structured fields.
	//
	// Example:
	//   logger.Debug("Script parsed",
	//       log.InstructionsKey, 11,
	//   )
	Debug(msg string, fields ...any)

	// Info logs an info-level message with optional structured fields.
	Info(msg string, fields ...any)

	// Warn logs a warning-level message with optional structured fields.
	// Warnings indicate situations that don't prevent inference, such as a
	// legacy model decoded without checksum verification.
	Warn(msg string, fields ...any)

	// Error logs an error-level message with optional structured fields.
	// If an error value is passed as a field value, its stack trace (when
	// created through pkg/errors) is attached under StacktraceKey.
	//
	// Example:
	//   logger.Error("Prediction failed",
	//       "error", err,
	//       log.ModelIDKey, id,
	//   )
	Error(msg string, fields ...any)

	// With returns a new Logger with the given fields pre-populated.
	With(fields ...any) Logger

	// Enabled reports whether the logger emits log records at the given level.
	Enabled(ctx context.Context, level Level) bool
}

// Level represents a logging level, compatible with slog.Level.
type Level int

// Standard logging levels, values are compatible with slog.Level.
const (
	LevelDebug Level = -4 // Detailed diagnostic information
	LevelInfo  Level = 0  // General operational information
	LevelWarn  Level = 4  // Warning conditions
	LevelError Level = 8  // Error conditions
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// LoggerProvider defines an interface for creating and configuring loggers.
// This interface allows for dependency injection and testing with different
// logger implementations.
type LoggerProvider interface {
	// GetLogger returns the default logger instance.
	GetLogger() Logger

	// GetLoggerWithName returns a logger with a specific name/component identifier.
	GetLoggerWithName(name string) Logger

	// SetLevel sets the minimum log level for all loggers created by this provider.
	SetLevel(level Level)
}
