package log

import (
	"io"
	"os"

	"github.com/YuminosukeSato/treepredict/pkg/errors"
)

// SetupLogger installs a zerolog provider writing JSON lines to stderr and
// routes pkg/errors warnings through it.
func SetupLogger(loglevel string) error {
	return SetupLoggerWithWriter(os.Stderr, loglevel)
}

// SetupLoggerWithWriter is SetupLogger with an explicit destination.
func SetupLoggerWithWriter(w io.Writer, loglevel string) error {
	level, err := ToLogLevel(loglevel)
	if err != nil {
		return err
	}
	SetProvider(NewZerologProvider(w, level))
	errors.SetZerologWarnFunc(func(warning error) {
		GetLoggerWithName("warnings").Warn(warning.Error(), "warning", warning)
	})
	return nil
}

// ToLogLevel parses a level name.
func ToLogLevel(level string) (Level, error) {
	switch level {
	case "info", "":
		return LevelInfo, nil
	case "debug":
		return LevelDebug, nil
	case "warn":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, errors.NewValidationError("log_level", "must be one of debug, info, warn, error", level)
	}
}
