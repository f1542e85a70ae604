package log

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ZerologLogger implements Logger on top of zerolog.
//
// Loggers derived with With share the level of the provider that created
// them, so SetLevel on the provider applies to every derived logger.
type ZerologLogger struct {
	zl    zerolog.Logger
	level *atomic.Int32
}

// NewZerologLogger creates a JSON logger writing to w at the given level.
func NewZerologLogger(w io.Writer, level Level) *ZerologLogger {
	lv := &atomic.Int32{}
	lv.Store(int32(level))
	return &ZerologLogger{
		zl:    zerolog.New(w).With().Timestamp().Logger(),
		level: lv,
	}
}

// Debug implements Logger.Debug.
func (l *ZerologLogger) Debug(msg string, fields ...any) {
	if l.enabled(LevelDebug) {
		emit(l.zl.Debug(), msg, fields)
	}
}

// Info implements Logger.Info.
func (l *ZerologLogger) Info(msg string, fields ...any) {
	if l.enabled(LevelInfo) {
		emit(l.zl.Info(), msg, fields)
	}
}

// Warn implements Logger.Warn.
func (l *ZerologLogger) Warn(msg string, fields ...any) {
	if l.enabled(LevelWarn) {
		emit(l.zl.Warn(), msg, fields)
	}
}

// Error implements Logger.Error.
func (l *ZerologLogger) Error(msg string, fields ...any) {
	if l.enabled(LevelError) {
		emit(l.zl.Error(), msg, fields)
	}
}

// With implements Logger.With.
func (l *ZerologLogger) With(fields ...any) Logger {
	ctx := l.zl.With()
	for i := 0; i+1 < len(fields); i += 2 {
		key := fmt.Sprintf("%v", fields[i])
		switch v := fields[i+1].(type) {
		case error:
			ctx = ctx.AnErr(key, v)
		default:
			ctx = ctx.Interface(key, v)
		}
	}
	return &ZerologLogger{zl: ctx.Logger(), level: l.level}
}

// Enabled implements Logger.Enabled.
func (l *ZerologLogger) Enabled(_ context.Context, level Level) bool {
	return l.enabled(level)
}

func (l *ZerologLogger) enabled(level Level) bool {
	return level >= Level(l.level.Load())
}

// emit adds key/value pairs to the event. A trailing key without a value is dropped.
func emit(e *zerolog.Event, msg string, fields []any) {
	for i := 0; i+1 < len(fields); i += 2 {
		key := fmt.Sprintf("%v", fields[i])
		switch v := fields[i+1].(type) {
		case zerolog.LogObjectMarshaler:
			e = e.Object(key, v)
			if err, ok := v.(error); ok {
				e = e.Str(key+"_message", err.Error())
			}
		case error:
			e = e.AnErr(key, v)
			if st := extractStacktrace(v); st != "" {
				e = e.Str(StacktraceKey, st)
			}
		default:
			e = e.Interface(key, v)
		}
	}
	e.Msg(msg)
}

// extractStacktrace returns the stack recorded by cockroachdb/errors, if any.
func extractStacktrace(err error) string {
	safeDetails := errors.GetSafeDetails(err).SafeDetails
	if len(safeDetails) > 0 {
		return safeDetails[0]
	}
	return ""
}

// ZerologProvider implements LoggerProvider with a shared zerolog writer.
type ZerologProvider struct {
	root *ZerologLogger
}

// NewZerologProvider creates a provider whose loggers write JSON lines to w.
func NewZerologProvider(w io.Writer, level Level) *ZerologProvider {
	return &ZerologProvider{root: NewZerologLogger(w, level)}
}

// GetLogger implements LoggerProvider.GetLogger.
func (p *ZerologProvider) GetLogger() Logger {
	return p.root
}

// GetLoggerWithName implements LoggerProvider.GetLoggerWithName.
func (p *ZerologProvider) GetLoggerWithName(name string) Logger {
	return p.root.With(ComponentKey, name)
}

// SetLevel implements LoggerProvider.SetLevel.
func (p *ZerologProvider) SetLevel(level Level) {
	p.root.level.Store(int32(level))
}

var (
	providerMu sync.RWMutex
	provider   LoggerProvider = NewZerologProvider(io.Discard, LevelInfo)
)

// SetProvider replaces the package-level provider used by GetLogger.
func SetProvider(p LoggerProvider) {
	providerMu.Lock()
	defer providerMu.Unlock()
	provider = p
}

// GetLogger returns the default logger of the package-level provider.
func GetLogger() Logger {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return provider.GetLogger()
}

// GetLoggerWithName returns a component logger of the package-level provider.
func GetLoggerWithName(name string) Logger {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return provider.GetLoggerWithName(name)
}
