package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/YuminosukeSato/treepredict/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoggerInterface tests the TestLogger implementation
func TestLoggerInterface(t *testing.T) {
	testLogger, buffer := NewTestLogger(LevelDebug)

	testLogger.Debug("debug message", "key1", "value1", "number", 42)
	testLogger.Info("info message", OperationKey, OperationPredict)
	testLogger.Warn("warning message", "warning_code", "TEST_WARNING")
	testLogger.Error("error message", "error", fmt.Errorf("test error"))

	require.NotEmpty(t, buffer.String())
	assert.True(t, testLogger.ContainsMessage("debug message"))
	assert.True(t, testLogger.ContainsMessage("info message"))
	assert.True(t, testLogger.ContainsMessage("warning message"))
	assert.True(t, testLogger.ContainsMessage("error message"))
	assert.True(t, testLogger.ContainsField("key1", "value1"))
	assert.True(t, testLogger.ContainsField("number", 42.0))
	assert.True(t, testLogger.ContainsField("error", "test error"))
}

// TestLoggerWith tests the With method for context-aware logging
func TestLoggerWith(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelDebug)

	contextLogger := testLogger.With(
		ModelIDKey, "model_id#1",
		ModelTypeKey, "opcode",
	)
	contextLogger.Info("contextual message", OperationKey, OperationCompile)

	assert.True(t, testLogger.ContainsField(ModelIDKey, "model_id#1"))
	assert.True(t, testLogger.ContainsField(ModelTypeKey, "opcode"))
	assert.True(t, testLogger.ContainsField(OperationKey, OperationCompile))
}

// TestLoggerEnabled tests level filtering
func TestLoggerEnabled(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelInfo)
	ctx := context.Background()

	assert.True(t, testLogger.Enabled(ctx, LevelInfo))
	assert.True(t, testLogger.Enabled(ctx, LevelError))
	assert.False(t, testLogger.Enabled(ctx, LevelDebug))

	testLogger.Debug("this should not appear")
	testLogger.Info("this should appear")

	assert.False(t, testLogger.ContainsMessage("this should not appear"))
	assert.True(t, testLogger.ContainsMessage("this should appear"))
}

func TestZerologLoggerWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologLogger(&buf, LevelDebug)

	logger.With(ModelIDKey, "m1").Debug("script parsed",
		InstructionsKey, 7,
		MaxStackKey, 2,
	)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, "script parsed", entry["message"])
	assert.Equal(t, "m1", entry[ModelIDKey])
	assert.Equal(t, 7.0, entry[InstructionsKey])
	assert.Equal(t, 2.0, entry[MaxStackKey])
}

func TestZerologLoggerErrorStacktrace(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologLogger(&buf, LevelInfo)

	err := errors.NewCorruptModelError("checksum mismatch")
	logger.Error("decode failed", "error", err)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Contains(t, entry["error"], "checksum mismatch")
	assert.NotEmpty(t, entry[StacktraceKey])
}

func TestZerologProviderSetLevel(t *testing.T) {
	var buf bytes.Buffer
	p := NewZerologProvider(&buf, LevelWarn)
	named := p.GetLoggerWithName("treepredict.cache")

	named.Info("dropped")
	assert.Empty(t, buf.String())

	p.SetLevel(LevelDebug)
	named.Debug("kept")
	assert.Contains(t, buf.String(), "kept")
	assert.Contains(t, buf.String(), `"ml.component":"treepredict.cache"`)
}

func TestSetupLoggerRoutesWarnings(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, SetupLoggerWithWriter(&buf, "debug"))
	t.Cleanup(func() {
		errors.SetZerologWarnFunc(nil)
		SetProvider(NewZerologProvider(&bytes.Buffer{}, LevelInfo))
	})

	errors.Warn(errors.NewUnverifiedModelWarning("model_id#1"))
	out := buf.String()
	assert.Contains(t, out, `"level":"warn"`)
	assert.Contains(t, out, "model_id#1")
}

func TestToLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"info", LevelInfo, false},
		{"", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ToLogLevel(tt.in)
			if tt.wantErr {
				var vErr *errors.ValidationError
				require.True(t, errors.As(err, &vErr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestConcurrentLogging tests thread safety of the test logger
func TestConcurrentLogging(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelInfo)

	const goroutines, perGoroutine = 4, 5
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				testLogger.Info(fmt.Sprintf("goroutine %d message %d", id, j), "goroutine_id", id)
			}
		}(i)
	}
	wg.Wait()

	entries, err := testLogger.GetLogEntries()
	require.NoError(t, err)
	assert.Len(t, entries, goroutines*perGoroutine)
}

func TestTestLoggerProvider(t *testing.T) {
	provider, buffer := NewTestLoggerProvider(LevelDebug)

	provider.GetLogger().Info("provider test message")
	provider.GetLoggerWithName("test-component").Info("named logger message")

	out := buffer.String()
	assert.True(t, strings.Contains(out, "provider test message"))
	assert.True(t, strings.Contains(out, "test-component"))
}

// BenchmarkZerologDisabled measures the cost of a filtered-out debug call
func BenchmarkZerologDisabled(b *testing.B) {
	logger := NewZerologLogger(&bytes.Buffer{}, LevelInfo)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.Debug("benchmark message", OperationKey, OperationPredict)
	}
}
