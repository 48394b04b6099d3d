package logging

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func withMainLogger(t *testing.T, l *Logger) {
	origLogger := MainLogger
	origForced := forcedLogLevel.Load()
	MainLogger = l
	t.Cleanup(func() {
		MainLogger.SetLogFile("", 0, 0, 0)
		MainLogger = origLogger
		forcedLogLevel.Store(origForced)
	})
}

func TestLogger_LogLevels(t *testing.T) {
	withMainLogger(t, NewLogger(InfoLevel, "", NoneLevel, 0, 0, 0))
	MainLogger.SetLastMessagesLimit(10)

	Debug("This debug message should not appear")
	Info("This info message should appear")

	msg := MainLogger.GetLastMessages()
	assert.Contains(t, msg, "INFO: This info message should appear")
	assert.NotContains(t, msg, "debug message")
}

func TestLogger_LogMethods(t *testing.T) {
	withMainLogger(t, NewLogger(TraceLevel, "", NoneLevel, 0, 0, 0))
	MainLogger.SetLastMessagesLimit(10)

	Trace("Test trace message: %d", 1)
	Debug("Test debug message: %d", 2)
	Info("Test info message: %d", 3)
	Warn("Test warn message: %d", 4)
	Error("Test error message: %d", 5)

	captured := MainLogger.GetLastMessages()
	for _, expected := range []string{
		"TRACE: Test trace message: 1",
		"DEBUG: Test debug message: 2",
		"INFO: Test info message: 3",
		"WARN: Test warn message: 4",
		"ERROR: Test error message: 5",
	} {
		assert.Contains(t, captured, expected)
	}
}

func TestLogger_MessageWithoutArgsIsNotFormatted(t *testing.T) {
	logger := NewLogger(InfoLevel, "", NoneLevel, 0, 0, 0)
	logger.SetLastMessagesLimit(5)

	logger.Info("100% alive")

	assert.Contains(t, logger.GetLastMessages(), "100% alive")
}

func TestLogger_LastMessagesLimit(t *testing.T) {
	logger := NewLogger(InfoLevel, "", NoneLevel, 0, 0, 0)
	logger.SetLastMessagesLimit(2)

	logger.Info("first")
	logger.Info("second")
	logger.Info("third")

	lines := strings.Split(strings.TrimSpace(logger.GetLastMessages()), "\n")
	assert.Equal(t, []string{"INFO: second", "INFO: third"}, lines)

	logger.SetLastMessagesLimit(0)
	assert.Empty(t, logger.GetLastMessages())
}

func TestLogger_DerivedLoggersShareLevelAndTail(t *testing.T) {
	base := NewLogger(InfoLevel, "", NoneLevel, 0, 0, 0)
	base.SetLastMessagesLimit(10)

	child := base.WithService("weakref").WithField("map", "m1")
	require.NotNil(t, child)

	child.Debug("hidden")
	base.SetConsoleLogLevel(DebugLevel)
	child.Debug("visible")

	assert.Equal(t, DebugLevel, child.ConsoleLevel())
	msg := base.GetLastMessages()
	assert.NotContains(t, msg, "hidden")
	assert.Contains(t, msg, "DEBUG: visible")
}

func TestLogger_Enabled(t *testing.T) {
	logger := NewLogger(WarnLevel, "", NoneLevel, 0, 0, 0)

	assert.True(t, logger.Enabled(ErrorLevel))
	assert.True(t, logger.Enabled(WarnLevel))
	assert.False(t, logger.Enabled(InfoLevel))
	assert.False(t, logger.Enabled(TraceLevel))

	var nilLogger *Logger
	assert.False(t, nilLogger.Enabled(ErrorLevel))
}

func TestLogger_NilDerivation(t *testing.T) {
	var nilLogger *Logger
	assert.Nil(t, nilLogger.With(zap.String("key", "value")))
	assert.Nil(t, nilLogger.WithField("key", "value"))
	assert.Nil(t, nilLogger.WithService("svc"))
}

func TestForceLogLevel(t *testing.T) {
	withMainLogger(t, NewLogger(InfoLevel, "", NoneLevel, 0, 0, 0))
	derived := MainLogger.WithService("weakref")

	ForceLogLevel(DebugLevel)
	assert.Equal(t, DebugLevel, MainLogger.ConsoleLevel())
	assert.Equal(t, DebugLevel, derived.ConsoleLevel(), "derived logger follows the forced level")

	other := NewLogger(WarnLevel, "", NoneLevel, 0, 0, 0)
	assert.Equal(t, DebugLevel, other.ConsoleLevel(), "new loggers respect the forced level")

	ForceLogLevel(TraceLevel)
	assert.Equal(t, TraceLevel, MainLogger.ConsoleLevel())
}

func TestNewLogger_NoneLevel(t *testing.T) {
	logger := NewLogger(NoneLevel, "", NoneLevel, 0, 0, 0)
	logger.SetLastMessagesLimit(10)

	logger.Error("dropped")

	assert.Equal(t, NoneLevel, logger.ConsoleLevel())
	assert.Empty(t, logger.GetLastMessages())
}

func TestNewLogger_FileSink(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "logs", "weakling.log")
	logger := NewLogger(NoneLevel, fileName, DebugLevel, 1, 1, 1).WithService("weakref")

	logger.Debug("purged %d collected entries", 3)

	data, err := os.ReadFile(fileName)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"service":"weakref"`)
	assert.Contains(t, string(data), "purged 3 collected entries")
}

func TestLogger_SetLogFile(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.log")
	second := filepath.Join(dir, "second.log")

	base := NewLogger(NoneLevel, "", DebugLevel, 1, 1, 1)
	child := base.WithService("weakref").WithField("map", "m1")
	assert.Equal(t, NoneLevel, child.FileLevel(), "no file attached yet")

	base.SetLogFile(first, 1, 1, 1)
	t.Cleanup(func() { base.SetLogFile("", 0, 0, 0) })
	assert.Equal(t, DebugLevel, child.FileLevel())
	assert.Equal(t, first, child.FileName())
	child.Debug("into first")

	base.SetLogFile(second, 1, 1, 1)
	child.Debug("into second")

	data, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Contains(t, string(data), "into first")
	assert.NotContains(t, string(data), "into second")

	data, err = os.ReadFile(second)
	require.NoError(t, err)
	assert.Contains(t, string(data), "into second")
	assert.Contains(t, string(data), `"service":"weakref"`)
	assert.Contains(t, string(data), `"map":"m1"`)

	base.SetLogFile("", 0, 0, 0)
	assert.Equal(t, NoneLevel, child.FileLevel())
	assert.Empty(t, child.FileName())
	assert.False(t, child.Enabled(DebugLevel))
}

func TestForceLogLevel_Concurrent(t *testing.T) {
	withMainLogger(t, NewLogger(InfoLevel, "", NoneLevel, 0, 0, 0))
	derived := MainLogger.WithService("weakref")

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				ForceLogLevel(DebugLevel)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				derived.Trace("message %d", j)
				assert.NotNil(t, NewLogger(InfoLevel, "", NoneLevel, 0, 0, 0))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, DebugLevel, derived.ConsoleLevel())
	assert.Equal(t, DebugLevel, NewLogger(WarnLevel, "", NoneLevel, 0, 0, 0).ConsoleLevel())
}

func TestStringToLevel(t *testing.T) {
	testCases := []struct {
		input    string
		expected Level
	}{
		{"trace", TraceLevel},
		{"debug", DebugLevel},
		{"info", InfoLevel},
		{"warn", WarnLevel},
		{"error", ErrorLevel},
		{"fatal", FatalLevel},
		{"none", NoneLevel},
		{" DEBUG ", DebugLevel},
		{"invalid", InfoLevel},
		{"", InfoLevel},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.expected, stringToLevel(tc.input), "stringToLevel(%q)", tc.input)
	}
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "trace", TraceLevel.String())
	assert.Equal(t, "none", NoneLevel.String())
	assert.Equal(t, "info", Level(42).String())
}

func TestTraceCapableLevelEnabler(t *testing.T) {
	atom := zap.NewAtomicLevelAt(ZapTraceLevel)
	e := NewTraceCapableLevelEnabler(atom, false)

	assert.False(t, e.Enabled(ZapTraceLevel))
	assert.True(t, e.Enabled(zap.DebugLevel))

	e.EnableTrace(true)
	assert.True(t, e.Enabled(ZapTraceLevel))
}
