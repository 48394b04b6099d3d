package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/fatih/color"
	"github.com/hypernetix/weakling/libs/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
)

// Level represents logging levels
type Level int

const (
	NoneLevel Level = iota
	FatalLevel
	ErrorLevel
	WarnLevel
	InfoLevel
	DebugLevel
	TraceLevel
)

// ServiceField names the library a logger belongs to, it is rendered as the
// zap logger name, e.g. logging.MainLogger.WithService("weakref")
const ServiceField = "service"

// Logger fans every message out to a console core and an optional rotating file core
type Logger struct {
	ConsoleLogger *zapLogger
	FileLogger    *zapLogger
}

// MainLogger is assigned once. Config loads change its levels and file in
// place, so loggers derived from it follow.
var MainLogger = NewLogger(InfoLevel, "", NoneLevel, 0, 0, 0).WithService("main")

var forcedLogLevel atomic.Pointer[Level]

// ForceLogLevel pins both console and file levels, later config loads can't override it
func ForceLogLevel(level Level) {
	forcedLogLevel.Store(&level)
	MainLogger.SetConsoleLogLevel(level)
	MainLogger.SetFileLogLevel(level)
}

func levelOrForced(level Level) Level {
	if forced := forcedLogLevel.Load(); forced != nil {
		return *forced
	}
	return level
}

// CreateLogger builds a logger from a config section
func CreateLogger(cfg *config.ConfigLogging, serviceName string) *Logger {
	return NewLogger(
		stringToLevel(cfg.ConsoleLevel),
		resolveLogFilePath(cfg.File),
		stringToLevel(cfg.FileLevel),
		cfg.MaxSizeMB,
		cfg.MaxBackups,
		cfg.MaxAgeDays,
	).WithService(serviceName)
}

func NewLogger(
	consoleLevel Level,
	fileName string,
	fileLevel Level,
	maxSizeMB int,
	maxBackups int,
	maxAgeDays int,
) *Logger {
	consoleLevel = levelOrForced(consoleLevel)
	fileLevel = levelOrForced(fileLevel)

	consoleLogger := newNopLogger()
	if consoleLevel != NoneLevel {
		consoleLogger = newZapLogger(
			zapcore.NewConsoleEncoder(getConsoleEncoderConfig()),
			zapcore.AddSync(os.Stdout),
			consoleLevel,
			isTerminal(),
		)
	}

	fileLogger := newFileSink(fileLevel)
	if fileLevel != NoneLevel && fileName != "" {
		fileLogger.attachFile(fileName, maxSizeMB, maxBackups, maxAgeDays)
	}

	return &Logger{
		ConsoleLogger: consoleLogger,
		FileLogger:    fileLogger,
	}
}

func getConsoleEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewDevelopmentEncoderConfig()
	if isTerminal() {
		cfg.EncodeLevel = traceCapableColorLevelEncoder
	} else {
		cfg.EncodeLevel = traceCapableLevelEncoder
	}
	cfg.EncodeName = func(name string, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString("[" + name + "]")
	}
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006/01/02 15:04:05.000")
	return cfg
}

func getFileEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = traceCapableLevelEncoder
	cfg.NameKey = ServiceField
	return cfg
}

// traceCapableLevelEncoder pads level names to 5 chars and knows about TRACE
func traceCapableLevelEncoder(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(levelLabel(l))
}

func traceCapableColorLevelEncoder(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	label := levelLabel(l)
	switch l {
	case ZapTraceLevel:
		label = color.BlueString(label)
	case zapcore.DebugLevel:
		label = color.MagentaString(label)
	case zapcore.InfoLevel:
		label = color.CyanString(label)
	case zapcore.WarnLevel:
		label = color.YellowString(label)
	default:
		label = color.RedString(label)
	}
	enc.AppendString(label)
}

func levelLabel(l zapcore.Level) string {
	if l == ZapTraceLevel {
		return "TRACE"
	}
	return fmt.Sprintf("%-5s", l.CapitalString())
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func getZapLevel(level Level) zapcore.Level {
	switch level {
	case TraceLevel:
		return ZapTraceLevel
	case DebugLevel:
		return zapcore.DebugLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	case FatalLevel:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

var levelNames = map[Level]string{
	NoneLevel:  "none",
	FatalLevel: "fatal",
	ErrorLevel: "error",
	WarnLevel:  "warn",
	InfoLevel:  "info",
	DebugLevel: "debug",
	TraceLevel: "trace",
}

func stringToLevel(level string) Level {
	level = strings.ToLower(strings.TrimSpace(level))
	for l, name := range levelNames {
		if name == level {
			return l
		}
	}
	return InfoLevel
}

func levelToString(level Level) string {
	if name, ok := levelNames[level]; ok {
		return name
	}
	return "info"
}

func (l Level) String() string { return levelToString(l) }

func Trace(msg string, args ...interface{}) { MainLogger.Log(TraceLevel, msg, args...) }
func Debug(msg string, args ...interface{}) { MainLogger.Log(DebugLevel, msg, args...) }
func Info(msg string, args ...interface{})  { MainLogger.Log(InfoLevel, msg, args...) }
func Warn(msg string, args ...interface{})  { MainLogger.Log(WarnLevel, msg, args...) }
func Error(msg string, args ...interface{}) { MainLogger.Log(ErrorLevel, msg, args...) }
func Fatal(msg string, args ...interface{}) { MainLogger.Log(FatalLevel, msg, args...) }

// Enabled reports whether a message of the given level reaches any sink.
// Use it to skip building expensive log arguments.
func (l *Logger) Enabled(level Level) bool {
	if l == nil {
		return false
	}
	return level <= l.ConsoleLogger.Level() || level <= l.FileLogger.Level()
}

func (l *Logger) ConsoleLevel() Level { return l.ConsoleLogger.Level() }
func (l *Logger) FileLevel() Level    { return l.FileLogger.Level() }

// WithService returns a child logger named after the given library
func (l *Logger) WithService(name string) *Logger {
	if l == nil {
		return nil
	}
	return l.derive(func(zl *zapLogger) *zapLogger { return zl.Named(name) })
}

func (l *Logger) With(fields ...zap.Field) *Logger {
	if l == nil {
		return nil
	}
	return l.derive(func(zl *zapLogger) *zapLogger { return zl.With(fields...) })
}

func (l *Logger) WithField(key string, value interface{}) *Logger {
	if key == ServiceField {
		return l.WithService(fmt.Sprintf("%v", value))
	}
	return l.With(zap.Any(key, value))
}

func (l *Logger) derive(fn func(*zapLogger) *zapLogger) *Logger {
	return &Logger{
		ConsoleLogger: fn(l.ConsoleLogger),
		FileLogger:    fn(l.FileLogger),
	}
}

func (l *Logger) Trace(msg string, args ...interface{}) { l.Log(TraceLevel, msg, args...) }
func (l *Logger) Debug(msg string, args ...interface{}) { l.Log(DebugLevel, msg, args...) }
func (l *Logger) Info(msg string, args ...interface{})  { l.Log(InfoLevel, msg, args...) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.Log(WarnLevel, msg, args...) }
func (l *Logger) Error(msg string, args ...interface{}) { l.Log(ErrorLevel, msg, args...) }
func (l *Logger) Fatal(msg string, args ...interface{}) { l.Log(FatalLevel, msg, args...) }

func (l *Logger) Log(level Level, msg string, args ...interface{}) {
	if level == NoneLevel || !l.Enabled(level) {
		return
	}

	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}

	l.ConsoleLogger.write(level, msg)
	l.FileLogger.write(level, msg)
}

// GetLastMessages returns the in-memory tail of console messages, one per line
func (l *Logger) GetLastMessages() string {
	var sb strings.Builder
	for _, msg := range l.ConsoleLogger.GetLastMessages() {
		sb.WriteString(msg)
		sb.WriteByte('\n')
	}
	return sb.String()
}

func (l *Logger) SetLastMessagesLimit(limit int) {
	l.ConsoleLogger.SetInMemoryMessagesLimit(limit)
}

// SetConsoleLogLevel changes the console level of this logger and every logger
// derived from the same sink. A sink created with NoneLevel has a no-op core,
// raising its level only feeds the in-memory tail.
func (l *Logger) SetConsoleLogLevel(level Level) {
	l.ConsoleLogger.SetLogLevel(level)
}

func (l *Logger) SetFileLogLevel(level Level) {
	l.FileLogger.SetLogLevel(level)
}

// SetLogFile attaches the file sink to a rotating file, replacing the
// previous one. An empty name detaches it. Loggers derived from the same
// sink write to the new file too.
func (l *Logger) SetLogFile(fileName string, maxSizeMB, maxBackups, maxAgeDays int) {
	l.FileLogger.attachFile(fileName, maxSizeMB, maxBackups, maxAgeDays)
}

// FileName returns the attached log file, empty without one
func (l *Logger) FileName() string {
	return l.FileLogger.fileName()
}

// resolveLogFilePath makes relative log file paths relative to the configured home dir
func resolveLogFilePath(filePath string) string {
	if filePath == "" || filepath.IsAbs(filePath) {
		return filePath
	}

	var homeDir string
	var err error
	if cfg := config.Get(); cfg != nil && cfg.HomeDir != "" {
		homeDir, err = config.ResolveHomeDir(cfg.HomeDir)
	} else {
		homeDir, err = config.GetWeaklingHomeDir()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to resolve home directory: %v\n", err)
		return filePath
	}

	return filepath.Join(homeDir, filePath)
}
