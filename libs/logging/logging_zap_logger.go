package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fatih/color"
	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// sinkState is shared by a zapLogger and every logger derived from it
// with Named/With, so level changes, the attached file and the in-memory
// tail are visible to all.
type sinkState struct {
	level        atomic.Int32
	levelSetter  *zap.AtomicLevel
	traceEnabler *TraceCapableLevelEnabler
	colorize     bool

	// file is set for file sinks only
	file *fileSlot

	mu                sync.Mutex
	lastMessages      []string
	lastMessagesLimit int
}

func newSinkState(level Level, colorize bool) *sinkState {
	atom := zap.NewAtomicLevelAt(getZapLevel(level))
	state := &sinkState{
		levelSetter:  &atom,
		traceEnabler: NewTraceCapableLevelEnabler(atom, level >= TraceLevel),
		colorize:     colorize,
	}
	state.level.Store(int32(level))
	return state
}

// fileSlot holds the core of a file sink. Cores derived with Named/With
// resolve it on every write, so attaching another file reaches them too.
type fileSlot struct {
	core atomic.Pointer[coreBox]

	mu       sync.Mutex
	fileName string
	closer   io.Closer
}

type coreBox struct {
	core zapcore.Core
}

func (fs *fileSlot) current() zapcore.Core {
	if b := fs.core.Load(); b != nil {
		return b.core
	}
	return nil
}

// slotCore is the zapcore.Core of a file sink
type slotCore struct {
	slot   *fileSlot
	fields []zapcore.Field
}

func (c *slotCore) Enabled(lvl zapcore.Level) bool {
	core := c.slot.current()
	return core != nil && core.Enabled(lvl)
}

func (c *slotCore) With(fields []zapcore.Field) zapcore.Core {
	merged := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	merged = append(merged, c.fields...)
	merged = append(merged, fields...)
	return &slotCore{slot: c.slot, fields: merged}
}

func (c *slotCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *slotCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	core := c.slot.current()
	if core == nil {
		return nil
	}
	if len(c.fields) > 0 {
		fields = append(append(make([]zapcore.Field, 0, len(c.fields)+len(fields)), c.fields...), fields...)
	}
	return core.Write(ent, fields)
}

func (c *slotCore) Sync() error {
	if core := c.slot.current(); core != nil {
		return core.Sync()
	}
	return nil
}

// zapLogger is one output sink (console or file) of a Logger
type zapLogger struct {
	logger *zap.Logger
	state  *sinkState
}

func newZapLogger(enc zapcore.Encoder, ws zapcore.WriteSyncer, level Level, colorize bool) *zapLogger {
	state := newSinkState(level, colorize)
	return &zapLogger{
		logger: zap.New(zapcore.NewCore(enc, ws, state.traceEnabler)),
		state:  state,
	}
}

// newFileSink returns a file sink without a file, see attachFile
func newFileSink(level Level) *zapLogger {
	state := newSinkState(level, false)
	state.file = &fileSlot{}
	return &zapLogger{
		logger: zap.New(&slotCore{slot: state.file}),
		state:  state,
	}
}

func newNopLogger() *zapLogger {
	return &zapLogger{logger: zap.NewNop(), state: &sinkState{}}
}

func (zl *zapLogger) sink() *sinkState {
	return zl.state
}

// Level returns the sink level. A file sink without a file reports NoneLevel.
func (zl *zapLogger) Level() Level {
	if zl == nil {
		return NoneLevel
	}
	s := zl.sink()
	if s.file != nil && s.file.current() == nil {
		return NoneLevel
	}
	return Level(s.level.Load())
}

func (zl *zapLogger) SetLogLevel(level Level) {
	s := zl.sink()
	s.level.Store(int32(level))
	if s.levelSetter != nil {
		s.levelSetter.SetLevel(getZapLevel(level))
	}
	if s.traceEnabler != nil {
		s.traceEnabler.EnableTrace(level >= TraceLevel)
	}
}

// attachFile points a file sink at a rotating file, closing the previous
// one. An empty name detaches the sink from any file.
func (zl *zapLogger) attachFile(fileName string, maxSizeMB, maxBackups, maxAgeDays int) {
	s := zl.sink()
	if s.file == nil {
		return
	}

	s.file.mu.Lock()
	defer s.file.mu.Unlock()

	var box *coreBox
	var closer io.Closer
	if fileName != "" {
		if err := os.MkdirAll(filepath.Dir(fileName), 0755); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Failed to create log directory %s: %v\n", filepath.Dir(fileName), err)
		}
		lj := &lumberjack.Logger{
			Filename:   fileName,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
			MaxAge:     maxAgeDays,
		}
		box = &coreBox{core: zapcore.NewCore(zapcore.NewJSONEncoder(getFileEncoderConfig()), zapcore.AddSync(lj), s.traceEnabler)}
		closer = lj
	}

	prev := s.file.closer
	s.file.core.Store(box)
	s.file.fileName = fileName
	s.file.closer = closer

	if prev != nil {
		if err := prev.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Failed to close log file: %v\n", err)
		}
	}
}

func (zl *zapLogger) fileName() string {
	s := zl.sink()
	if s.file == nil {
		return ""
	}
	s.file.mu.Lock()
	defer s.file.mu.Unlock()
	return s.file.fileName
}

func (zl *zapLogger) Named(name string) *zapLogger {
	return &zapLogger{logger: zl.logger.Named(name), state: zl.sink()}
}

func (zl *zapLogger) With(fields ...zap.Field) *zapLogger {
	return &zapLogger{logger: zl.logger.With(fields...), state: zl.sink()}
}

func (zl *zapLogger) write(level Level, msg string) {
	if zl == nil || level == NoneLevel || level > zl.Level() {
		return
	}

	zl.addToMemory(level, msg)

	s := zl.sink()
	switch level {
	case TraceLevel:
		if s.colorize {
			msg = color.BlueString(msg)
		}
		if ce := zl.logger.Check(ZapTraceLevel, msg); ce != nil {
			ce.Write()
		}
	case DebugLevel:
		if s.colorize {
			msg = color.MagentaString(msg)
		}
		zl.logger.Debug(msg)
	case InfoLevel:
		zl.logger.Info(msg)
	case WarnLevel:
		zl.logger.Warn(msg)
	case ErrorLevel:
		zl.logger.Error(msg)
	case FatalLevel:
		zl.logger.Fatal(msg)
	}
}

func (zl *zapLogger) addToMemory(level Level, msg string) {
	s := zl.sink()
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastMessagesLimit <= 0 {
		return
	}

	s.lastMessages = append(s.lastMessages, fmt.Sprintf("%s: %s", strings.ToUpper(levelToString(level)), msg))
	if over := len(s.lastMessages) - s.lastMessagesLimit; over > 0 {
		s.lastMessages = s.lastMessages[over:]
	}
}

func (zl *zapLogger) SetInMemoryMessagesLimit(limit int) {
	s := zl.sink()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastMessagesLimit = limit
	if limit <= 0 {
		s.lastMessages = nil
	} else if over := len(s.lastMessages) - limit; over > 0 {
		s.lastMessages = s.lastMessages[over:]
	}
}

func (zl *zapLogger) GetLastMessages() []string {
	s := zl.sink()
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lastMessages...)
}
