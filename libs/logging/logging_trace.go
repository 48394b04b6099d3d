package logging

import (
	"sync/atomic"

	"go.uber.org/zap/zapcore"
)

// ZapTraceLevel is the custom zapcore level used for TRACE messages
const ZapTraceLevel = zapcore.DebugLevel - 1

// TraceCapableLevelEnabler lets ZapTraceLevel through only when trace is enabled,
// all other levels are delegated to the wrapped enabler
type TraceCapableLevelEnabler struct {
	zapcore.LevelEnabler
	traceEnabled atomic.Bool
}

func (e *TraceCapableLevelEnabler) Enabled(lvl zapcore.Level) bool {
	if lvl == ZapTraceLevel {
		return e.traceEnabled.Load()
	}
	return e.LevelEnabler.Enabled(lvl)
}

func (e *TraceCapableLevelEnabler) EnableTrace(enabled bool) {
	e.traceEnabled.Store(enabled)
}

func NewTraceCapableLevelEnabler(baseEnabler zapcore.LevelEnabler, traceEnabled bool) *TraceCapableLevelEnabler {
	e := &TraceCapableLevelEnabler{LevelEnabler: baseEnabler}
	e.traceEnabled.Store(traceEnabled)
	return e
}
