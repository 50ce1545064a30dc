package logging

import "go.uber.org/zap/zapcore"

// newSampledCore thins entries below error level; errors and above are never
// sampled away.
func newSampledCore(core zapcore.Core, cfg SamplingConfig) zapcore.Core {
	if !cfg.Enabled {
		return core
	}
	loud := filterCore{Core: core, admit: func(l zapcore.Level) bool { return l >= zapcore.ErrorLevel }}
	rest := filterCore{Core: core, admit: func(l zapcore.Level) bool { return l < zapcore.ErrorLevel }}
	return zapcore.NewTee(loud, zapcore.NewSamplerWithOptions(rest, cfg.Tick, cfg.Initial, cfg.Thereafter))
}

// filterCore drops levels admit rejects before they reach Core.
type filterCore struct {
	zapcore.Core
	admit func(zapcore.Level) bool
}

func (c filterCore) Enabled(l zapcore.Level) bool {
	return c.admit(l) && c.Core.Enabled(l)
}

func (c filterCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.admit(e.Level) {
		return ce
	}
	return c.Core.Check(e, ce)
}

func (c filterCore) With(fields []zapcore.Field) zapcore.Core {
	return filterCore{Core: c.Core.With(fields), admit: c.admit}
}
