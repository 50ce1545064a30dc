package logging

import (
	"strings"

	"go.uber.org/zap/zapcore"
)

// TraceLevel sits one below zap's Debug.
const TraceLevel = zapcore.DebugLevel - 1

// LevelFromString parses zap level names plus "trace", ignoring case.
func LevelFromString(s string) (zapcore.Level, error) {
	if strings.EqualFold(s, "trace") {
		return TraceLevel, nil
	}
	return zapcore.ParseLevel(s)
}

// encodeLevel is zapcore.LowercaseLevelEncoder that also names TraceLevel.
func encodeLevel(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	if l == TraceLevel {
		enc.AppendString("trace")
		return
	}
	zapcore.LowercaseLevelEncoder(l, enc)
}
