package logging

import (
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestLogger is a Logger whose entries, at every level including trace, are
// kept in memory for assertions.
type TestLogger struct {
	*Logger
	Logs *observer.ObservedLogs
}

// NewTestLogger returns an observing logger.
func NewTestLogger() *TestLogger {
	core, logs := observer.New(TraceLevel)
	return &TestLogger{Logger: &Logger{zap: zap.New(core), config: NewDefaultConfig()}, Logs: logs}
}

// Count returns how many entries at level contain substr in their message.
func (t *TestLogger) Count(level zapcore.Level, substr string) int {
	n := 0
	for _, e := range t.Logs.All() {
		if e.Level == level && strings.Contains(e.Message, substr) {
			n++
		}
	}
	return n
}

// AssertLogged fails tb unless an entry at level contains substr.
func (t *TestLogger) AssertLogged(tb testing.TB, level zapcore.Level, substr string) {
	tb.Helper()
	if t.Count(level, substr) == 0 {
		tb.Errorf("no %v entry containing %q; got %d entries", level, substr, t.Logs.Len())
	}
}

// AssertField fails tb unless some entry with message msg carries key=want.
func (t *TestLogger) AssertField(tb testing.TB, msg, key string, want any) {
	tb.Helper()
	for _, e := range t.Logs.FilterMessage(msg).All() {
		if got, ok := e.ContextMap()[key]; ok && reflect.DeepEqual(got, want) {
			return
		}
	}
	tb.Errorf("no %q entry with %s=%v", msg, key, want)
}

// AssertTraceCorrelation fails tb unless an entry with message msg has a trace_id.
func (t *TestLogger) AssertTraceCorrelation(tb testing.TB, msg string) {
	tb.Helper()
	if t.Logs.FilterMessage(msg).FilterFieldKey("trace_id").Len() == 0 {
		tb.Errorf("%q logged without trace_id", msg)
	}
}
