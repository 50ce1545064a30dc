package workflows

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRunner_CriticalFailureIsReturned(t *testing.T) {
	runner := NewRunner("complete", nil)
	cause := errors.New("db down")

	err := runner.Run(context.Background(), Step{
		Name:     "authorize_and_transition",
		Severity: ErrorSeverityCritical,
		Run:      func(context.Context) error { return cause },
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)

	var se *StepError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ErrorSeverityCritical, se.Severity)
	assert.Empty(t, runner.Errors())
}

func TestRunner_BestEffortFailuresAreRecorded(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	runner := NewRunner("complete", zap.New(core))
	ctx := context.Background()

	require.NoError(t, runner.Run(ctx, Step{
		Name:     "award_xp",
		Severity: ErrorSeverityHigh,
		Run:      func(context.Context) error { return errors.New("timeout") },
	}))
	require.NoError(t, runner.Run(ctx, Step{
		Name:     "external_sync",
		Severity: ErrorSeverityLow,
		Run:      func(context.Context) error { return errors.New("rate limited") },
	}))
	require.NoError(t, runner.Run(ctx, Step{
		Name:     "noop",
		Severity: ErrorSeverityHigh,
		Run:      func(context.Context) error { return nil },
	}))

	assert.Equal(t, []string{
		"award_xp (high): timeout",
		"external_sync (low): rate limited",
	}, runner.Errors())

	assert.Equal(t, 1, logs.FilterMessage("workflow step failed").Len())
	warn := logs.FilterMessage("workflow step failed (non-fatal)").All()
	require.Len(t, warn, 1)
	assert.Equal(t, zapcore.WarnLevel, warn[0].Level)
	assert.Equal(t, "complete", warn[0].ContextMap()["workflow"])
}

func TestRunner_RecordIncludesRetryContext(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	runner := NewRunner("complete", zap.New(core))

	runner.Record(context.Background(), "award_xp", ErrorSeverityHigh, errors.New("busy"),
		"project=p1 user=u1 amount=200", zap.String("user.id", "u1"))

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "project=p1 user=u1 amount=200", fields["retry_context"])
	assert.Equal(t, "u1", fields["user.id"])

	steps := runner.StepErrors()
	require.Len(t, steps, 1)
	assert.Contains(t, steps[0].Error(), "[project=p1 user=u1 amount=200]")
}

func TestRunner_Spans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	runner := NewRunner("complete", nil)
	_ = runner.Run(context.Background(), Step{Name: "award_xp", Severity: ErrorSeverityHigh,
		Run: func(context.Context) error { return nil }})

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "complete.award_xp", spans[0].Name())
}
