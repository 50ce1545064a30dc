// Package workflows runs multi-step operations whose steps have different
// failure severities. A critical step aborts the workflow; high and low
// severity failures are logged and collected so the caller can report them
// without undoing work that already committed.
package workflows

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Step is one unit of a workflow.
type Step struct {
	Name     string
	Severity ErrorSeverity
	Run      func(ctx context.Context) error
}

// Runner executes steps for a single workflow invocation. Record is safe for
// concurrent use so fan-out steps can report per-item failures.
type Runner struct {
	workflow string
	logger   *zap.Logger
	tracer   trace.Tracer

	mu     sync.Mutex
	errors []*StepError
}

// NewRunner creates a runner for one invocation of workflow.
func NewRunner(workflow string, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		workflow: workflow,
		logger:   logger.With(zap.String("workflow", workflow)),
		tracer:   otel.Tracer(instrumentationName),
	}
}

// Run executes step inside a span. A critical failure is returned as a
// *StepError; any other failure is recorded and Run returns nil.
func (r *Runner) Run(ctx context.Context, step Step) error {
	ctx, span := r.tracer.Start(ctx, r.workflow+"."+step.Name,
		trace.WithAttributes(
			attribute.String("workflow.step", step.Name),
			attribute.String("workflow.severity", string(step.Severity)),
		))
	defer span.End()

	start := time.Now()
	err := step.Run(ctx)
	stepDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("workflow", r.workflow), attribute.String("step", step.Name)))

	if err == nil {
		return nil
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	if step.Severity == ErrorSeverityCritical {
		stepErrorCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("workflow", r.workflow),
			attribute.String("step", step.Name),
			attribute.String("severity", string(step.Severity))))
		return NewStepError(step.Name, step.Severity, err, "")
	}
	r.Record(ctx, step.Name, step.Severity, err, "")
	return nil
}

// Record logs and collects a non-critical failure.
func (r *Runner) Record(ctx context.Context, operation string, severity ErrorSeverity, err error, retryContext string, fields ...zap.Field) {
	se := NewStepError(operation, severity, err, retryContext)
	stepErrorCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("workflow", r.workflow),
		attribute.String("step", operation),
		attribute.String("severity", string(severity))))

	fields = append(fields, zap.String("step", operation), zap.String("severity", string(severity)), zap.Error(err))
	if retryContext != "" {
		fields = append(fields, zap.String("retry_context", retryContext))
	}
	if severity == ErrorSeverityLow {
		r.logger.Warn("workflow step failed (non-fatal)", fields...)
	} else {
		r.logger.Error("workflow step failed", fields...)
	}

	r.mu.Lock()
	r.errors = append(r.errors, se)
	r.mu.Unlock()
}

// Errors returns recorded failures formatted for a result.
func (r *Runner) Errors() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.errors))
	for _, e := range r.errors {
		out = append(out, e.Error())
	}
	return out
}

// StepErrors returns the recorded failures.
func (r *Runner) StepErrors() []*StepError {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*StepError(nil), r.errors...)
}
