package workflows

import "fmt"

// ErrorSeverity decides what the Runner does with a failed step.
//
//	critical  Run returns the *StepError; the caller aborts
//	high      logged at error level with retry context, kept in Errors()
//	low       logged at warn level, kept in Errors()
type ErrorSeverity string

const (
	ErrorSeverityCritical ErrorSeverity = "critical"
	ErrorSeverityHigh     ErrorSeverity = "high"
	ErrorSeverityLow      ErrorSeverity = "low"
)

// StepError is a failed step. Context holds the identifiers an operator needs
// to redo the step by hand, e.g. project=... user=... amount=50.
type StepError struct {
	Operation string
	Severity  ErrorSeverity
	Err       error
	Context   string
}

// NewStepError wraps err as a failure of operation.
func NewStepError(operation string, severity ErrorSeverity, err error, context string) *StepError {
	return &StepError{Operation: operation, Severity: severity, Err: err, Context: context}
}

func (e *StepError) Error() string {
	msg := fmt.Sprintf("%s (%s): %v", e.Operation, e.Severity, e.Err)
	if e.Context != "" {
		msg += " [" + e.Context + "]"
	}
	return msg
}

func (e *StepError) Unwrap() error { return e.Err }
