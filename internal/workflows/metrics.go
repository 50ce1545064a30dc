package workflows

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/fyrsmithlabs/questboard/internal/workflows"

// Metrics for workflow steps
var (
	stepDuration     metric.Float64Histogram
	stepErrorCounter metric.Int64Counter
)

// initMetrics initializes OpenTelemetry metrics for workflows.
// This is called once during package initialization.
func initMetrics() {
	meter := otel.Meter(instrumentationName)

	var err error

	stepDuration, err = meter.Float64Histogram(
		"questboard.workflows.step.duration",
		metric.WithDescription("Duration of workflow step executions"),
		metric.WithUnit("s"),
	)
	if err != nil {
		panic(fmt.Sprintf("failed to create step duration: %v", err))
	}

	stepErrorCounter, err = meter.Int64Counter(
		"questboard.workflows.step.errors",
		metric.WithDescription("Number of workflow step errors by severity"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		panic(fmt.Sprintf("failed to create step error counter: %v", err))
	}
}

func init() {
	initMetrics()
}
