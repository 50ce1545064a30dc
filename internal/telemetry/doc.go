// Package telemetry wires OpenTelemetry tracing and metrics for questboard.
//
// When enabled, New installs OTLP (gRPC or HTTP/protobuf) tracer and meter
// providers as the otel globals. Packages that create spans or instruments
// through otel.Tracer and otel.Meter (the workflow runner, the completion
// orchestrator, the HTTP metrics middleware) then export without holding a
// reference to Telemetry.
//
//	telemetry:
//	  enabled: true
//	  endpoint: "localhost:4317"
//	  protocol: grpc
//	  insecure: true
//	  sample_rate: 1.0
//	  metrics_interval: 15s
//
// Telemetry failures do not crash the application. If a provider cannot be
// created the instance is marked degraded and the no-op globals stay in place.
//
// Tests use TestTelemetry:
//
//	tt := telemetry.NewTestTelemetry()
//	tt.Install(t)
//	// ... exercise code ...
//	tt.AssertSpanExists(t, "complete_project.award_xp")
package telemetry
