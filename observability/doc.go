// Package observability provides OpenTelemetry tracing and metrics for
// proxied process invocations.
//
// Tracing:
//
//	tp, err := observability.InitTracer(ctx, observability.DefaultTracerConfig("my-tool"))
//	defer tp.Shutdown(ctx)
//
// Every engine run opens a "process.run" span carrying the command, pid,
// final state and exit code.
//
// Metrics:
//
//	mp, err := observability.InitMeter(ctx, observability.DefaultMeterConfig("my-tool"))
//	defer mp.Shutdown(ctx)
//
//	metrics, err := observability.NewMetrics(observability.Meter("cmdproxy"))
//	engine := process.NewEngine(cfg, process.WithMetrics(metrics))
package observability
