package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/cmdproxy/logger"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	// ServiceName is the name of the service.
	ServiceName string
	// ServiceVersion is the version of the service.
	ServiceVersion string
	// Environment is the deployment environment (dev, staging, prod).
	Environment string
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string
	// Insecure allows insecure connections (for development).
	Insecure bool
	// Interval is the metric export interval.
	Interval time.Duration
}

// DefaultMeterConfig returns sensible defaults for development.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: "1.0.0",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// InitMeter initializes the OpenTelemetry meter provider and installs it
// globally. The returned provider should be shut down on exit.
func InitMeter(ctx context.Context, config MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))

	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Metrics holds the instruments recorded by the execution engine.
type Metrics struct {
	invocationTotal    metric.Int64Counter
	invocationDuration metric.Float64Histogram
	invocationActive   metric.Int64UpDownCounter
	timeoutTotal       metric.Int64Counter
	pumpBytes          metric.Int64Counter
}

// Metric names.
const (
	MetricInvocationTotal    = "cmdproxy.invocation.total"
	MetricInvocationDuration = "cmdproxy.invocation.duration"
	MetricInvocationActive   = "cmdproxy.invocation.active"
	MetricTimeoutTotal       = "cmdproxy.invocation.timeouts"
	MetricPumpBytes          = "cmdproxy.pump.bytes"
)

// NewMetrics creates metric instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	invocationTotal, err := meter.Int64Counter(MetricInvocationTotal,
		metric.WithDescription("Total number of process invocations by final state"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricInvocationTotal, err)
	}

	invocationDuration, err := meter.Float64Histogram(MetricInvocationDuration,
		metric.WithDescription("Wall time of process invocations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s histogram: %w", MetricInvocationDuration, err)
	}

	invocationActive, err := meter.Int64UpDownCounter(MetricInvocationActive,
		metric.WithDescription("Number of processes currently running"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s gauge: %w", MetricInvocationActive, err)
	}

	timeoutTotal, err := meter.Int64Counter(MetricTimeoutTotal,
		metric.WithDescription("Processes killed after exceeding their deadline"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricTimeoutTotal, err)
	}

	pumpBytes, err := meter.Int64Counter(MetricPumpBytes,
		metric.WithDescription("Bytes copied from process output streams"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricPumpBytes, err)
	}

	return &Metrics{
		invocationTotal:    invocationTotal,
		invocationDuration: invocationDuration,
		invocationActive:   invocationActive,
		timeoutTotal:       timeoutTotal,
		pumpBytes:          pumpBytes,
	}, nil
}

// RecordStart increments the running process count.
func (m *Metrics) RecordStart(ctx context.Context) {
	m.invocationActive.Add(ctx, 1)
}

// RecordEnd decrements the running count and records the finished run.
func (m *Metrics) RecordEnd(ctx context.Context, command, state string, duration time.Duration) {
	m.invocationActive.Add(ctx, -1)
	m.RecordOutcome(ctx, command, state, duration)
}

// RecordOutcome records a run that never started or has already been
// removed from the running count.
func (m *Metrics) RecordOutcome(ctx context.Context, command, state string, duration time.Duration) {
	m.invocationTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("command", command),
		attribute.String("state", state),
	))
	m.invocationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("command", command),
	))
}

// RecordTimeout counts a deadline kill.
func (m *Metrics) RecordTimeout(ctx context.Context, command string) {
	m.timeoutTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("command", command)))
}

// RecordPumpBytes records bytes copied from one stream.
func (m *Metrics) RecordPumpBytes(ctx context.Context, stream string, n int64) {
	m.pumpBytes.Add(ctx, n, metric.WithAttributes(attribute.String("stream", stream)))
}
