package invoke

import (
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/cmdproxy/config"
	"github.com/kbukum/cmdproxy/logger"
	"github.com/kbukum/cmdproxy/observability"
	"github.com/kbukum/cmdproxy/process"
	"github.com/kbukum/cmdproxy/resilience"
)

// Option configures Build and Compile.
type Option func(*options)

type options struct {
	overrides  map[string]string
	dir        string
	timeout    time.Duration
	stderr     process.Policy
	engine     process.Config
	exec       process.Executor
	log        *logger.Logger
	metrics    *observability.Metrics
	tp         trace.TracerProvider
	resilience process.ResilienceConfig
}

func newOptions(opts []Option) *options {
	o := &options{
		overrides: make(map[string]string),
		stderr:    process.StderrDiscard,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// On replaces the command template of method.
func On(method, run string) Option {
	return func(o *options) { o.overrides[method] = run }
}

// WithDir sets the working directory of methods that declare none.
func WithDir(dir string) Option {
	return func(o *options) { o.dir = dir }
}

// WithTimeout sets the deadline of methods that declare none.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithConfig applies exec defaults from configuration: engine settings, the
// default stderr policy and the resilience policies it enables.
func WithConfig(cfg config.ExecConfig) Option {
	return func(o *options) {
		o.engine = cfg.EngineConfig()
		o.stderr = cfg.StderrPolicy()
		rc := cfg.Resilience()
		if rc.Retry != nil {
			o.resilience.Retry = rc.Retry
		}
		if rc.CircuitBreaker != nil {
			o.resilience.CircuitBreaker = rc.CircuitBreaker
		}
		if rc.Bulkhead != nil {
			o.resilience.Bulkhead = rc.Bulkhead
		}
	}
}

// WithEngine runs commands on exec instead of a new process.Engine.
func WithEngine(exec process.Executor) Option {
	return func(o *options) { o.exec = exec }
}

// WithLogger sets the logger of the proxy and of the engine it creates.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithMetrics records run metrics on m. It has no effect with WithEngine.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithTracerProvider takes spans from tp instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tp = tp }
}

// WithRetry relaunches commands whose start failed.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(o *options) { o.resilience.Retry = &cfg }
}

// WithCircuitBreaker stops launching after repeated launch failures.
func WithCircuitBreaker(cfg resilience.CircuitBreakerConfig) Option {
	return func(o *options) { o.resilience.CircuitBreaker = &cfg }
}

// WithBulkhead caps the number of concurrently running calls.
func WithBulkhead(cfg resilience.BulkheadConfig) Option {
	return func(o *options) { o.resilience.Bulkhead = &cfg }
}

// executor assembles the executor the proxy runs commands on.
func (o *options) executor() process.Executor {
	exec := o.exec
	if exec == nil {
		exec = process.NewEngine(o.engine,
			process.WithLogger(o.log),
			process.WithMetrics(o.metrics),
			process.WithTracerProvider(o.tp),
		)
	}
	if o.resilience.IsEmpty() {
		return exec
	}
	rc := o.resilience
	if rc.Logger == nil {
		rc.Logger = o.log
	}
	return process.NewRunner(exec, rc)
}

func (o *options) proxyLogger() *logger.Logger {
	if o.log != nil {
		return o.log
	}
	return logger.Get("invoke")
}

func (o *options) tracer() trace.Tracer {
	if o.tp != nil {
		return o.tp.Tracer(observability.TracerName)
	}
	return observability.Tracer(observability.TracerName)
}
