package config

import (
	"fmt"
	"time"

	"github.com/kbukum/cmdproxy/errors"
	"github.com/kbukum/cmdproxy/logger"
	"github.com/kbukum/cmdproxy/observability"
	"github.com/kbukum/cmdproxy/process"
	"github.com/kbukum/cmdproxy/resilience"
	"github.com/kbukum/cmdproxy/validation"
)

// Config is the top-level cmdproxy configuration.
type Config struct {
	Name        string        `yaml:"name" mapstructure:"name" validate:"required"`
	Environment string        `yaml:"environment" mapstructure:"environment" validate:"oneof=development staging production"`
	Logging     logger.Config `yaml:"logging" mapstructure:"logging"`
	Exec        ExecConfig    `yaml:"exec" mapstructure:"exec"`
	Telemetry   Telemetry     `yaml:"telemetry" mapstructure:"telemetry"`
}

// Telemetry configures OTLP export of spans and metrics.
type Telemetry struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// Endpoint is the OTLP HTTP collector host:port.
	Endpoint   string        `yaml:"endpoint" mapstructure:"endpoint" validate:"required_if=Enabled true"`
	Insecure   bool          `yaml:"insecure" mapstructure:"insecure"`
	SampleRate float64       `yaml:"sample_rate" mapstructure:"sample_rate" validate:"gte=0,lte=1"`
	Interval   time.Duration `yaml:"interval" mapstructure:"interval" validate:"gte=0"`
}

// ExecConfig holds the lowest-precedence defaults for every invocation.
// Declarations and call arguments override them.
type ExecConfig struct {
	// Timeout applies when no declaration or call sets one. Zero means none.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"gte=0"`
	// Dir is the working directory when no declaration or call sets one.
	Dir string `yaml:"dir" mapstructure:"dir" validate:"omitempty,dir"`
	// Stderr is the default error stream policy: discard, merge or separate.
	Stderr string `yaml:"stderr" mapstructure:"stderr" validate:"omitempty,oneof=discard merge separate"`
	// DrainTimeout bounds output draining after exit.
	DrainTimeout time.Duration `yaml:"drain_timeout" mapstructure:"drain_timeout" validate:"gte=0"`
	// BufferSize is the pump read buffer size.
	BufferSize int `yaml:"buffer_size" mapstructure:"buffer_size" validate:"gte=0"`
	// MaxConcurrent caps running processes. Zero means no cap.
	MaxConcurrent int `yaml:"max_concurrent" mapstructure:"max_concurrent" validate:"gte=0"`
	// Retry relaunches commands whose start failed. Nil disables retries.
	Retry *resilience.RetryConfig `yaml:"retry" mapstructure:"retry"`
	// CircuitBreaker stops launching after repeated launch failures.
	CircuitBreaker *resilience.CircuitBreakerConfig `yaml:"circuit_breaker" mapstructure:"circuit_breaker"`
}

// ApplyDefaults applies default values.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "cmdproxy"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
	c.Logging.ApplyDefaults()
	c.Exec.ApplyDefaults()
	c.Telemetry.ApplyDefaults()
}

// ApplyDefaults fills the collector endpoint, full sampling and the metric
// export interval.
func (t *Telemetry) ApplyDefaults() {
	if t.Endpoint == "" {
		t.Endpoint = "localhost:4318"
	}
	if t.SampleRate == 0 {
		t.SampleRate = 1
	}
	if t.Interval <= 0 {
		t.Interval = 15 * time.Second
	}
}

// TracerConfig converts to the tracer settings of service at version.
func (c *Config) TracerConfig(version string) observability.TracerConfig {
	return observability.TracerConfig{
		ServiceName:    c.Name,
		ServiceVersion: version,
		Environment:    c.Environment,
		Endpoint:       c.Telemetry.Endpoint,
		Insecure:       c.Telemetry.Insecure,
		SampleRate:     c.Telemetry.SampleRate,
	}
}

// MeterConfig converts to the meter settings of service at version.
func (c *Config) MeterConfig(version string) observability.MeterConfig {
	return observability.MeterConfig{
		ServiceName:    c.Name,
		ServiceVersion: version,
		Environment:    c.Environment,
		Endpoint:       c.Telemetry.Endpoint,
		Insecure:       c.Telemetry.Insecure,
		Interval:       c.Telemetry.Interval,
	}
}

// ApplyDefaults fills unset engine tuning values.
func (c *ExecConfig) ApplyDefaults() {
	if c.Stderr == "" {
		c.Stderr = process.StderrDiscard.String()
	}
	if c.DrainTimeout <= 0 {
		c.DrainTimeout = process.DefaultDrainTimeout
	}
}

// Validate validates the configuration. Errors carry code CONFIG_INVALID.
func (c *Config) Validate() error {
	v := validation.New().Struct("", c)
	if err := c.Logging.Validate(); err != nil {
		v.AddError("logging", err.Error())
	}
	if c.Exec.Retry != nil {
		v.Min("exec.retry.max_attempts", c.Exec.Retry.MaxAttempts, 0)
	}
	if appErr := v.Validate(errors.ErrCodeConfig); appErr != nil {
		return appErr
	}
	return nil
}

// StderrPolicy returns the parsed default error stream policy.
func (c ExecConfig) StderrPolicy() process.Policy {
	p, err := process.ParsePolicy(c.Stderr)
	if err != nil {
		return process.StderrDiscard
	}
	return p
}

// EngineConfig converts to the engine configuration.
func (c ExecConfig) EngineConfig() process.Config {
	return process.Config{
		Dir:          c.Dir,
		Timeout:      c.Timeout,
		DrainTimeout: c.DrainTimeout,
		BufferSize:   c.BufferSize,
	}
}

// Resilience converts to the runner policies.
func (c ExecConfig) Resilience() process.ResilienceConfig {
	rc := process.ResilienceConfig{
		Retry:          c.Retry,
		CircuitBreaker: c.CircuitBreaker,
	}
	if c.MaxConcurrent > 0 {
		rc.Bulkhead = &resilience.BulkheadConfig{
			Name:          "exec",
			MaxConcurrent: c.MaxConcurrent,
		}
	}
	return rc
}

// Load reads, defaults and validates the configuration of service.
func Load(service string, opts ...LoaderOption) (*Config, error) {
	cfg := &Config{Name: service}
	if err := LoadConfig(service, cfg, opts...); err != nil {
		return nil, errors.ConfigError(err.Error()).WithCause(err)
	}
	if cfg.Name == "" {
		cfg.Name = service
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// String summarizes the exec defaults for logs.
func (c ExecConfig) String() string {
	return fmt.Sprintf("timeout=%s dir=%q stderr=%s drain=%s", c.Timeout, c.Dir, c.Stderr, c.DrainTimeout)
}
