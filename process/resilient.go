package process

import (
	"context"
	"time"

	"github.com/kbukum/cmdproxy/errors"
	"github.com/kbukum/cmdproxy/logger"
	"github.com/kbukum/cmdproxy/resilience"
)

// ResilienceConfig bundles optional launch policies.
// Nil fields are skipped; an empty config runs the executor directly.
type ResilienceConfig struct {
	// Retry relaunches commands whose start failed.
	Retry *resilience.RetryConfig
	// CircuitBreaker stops launching after repeated launch failures.
	CircuitBreaker *resilience.CircuitBreakerConfig
	// Bulkhead caps the number of processes running at once.
	Bulkhead *resilience.BulkheadConfig
	// Logger receives relaunch warnings. Nil uses the "process" logger.
	Logger *logger.Logger
}

// IsEmpty reports whether no policy is configured.
func (c ResilienceConfig) IsEmpty() bool {
	return c.Retry == nil && c.CircuitBreaker == nil && c.Bulkhead == nil
}

// Runner wraps an Executor with persistent resilience state. Create one with
// NewRunner and call Run repeatedly; circuit breaker and bulkhead state is
// shared by all calls.
type Runner struct {
	exec  Executor
	retry *resilience.RetryConfig
	cb    *resilience.CircuitBreaker
	bh    *resilience.Bulkhead
	log   *logger.Logger
}

var _ Executor = (*Runner)(nil)

// NewRunner wraps exec, or the default engine if exec is nil.
func NewRunner(exec Executor, cfg ResilienceConfig) *Runner {
	if exec == nil {
		exec = defaultEngine
	}
	r := &Runner{exec: exec, retry: cfg.Retry, log: cfg.Logger}
	if r.log == nil {
		r.log = logger.Get("process")
	}
	if cfg.CircuitBreaker != nil {
		cbCfg := *cfg.CircuitBreaker
		if cbCfg.IsFailure == nil {
			// Timeouts and non-zero exits say nothing about whether the
			// binary can be launched.
			cbCfg.IsFailure = errors.IsExecution
		}
		r.cb = resilience.NewCircuitBreaker(cbCfg)
	}
	if cfg.Bulkhead != nil {
		r.bh = resilience.NewBulkhead(*cfg.Bulkhead)
	}
	return r
}

// Breaker returns the circuit breaker, or nil if none is configured.
func (r *Runner) Breaker() *resilience.CircuitBreaker {
	return r.cb
}

// Run executes cmd through retry, circuit breaker and bulkhead, outermost
// first. Rejections by the breaker or bulkhead are EXECUTION_FAILED errors
// wrapping resilience.ErrCircuitOpen or the bulkhead error. Before each
// relaunch cmd.ResetOutput is called, so only the last attempt's output
// remains.
func (r *Runner) Run(ctx context.Context, cmd Command) (*Result, error) {
	var (
		res *Result
		err error
	)
	if r.retry == nil {
		res, err = r.attempt(ctx, cmd)
	} else {
		cfg := *r.retry
		if cfg.OnRetry == nil {
			log := r.log.WithContext(ctx)
			cfg.OnRetry = func(attempt int, err error, backoff time.Duration) {
				log.Warn("relaunching after failed attempt", logger.Fields(
					logger.FieldCommand, cmd.Binary,
					logger.FieldAttempt, attempt,
					logger.FieldErrorCode, errorCode(err),
					logger.FieldError, err.Error(),
					"backoff_ms", backoff.Milliseconds(),
				))
			}
		}
		attempts := 0
		res, err = resilience.Retry(ctx, cfg, func() (*Result, error) {
			if attempts > 0 && cmd.ResetOutput != nil {
				cmd.ResetOutput()
			}
			attempts++
			return r.attempt(ctx, cmd)
		})
	}

	if err != nil && !errors.IsAppError(err) {
		err = errors.ExecutionError(cmd.Binary, err)
	}
	if res == nil {
		res = &Result{State: StateLaunchFailed, ExitCode: -1}
	}
	return res, err
}

func (r *Runner) attempt(ctx context.Context, cmd Command) (*Result, error) {
	run := func() (*Result, error) {
		if r.bh == nil {
			return r.exec.Run(ctx, cmd)
		}
		return resilience.Hold(ctx, r.bh, func() (*Result, error) {
			return r.exec.Run(ctx, cmd)
		})
	}
	if r.cb == nil {
		return run()
	}
	return resilience.Call(r.cb, run)
}

func errorCode(err error) string {
	if appErr, ok := errors.AsAppError(err); ok {
		return string(appErr.Code)
	}
	return "UNKNOWN"
}
