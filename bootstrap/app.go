package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kbukum/cmdproxy/config"
	"github.com/kbukum/cmdproxy/invoke"
	"github.com/kbukum/cmdproxy/logger"
	"github.com/kbukum/cmdproxy/observability"
	"github.com/kbukum/cmdproxy/version"
)

// App carries what a cmdproxy program needs for the duration of one task:
// validated configuration, the logger, and telemetry when enabled.
type App struct {
	Name    string
	Version string
	Cfg     *config.Config
	Logger  *logger.Logger
	// Metrics is nil until startup, and stays nil with telemetry disabled.
	Metrics *observability.Metrics

	gracefulTimeout time.Duration
	onStart         []Hook
	onStop          []Hook
}

// NewApp applies defaults to cfg, validates it and initializes the logger.
func NewApp(cfg *config.Config, opts ...Option) (*App, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := resolveOptions(opts)
	app := &App{
		Name:            cfg.Name,
		Version:         o.version,
		Cfg:             cfg,
		gracefulTimeout: 15 * time.Second,
	}
	if app.Version == "" {
		app.Version = version.Get().Short()
	}
	if o.gracefulTimeout != nil {
		app.gracefulTimeout = *o.gracefulTimeout
	}
	if o.logger != nil {
		app.Logger = o.logger
	} else {
		logger.Init(cfg.Logging)
		app.Logger = logger.GetGlobalLogger()
	}
	return app, nil
}

// InvokeOptions returns the proxy options derived from the application:
// exec defaults, logger and metrics. Call it from inside RunTask so metrics
// are initialized.
func (a *App) InvokeOptions() []invoke.Option {
	return []invoke.Option{
		invoke.WithConfig(a.Cfg.Exec),
		invoke.WithLogger(a.Logger),
		invoke.WithMetrics(a.Metrics),
	}
}

// RunTask starts telemetry and OnStart hooks, runs task, then shuts down.
// SIGINT and SIGTERM cancel the task context, which kills any running
// process. The task error takes precedence over shutdown errors.
func (a *App) RunTask(ctx context.Context, task func(ctx context.Context) error) error {
	taskCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.startup(taskCtx); err != nil {
		_ = a.stop()
		return err
	}

	taskErr := task(taskCtx)
	if stopErr := a.stop(); stopErr != nil && taskErr == nil {
		return stopErr
	}
	return taskErr
}

func (a *App) startup(ctx context.Context) error {
	a.Logger.Debug("starting", logger.Fields("name", a.Name, "version", a.Version))

	if a.Cfg.Telemetry.Enabled {
		if err := a.startTelemetry(ctx); err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
	}
	if err := runHooks(ctx, a.onStart); err != nil {
		return fmt.Errorf("onStart hook failed: %w", err)
	}
	return nil
}

func (a *App) startTelemetry(ctx context.Context) error {
	tp, err := observability.InitTracer(ctx, a.Cfg.TracerConfig(a.Version))
	if err != nil {
		return err
	}
	a.OnStop(tp.Shutdown)

	mp, err := observability.InitMeter(ctx, a.Cfg.MeterConfig(a.Version))
	if err != nil {
		return err
	}
	a.OnStop(mp.Shutdown)

	a.Metrics, err = observability.NewMetrics(mp.Meter(observability.TracerName))
	return err
}

// stop runs the OnStop hooks, most recent first, within the graceful timeout.
func (a *App) stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.gracefulTimeout)
	defer cancel()

	var firstErr error
	for i := len(a.onStop) - 1; i >= 0; i-- {
		if err := a.onStop[i](ctx); err != nil {
			a.Logger.Error("onStop hook failed", logger.Fields("hook", i, logger.FieldError, err.Error()))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
