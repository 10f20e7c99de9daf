package process

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/cmdproxy/errors"
	"github.com/kbukum/cmdproxy/logger"
	"github.com/kbukum/cmdproxy/observability"
	"github.com/kbukum/cmdproxy/pump"
)

// DefaultDrainTimeout bounds how long output pumps may keep reading after the
// process has exited.
const DefaultDrainTimeout = 2 * time.Second

// Config configures an Engine.
type Config struct {
	// Dir is the working directory used when a command names none.
	Dir string `yaml:"dir,omitempty" mapstructure:"dir"`
	// Timeout is the deadline used when a command sets none. Zero means none.
	Timeout time.Duration `yaml:"timeout,omitempty" mapstructure:"timeout"`
	// DrainTimeout bounds pump joins after exit. A descendant that inherited
	// the output pipe cannot hold the run open longer than this.
	DrainTimeout time.Duration `yaml:"drain_timeout,omitempty" mapstructure:"drain_timeout"`
	// BufferSize is the pump read buffer size.
	BufferSize int `yaml:"buffer_size,omitempty" mapstructure:"buffer_size"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.DrainTimeout <= 0 {
		c.DrainTimeout = DefaultDrainTimeout
	}
	if c.BufferSize <= 0 {
		c.BufferSize = pump.DefaultBufferSize
	}
}

// Executor runs commands. Engine and Runner implement it.
type Executor interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
}

// Engine launches processes and supervises them until they end.
// It holds no per-run state and is safe for concurrent use.
type Engine struct {
	config  Config
	log     *logger.Logger
	metrics *observability.Metrics
	tracer  trace.Tracer
}

var _ Executor = (*Engine)(nil)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithMetrics records run metrics on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithTracerProvider takes spans from tp instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) {
		if tp != nil {
			e.tracer = tp.Tracer(observability.TracerName)
		}
	}
}

// NewEngine creates an engine.
func NewEngine(cfg Config, opts ...Option) *Engine {
	cfg.ApplyDefaults()
	e := &Engine{
		config: cfg,
		log:    logger.Get("process"),
		tracer: observability.Tracer(observability.TracerName),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the effective engine configuration.
func (e *Engine) Config() Config {
	return e.config
}

var defaultEngine = NewEngine(Config{})

// Run executes cmd on a default engine.
func Run(ctx context.Context, cmd Command) (*Result, error) {
	return defaultEngine.Run(ctx, cmd)
}

// Run launches cmd and blocks until it completes, times out, or ctx ends.
// The returned Result is never nil. Errors are *errors.AppError with code
// EXECUTION_FAILED (launch failure, cancellation) or TIMEOUT.
func (e *Engine) Run(ctx context.Context, cmd Command) (*Result, error) {
	id := logger.InvocationIDFromContext(ctx)
	if id == "" {
		id = uuid.NewString()
		ctx = logger.ContextWithInvocationID(ctx, id)
	}

	ctx, span := e.tracer.Start(ctx, observability.SpanProcessRun, trace.WithAttributes(
		attribute.String(observability.AttrCommand, cmd.Binary),
		attribute.Int(observability.AttrArgCount, len(cmd.Args)),
		attribute.String(observability.AttrInvocationID, id),
	))
	defer span.End()

	x := &execution{
		engine:  e,
		cmd:     cmd,
		dir:     e.resolveDir(cmd),
		timeout: e.resolveTimeout(cmd),
		res:     &Result{State: StateIdle, ExitCode: -1},
		log:     e.log.WithContext(ctx).WithFields(logger.Fields(logger.FieldCommand, cmd.Binary)),
	}
	err := x.run(ctx)

	span.SetAttributes(
		attribute.Int(observability.AttrPid, x.res.Pid),
		attribute.String(observability.AttrState, x.res.State.String()),
		attribute.Int(observability.AttrExitCode, x.res.ExitCode),
		attribute.Int64(observability.AttrDurationMs, x.res.Duration.Milliseconds()),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if appErr, ok := errors.AsAppError(err); ok {
			span.SetAttributes(attribute.String(observability.AttrErrorCode, string(appErr.Code)))
		}
	}
	return x.res, err
}

func (e *Engine) resolveDir(cmd Command) string {
	if cmd.Dir != "" {
		return cmd.Dir
	}
	return e.config.Dir
}

func (e *Engine) resolveTimeout(cmd Command) time.Duration {
	if cmd.Timeout > 0 {
		return cmd.Timeout
	}
	return e.config.Timeout
}

// stream is one monitored output stream: the pipe and the pump draining it.
type stream struct {
	name string
	r, w *os.File
	pump *pump.Pump
}

// execution is the state of one Run.
type execution struct {
	engine  *Engine
	cmd     Command
	dir     string
	timeout time.Duration
	res     *Result
	log     *logger.Logger

	streams []*stream
	stderr  *capBuffer
}

func (x *execution) run(ctx context.Context) error {
	if x.cmd.Binary == "" {
		return x.launchFailed(ctx, fmt.Errorf("binary is required"))
	}
	if err := ctx.Err(); err != nil {
		return x.launchFailed(ctx, err)
	}

	x.res.State = StateStarting
	c := exec.Command(x.cmd.Binary, x.cmd.Args...) //nolint:gosec // running caller-declared commands is the purpose of this package
	c.Dir = x.dir
	c.Stdin = x.cmd.Stdin
	c.WaitDelay = x.engine.config.DrainTimeout
	setProcessGroup(c)

	if err := x.openStreams(ctx, c); err != nil {
		return x.launchFailed(ctx, err)
	}

	start := time.Now()
	if err := c.Start(); err != nil {
		x.closeAll()
		return x.launchFailed(ctx, err)
	}
	// The child owns the write ends now. Closing ours lets pumps see EOF
	// once every process holding them has exited.
	for _, s := range x.streams {
		s.w.Close()
	}

	x.res.Pid = c.Process.Pid
	x.res.State = StateRunning
	x.log = x.log.WithFields(logger.Fields(logger.FieldPid, x.res.Pid))
	if m := x.engine.metrics; m != nil {
		m.RecordStart(ctx)
	}
	x.log.Debug("process started", logger.Fields(
		logger.FieldDir, x.dir,
		logger.FieldTimeout, x.timeout.Milliseconds(),
	))

	for _, s := range x.streams {
		s.pump.Start()
		go closeOnFailure(s)
	}

	exited := make(chan error, 1)
	go func() { exited <- c.Wait() }()

	var deadline <-chan time.Time
	if x.timeout > 0 {
		timer := time.NewTimer(x.timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	var err error
	select {
	case waitErr := <-exited:
		x.res.Duration = time.Since(start)
		x.drain(c)
		x.res.State = StateCompleted
		x.res.ExitCode = c.ProcessState.ExitCode()
		x.completed(waitErr)
	case <-deadline:
		x.teardown(c, exited)
		x.res.Duration = time.Since(start)
		x.res.State = StateTimedOut
		x.log.Warn("process timed out", logger.Fields(logger.FieldTimeout, x.timeout.Milliseconds()))
		if m := x.engine.metrics; m != nil {
			m.RecordTimeout(ctx, x.cmd.Binary)
		}
		err = errors.Timeout(x.cmd.Binary, x.timeout)
	case <-ctx.Done():
		x.teardown(c, exited)
		x.res.Duration = time.Since(start)
		x.res.State = StateCanceled
		x.log.Info("process canceled", logger.ErrorFields("run", ctx.Err()))
		err = errors.ExecutionError(x.cmd.Binary, ctx.Err())
	}

	x.collect()
	if m := x.engine.metrics; m != nil {
		m.RecordEnd(ctx, x.cmd.Binary, x.res.State.String(), x.res.Duration)
		for _, s := range x.streams {
			m.RecordPumpBytes(ctx, s.name, s.pump.Bytes())
		}
	}
	return err
}

func (x *execution) launchFailed(ctx context.Context, cause error) error {
	x.res.State = StateLaunchFailed
	x.log.Warn("process launch failed", logger.Fields(
		logger.FieldDir, x.dir,
		logger.FieldError, cause.Error(),
	))
	if m := x.engine.metrics; m != nil {
		m.RecordOutcome(ctx, x.cmd.Binary, x.res.State.String(), 0)
	}
	return errors.ExecutionError(x.cmd.Binary, cause)
}

// openStreams creates one pipe and one pump per monitored stream. Under
// StderrDiscard stderr is left nil, which exec connects to the null device.
func (x *execution) openStreams(ctx context.Context, c *exec.Cmd) error {
	var out io.Writer = io.Discard
	if x.cmd.Stdout != nil {
		out = x.cmd.Stdout
	}
	sink := &lockedWriter{w: out}

	stdout, err := x.newStream(ctx, "stdout", sink)
	if err != nil {
		return err
	}
	c.Stdout = stdout.w

	switch x.cmd.Stderr {
	case StderrMerge:
		s, err := x.newStream(ctx, "stderr", sink)
		if err != nil {
			x.closeAll()
			return err
		}
		c.Stderr = s.w
	case StderrSeparate:
		x.stderr = &capBuffer{limit: MaxStderrCapture}
		s, err := x.newStream(ctx, "stderr", x.stderr)
		if err != nil {
			x.closeAll()
			return err
		}
		c.Stderr = s.w
	}
	return nil
}

func (x *execution) newStream(ctx context.Context, name string, dst io.Writer) (*stream, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("creating %s pipe: %w", name, err)
	}
	s := &stream{
		name: name,
		r:    r,
		w:    w,
		pump: pump.New(name, r, dst,
			pump.WithLogger(logger.Get("pump").WithContext(ctx)),
			pump.WithBufferSize(x.engine.config.BufferSize),
		),
	}
	x.streams = append(x.streams, s)
	return s, nil
}

// drain joins the pumps after a natural exit. If a pump is still reading
// after DrainTimeout, a descendant holds the pipe: the process group is
// killed and the pumps are stopped before the join.
func (x *execution) drain(c *exec.Cmd) {
	timer := time.NewTimer(x.engine.config.DrainTimeout)
	defer timer.Stop()

	for _, s := range x.streams {
		select {
		case <-s.pump.Done():
		case <-timer.C:
			x.log.Warn("output stream still open after exit", logger.Fields(
				logger.FieldStream, s.name,
				"drain_timeout_ms", x.engine.config.DrainTimeout.Milliseconds(),
			))
			if err := killGroup(c.Process); err != nil {
				x.log.Debug("kill after exit failed", logger.ErrorFields("kill", err))
			}
			x.stopPumps()
			return
		}
	}
	x.closeAll()
}

// teardown kills the process group, reaps the process, then stops and joins
// the pumps.
func (x *execution) teardown(c *exec.Cmd, exited <-chan error) {
	if err := killGroup(c.Process); err != nil {
		x.log.Warn("kill failed", logger.ErrorFields("kill", err))
	}
	<-exited
	x.stopPumps()
}

// stopPumps raises every stop flag, closes the read ends to unblock pending
// reads, and waits for the pumps to return.
func (x *execution) stopPumps() {
	for _, s := range x.streams {
		s.pump.Stop()
	}
	x.closeAll()
	for _, s := range x.streams {
		s.pump.Wait()
	}
}

// closeOnFailure closes the read end of a pump that gave up on a broken sink,
// so the child sees a broken pipe instead of blocking on a full one.
func closeOnFailure(s *stream) {
	<-s.pump.Done()
	if s.pump.Err() != nil {
		s.r.Close()
	}
}

func (x *execution) closeAll() {
	for _, s := range x.streams {
		s.r.Close()
		s.w.Close()
	}
}

func (x *execution) completed(waitErr error) {
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !stderrors.As(waitErr, &exitErr) {
			x.log.Warn("process wait reported an error", logger.ErrorFields("wait", waitErr))
		}
	}

	fields := logger.Fields(
		logger.FieldExitCode, x.res.ExitCode,
		logger.FieldDuration, x.res.Duration.Milliseconds(),
	)
	if x.res.ExitCode == 0 {
		x.log.Debug("process completed", fields)
		return
	}
	if x.stderr != nil {
		fields["stderr"] = string(x.stderr.Bytes())
	}
	x.log.Warn("process exited with non-zero status", fields)
}

// collect copies per-stream outcomes into the result. Pumps have been joined.
func (x *execution) collect() {
	for _, s := range x.streams {
		if s.name == "stdout" || x.cmd.Stderr == StderrMerge {
			x.res.Stdout += s.pump.Bytes()
		}
	}
	if x.stderr != nil {
		x.res.Stderr = x.stderr.Bytes()
	}
}
