package invoke

import (
	"context"
	"fmt"
	"maps"
	"reflect"
	"slices"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/cmdproxy/errors"
	"github.com/kbukum/cmdproxy/logger"
	"github.com/kbukum/cmdproxy/observability"
	"github.com/kbukum/cmdproxy/process"
	"github.com/kbukum/cmdproxy/result"
)

// Proxy runs the methods of one Interface as external processes. It is safe
// for concurrent use; a failed call leaves it usable.
type Proxy struct {
	name    string
	methods map[string]*Descriptor
	exec    process.Executor
	log     *logger.Logger
	tracer  trace.Tracer
}

// Compile builds the descriptors of iface and returns a Proxy dispatching
// to them.
func Compile(iface Interface, opts ...Option) (*Proxy, error) {
	o := newOptions(opts)
	descs, err := build(iface, o)
	if err != nil {
		return nil, err
	}
	return &Proxy{
		name:    iface.Name,
		methods: descs,
		exec:    o.executor(),
		log:     o.proxyLogger().WithFields(logger.Fields(logger.FieldInterface, iface.Name)),
		tracer:  o.tracer(),
	}, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(iface Interface, opts ...Option) *Proxy {
	p, err := Compile(iface, opts...)
	if err != nil {
		panic(err)
	}
	return p
}

// Name returns the interface name.
func (p *Proxy) Name() string { return p.name }

// Methods returns the method names in sorted order.
func (p *Proxy) Methods() []string {
	return slices.Sorted(maps.Keys(p.methods))
}

// Descriptor returns the compiled form of the named method.
func (p *Proxy) Descriptor(name string) (*Descriptor, bool) {
	d, ok := p.methods[name]
	return d, ok
}

// Call runs method with args and returns its result, or nil for methods
// that return nothing. Errors are *errors.AppError with code BINDING_INVALID,
// EXECUTION_FAILED, TIMEOUT or RESULT_INVALID.
func (p *Proxy) Call(ctx context.Context, method string, args ...any) (any, error) {
	d, ok := p.methods[method]
	if !ok {
		return nil, errors.BindingError(method, "", "no such method").WithDetail("interface", p.name)
	}
	return p.invoke(ctx, d, args)
}

// Exec runs method and discards any result.
func (p *Proxy) Exec(ctx context.Context, method string, args ...any) error {
	_, err := p.Call(ctx, method, args...)
	return err
}

// Func returns a typed function calling method. It fails with
// DECLARATION_INVALID if the method does not return a T.
func Func[T any](p *Proxy, method string) (func(ctx context.Context, args ...any) (T, error), error) {
	d, ok := p.methods[method]
	if !ok {
		return nil, errors.DeclarationError(method, "no such method")
	}
	want := reflect.TypeFor[T]()
	if d.returns != ReturnsResult {
		return nil, errors.DeclarationError(method, fmt.Sprintf("method returns nothing, not %s", want))
	}
	if got := d.factory.Type(); got != want {
		return nil, errors.DeclarationError(method, fmt.Sprintf("method returns %s, not %s", got, want))
	}
	return func(ctx context.Context, args ...any) (T, error) {
		var zero T
		v, err := p.invoke(ctx, d, args)
		if err != nil || v == nil {
			return zero, err
		}
		return v.(T), nil
	}, nil
}

func (p *Proxy) invoke(ctx context.Context, d *Descriptor, args []any) (any, error) {
	id := logger.InvocationIDFromContext(ctx)
	if id == "" {
		id = uuid.NewString()
		ctx = logger.ContextWithInvocationID(ctx, id)
	}
	ctx, span := p.tracer.Start(ctx, observability.SpanInvoke, trace.WithAttributes(
		attribute.String(observability.AttrInterface, d.iface),
		attribute.String(observability.AttrMethod, d.name),
		attribute.String(observability.AttrInvocationID, id),
	))
	defer span.End()

	v, err := p.run(ctx, d, args)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if appErr, ok := errors.AsAppError(err); ok {
			span.SetAttributes(attribute.String(observability.AttrErrorCode, string(appErr.Code)))
		}
	}
	return v, err
}

func (p *Proxy) run(ctx context.Context, d *Descriptor, args []any) (any, error) {
	log := p.log.WithContext(ctx).WithFields(logger.Fields(logger.FieldMethod, d.name))

	b, err := d.bind(args)
	if err != nil {
		log.Debug("rejected arguments", logger.Fields(logger.FieldError, err.Error()))
		return nil, err
	}
	argv, err := d.template.Bind(b.values, b.extra...)
	if err != nil {
		if appErr, ok := errors.AsAppError(err); ok {
			return nil, appErr.WithDetail("method", d.name)
		}
		return nil, err
	}

	cmd := process.Command{
		Binary:  argv[0],
		Args:    argv[1:],
		Dir:     firstString(b.dir, d.dir),
		Stderr:  d.stderr,
		Timeout: firstDuration(b.timeout, d.timeout),
	}
	var sink result.Sink
	switch {
	case b.sink != nil:
		cmd.Stdout = b.sink
	case d.returns == ReturnsResult:
		sink = d.factory.NewSink()
		cmd.Stdout = sink
		cmd.ResetOutput = sink.Reset
	}

	log.Debug("invoking", logger.Fields(logger.FieldCommand, cmd.String()))
	res, err := p.exec.Run(ctx, cmd)
	if err != nil {
		return nil, err
	}
	log.Debug("invocation finished", logger.Fields(
		logger.FieldPid, res.Pid,
		logger.FieldExitCode, res.ExitCode,
		logger.FieldDuration, res.Duration.Milliseconds(),
	))
	if sink == nil {
		return nil, nil
	}

	v, err := d.factory.Build(sink)
	if err != nil {
		return nil, errors.ResultError(d.name, err).WithDetail("interface", d.iface)
	}
	return v, nil
}
