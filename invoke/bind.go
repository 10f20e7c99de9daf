package invoke

import (
	"fmt"
	"io"
	"math"
	"reflect"
	"time"

	"github.com/kbukum/cmdproxy/cmdline"
	"github.com/kbukum/cmdproxy/errors"
)

// binding is what one call's arguments contribute to an invocation.
type binding struct {
	values  []cmdline.Value
	extra   []string
	dir     string
	timeout time.Duration
	sink    io.Writer
}

// bind matches args to the declared parameters by position. For a variadic
// method every argument after the fixed ones belongs to the last parameter;
// a single []string or []any in that position is flattened.
func (d *Descriptor) bind(args []any) (*binding, error) {
	fixed := len(d.params)
	if d.variadic {
		fixed--
	}
	switch {
	case len(args) < fixed && d.variadic:
		return nil, d.bindError("", fmt.Sprintf("expected at least %d arguments, got %d", fixed, len(args)))
	case len(args) != fixed && !d.variadic:
		return nil, d.bindError("", fmt.Sprintf("expected %d arguments, got %d", fixed, len(args)))
	}

	b := &binding{values: make([]cmdline.Value, 0, d.template.Fixed())}
	for i, p := range d.params[:fixed] {
		if err := b.bindParam(p, args[i]); err != nil {
			return nil, d.bindError(paramLabel(i, p), err.Error())
		}
	}
	if !d.variadic {
		return b, nil
	}

	p := d.params[fixed]
	for j, a := range flatten(args[fixed:]) {
		s, ok, err := text(a)
		switch {
		case err != nil:
			return nil, d.bindError(paramLabel(fixed, p), fmt.Sprintf("element %d: %v", j, err))
		case !ok && !p.Nullable:
			return nil, d.bindError(paramLabel(fixed, p), fmt.Sprintf("element %d is nil", j))
		case ok:
			b.extra = append(b.extra, s)
		}
	}
	return b, nil
}

func (d *Descriptor) bindError(param, reason string) *errors.AppError {
	return errors.BindingError(d.name, param, reason).WithDetail("interface", d.iface)
}

func (b *binding) bindParam(p Param, arg any) error {
	switch p.Role {
	case RoleWorkDir:
		dir, err := dirOf(arg)
		b.dir = dir
		return err
	case RoleTimeout:
		d, err := durationOf(arg)
		b.timeout = d
		return err
	case RoleSink:
		if isNil(arg) {
			return fmt.Errorf("sink is nil")
		}
		w, ok := arg.(io.Writer)
		if !ok {
			return fmt.Errorf("%T is not a sink", arg)
		}
		b.sink = w
		return nil
	}

	s, ok, err := text(arg)
	switch {
	case err != nil:
		return err
	case ok:
		b.values = append(b.values, cmdline.Text(s))
	case p.Nullable:
		b.values = append(b.values, cmdline.Omitted)
	default:
		return fmt.Errorf("value is nil")
	}
	return nil
}

func flatten(rest []any) []any {
	if len(rest) != 1 {
		return rest
	}
	switch v := rest[0].(type) {
	case []any:
		return v
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out
	}
	return rest
}

// text renders a placeholder value. ok is false for nil.
func text(v any) (s string, ok bool, err error) {
	if isNil(v) {
		return "", false, nil
	}
	switch x := v.(type) {
	case string:
		return x, true, nil
	case fmt.Stringer:
		return x.String(), true, nil
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return fmt.Sprint(x), true, nil
	}
	if k := reflect.TypeOf(v).Kind(); k == reflect.Slice || k == reflect.Array {
		return "", false, fmt.Errorf("%T binds only to a variadic parameter", v)
	}
	return "", false, fmt.Errorf("unsupported value type %T", v)
}

// dirOf accepts a path string or Stringer. "" and nil mean unset.
func dirOf(v any) (string, error) {
	if isNil(v) {
		return "", nil
	}
	switch x := v.(type) {
	case string:
		return x, nil
	case fmt.Stringer:
		return x.String(), nil
	}
	return "", fmt.Errorf("%T is not a directory", v)
}

// maxTimeoutMillis is the largest millisecond count a time.Duration holds.
const maxTimeoutMillis = math.MaxInt64 / 1_000_000

// durationOf accepts a time.Duration or integer milliseconds. Values <= 0
// and nil mean unset.
func durationOf(v any) (time.Duration, error) {
	if isNil(v) {
		return 0, nil
	}
	var d time.Duration
	if x, ok := v.(time.Duration); ok {
		d = x
	} else {
		rv := reflect.ValueOf(v)
		switch {
		case rv.CanInt():
			ms := rv.Int()
			switch {
			case ms > maxTimeoutMillis:
				return 0, fmt.Errorf("timeout of %d ms is out of range", ms)
			case ms <= 0:
				return 0, nil
			}
			d = time.Duration(ms) * time.Millisecond
		case rv.CanUint():
			ms := rv.Uint()
			if ms > maxTimeoutMillis {
				return 0, fmt.Errorf("timeout of %d ms is out of range", ms)
			}
			d = time.Duration(ms) * time.Millisecond
		default:
			return 0, fmt.Errorf("%T is not a timeout", v)
		}
	}
	return max(d, 0), nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Chan, reflect.Func:
		return rv.IsNil()
	}
	return false
}
