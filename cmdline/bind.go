package cmdline

import (
	"fmt"
	"strings"

	"github.com/kbukum/cmdproxy/errors"
)

// Value is the value bound to one non-variadic placeholder.
type Value struct {
	Text string
	// Omit removes the placeholder. A word left with no content is dropped.
	Omit bool
}

// Text returns a Value holding s.
func Text(s string) Value { return Value{Text: s} }

// Omitted is the Value of a placeholder that contributes nothing.
var Omitted = Value{Omit: true}

// Strings converts ss to Values.
func Strings(ss ...string) []Value {
	vs := make([]Value, len(ss))
	for i, s := range ss {
		vs[i] = Text(s)
	}
	return vs
}

// Bind substitutes values into the template and returns the argument
// vector, command first. values fill the non-variadic placeholders in order;
// extra fills the variadic one.
func (t *Template) Bind(values []Value, extra ...string) ([]string, error) {
	if len(values) != t.Fixed() {
		return nil, t.bindError(fmt.Sprintf("expected %d values, got %d", t.Fixed(), len(values)))
	}
	if len(extra) > 0 && !t.variadic {
		return nil, t.bindError(fmt.Sprintf("template takes no variadic values, got %d", len(extra)))
	}

	argv := make([]string, 0, len(t.words)+len(extra))
	for _, w := range t.words {
		argv = w.bind(argv, values, extra)
	}
	if len(argv) == 0 {
		return nil, t.bindError("command line is empty after binding")
	}
	return argv, nil
}

func (t *Template) bindError(reason string) *errors.AppError {
	return errors.New(errors.ErrCodeBinding, "cannot bind template: "+reason).
		WithDetail("template", t.raw)
}

// bind appends the argv entries produced by w.
func (w word) bind(argv []string, values []Value, extra []string) []string {
	var (
		b        strings.Builder
		content  = w.quoted
		variadic = -1
	)
	for i, s := range w.segs {
		switch {
		case s.Kind == Literal:
			b.WriteString(s.Text)
			content = true
		case s.Variadic:
			variadic = i
		default:
			v := values[s.Index]
			if !v.Omit {
				b.WriteString(v.Text)
				content = true
			}
		}
		if variadic >= 0 {
			break
		}
	}
	if variadic < 0 {
		if content {
			argv = append(argv, b.String())
		}
		return argv
	}

	prefix := b.String()
	var sb strings.Builder
	for _, s := range w.segs[variadic+1:] {
		if s.Kind == Literal {
			sb.WriteString(s.Text)
			content = true
			continue
		}
		if v := values[s.Index]; !v.Omit {
			sb.WriteString(v.Text)
			content = true
		}
	}
	suffix := sb.String()

	switch len(extra) {
	case 0:
		if content {
			argv = append(argv, prefix+suffix)
		}
	case 1:
		argv = append(argv, prefix+extra[0]+suffix)
	default:
		argv = append(argv, prefix+extra[0])
		argv = append(argv, extra[1:len(extra)-1]...)
		argv = append(argv, extra[len(extra)-1]+suffix)
	}
	return argv
}
