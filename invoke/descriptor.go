package invoke

import (
	"fmt"
	"reflect"
	"slices"
	"time"

	"github.com/kbukum/cmdproxy/cmdline"
	"github.com/kbukum/cmdproxy/errors"
	"github.com/kbukum/cmdproxy/process"
	"github.com/kbukum/cmdproxy/result"
	"github.com/kbukum/cmdproxy/validation"
)

// Descriptor is the compiled form of one method. It is immutable and safe
// for concurrent use.
type Descriptor struct {
	iface    string
	name     string
	template *cmdline.Template
	params   []Param
	variadic bool
	dir      string
	timeout  time.Duration
	stderr   process.Policy
	factory  result.Factory
	returns  Returns
}

// Interface returns the name of the declaring interface.
func (d *Descriptor) Interface() string { return d.iface }

// Name returns the method name.
func (d *Descriptor) Name() string { return d.name }

// Template returns the compiled command template.
func (d *Descriptor) Template() *cmdline.Template { return d.template }

// Params returns a copy of the parameter declarations.
func (d *Descriptor) Params() []Param { return slices.Clone(d.params) }

// Variadic reports whether the last parameter takes the remaining arguments.
func (d *Descriptor) Variadic() bool { return d.variadic }

// Dir returns the default working directory, or "" if unset.
func (d *Descriptor) Dir() string { return d.dir }

// Timeout returns the default deadline, or 0 if unset.
func (d *Descriptor) Timeout() time.Duration { return d.timeout }

// Stderr returns the error stream policy.
func (d *Descriptor) Stderr() process.Policy { return d.stderr }

// Returns reports what a call hands back.
func (d *Descriptor) Returns() Returns { return d.returns }

// Factory returns the result factory, or nil for methods returning nothing.
func (d *Descriptor) Factory() result.Factory { return d.factory }

// ResultType returns the type of the method's result, or nil.
func (d *Descriptor) ResultType() reflect.Type {
	if d.factory == nil {
		return nil
	}
	return d.factory.Type()
}

// String renders the method signature, e.g. "Tools.concat(prefix value, more ...value)".
func (d *Descriptor) String() string {
	s := d.iface + "." + d.name + "("
	for i, p := range d.params {
		if i > 0 {
			s += ", "
		}
		s += paramLabel(i, p) + " "
		if p.Variadic {
			s += "..."
		}
		s += p.Role.String()
	}
	return s + ")"
}

// Build validates iface and compiles every method into a Descriptor. It
// returns a DECLARATION_INVALID error listing every invalid declaration, or
// the TEMPLATE_INVALID error of the first template that does not compile.
func Build(iface Interface, opts ...Option) (map[string]*Descriptor, error) {
	return build(iface, newOptions(opts))
}

func build(iface Interface, o *options) (map[string]*Descriptor, error) {
	v := validation.New().Struct("", iface)

	seen := make(map[string]int, len(iface.Methods))
	for i, m := range iface.Methods {
		field := fmt.Sprintf("methods[%d]", i)
		if m.Name != "" {
			if j, dup := seen[m.Name]; dup {
				v.AddError(field+".name", fmt.Sprintf("duplicates methods[%d]", j))
			}
			seen[m.Name] = i
		}
		v.Required(field+".run", runOf(m, o))
		checkParams(v, field, m)
		checkReturns(v, field, m, iface.Results)
	}
	for name := range o.overrides {
		if _, ok := seen[name]; !ok {
			v.AddError("on."+name, "no such method")
		}
	}
	if err := v.Validate(errors.ErrCodeDeclaration); err != nil {
		return nil, err.WithDetail("interface", iface.Name)
	}

	descs := make(map[string]*Descriptor, len(iface.Methods))
	for _, m := range iface.Methods {
		d, err := compileMethod(iface, m, o)
		if err != nil {
			return nil, err
		}
		descs[m.Name] = d
	}
	return descs, nil
}

func runOf(m Method, o *options) string {
	if run, ok := o.overrides[m.Name]; ok {
		return run
	}
	return m.Run
}

// checkParams enforces at most one parameter per override role and a
// variadic flag only on a trailing value parameter.
func checkParams(v *validation.Validator, field string, m Method) {
	counts := make(map[Role]int, 4)
	for i, p := range m.Params {
		pf := fmt.Sprintf("%s.params[%d]", field, i)
		if !p.Role.valid() {
			v.AddError(pf+".role", "is not a known role")
			continue
		}
		counts[p.Role]++
		if p.Role != RoleValue && counts[p.Role] == 2 {
			v.AddError(pf+".role", fmt.Sprintf("only one %s parameter is allowed", p.Role))
		}
		if p.Variadic {
			v.Custom(p.Role == RoleValue, pf+".variadic", "only value parameters can be variadic")
			v.Custom(i == len(m.Params)-1, pf+".variadic", "only the last parameter can be variadic")
		}
		if p.Nullable && p.Role != RoleValue {
			v.AddError(pf+".nullable", "only value parameters can be nullable")
		}
	}
}

func checkReturns(v *validation.Validator, field string, m Method, fallback result.Factory) {
	switch m.Returns {
	case ReturnsResult:
		if m.Results == nil && fallback == nil {
			v.AddError(field+".results", "is required for a method that returns a result")
		}
		for _, p := range m.Params {
			if p.Role == RoleSink {
				v.AddError(field+".returns", "a method with a sink parameter must return nothing")
				break
			}
		}
	case ReturnsNothing:
	default:
		v.AddError(field+".returns", "is not a known return kind")
	}
}

func compileMethod(iface Interface, m Method, o *options) (*Descriptor, error) {
	values := 0
	for _, p := range m.Params {
		if p.Role == RoleValue {
			values++
		}
	}
	variadic := len(m.Params) > 0 && m.Params[len(m.Params)-1].Variadic

	tmpl, err := cmdline.Compile(runOf(m, o), values, variadic)
	if err != nil {
		if appErr, ok := errors.AsAppError(err); ok {
			return nil, appErr.WithDetail("method", m.Name)
		}
		return nil, err
	}

	d := &Descriptor{
		iface:    iface.Name,
		name:     m.Name,
		template: tmpl,
		params:   slices.Clone(m.Params),
		variadic: variadic,
		dir:      firstString(m.Dir, iface.Dir, o.dir),
		timeout:  firstDuration(m.Timeout, iface.Timeout, o.timeout),
		stderr:   o.stderr,
		returns:  m.Returns,
	}
	if s := firstString(m.Stderr, iface.Stderr); s != "" {
		// Validated by the struct tags.
		d.stderr, _ = process.ParsePolicy(s)
	}
	if m.Returns == ReturnsResult {
		d.factory = m.Results
		if d.factory == nil {
			d.factory = iface.Results
		}
	}
	return d, nil
}

func paramLabel(i int, p Param) string {
	if p.Name != "" {
		return p.Name
	}
	return fmt.Sprintf("#%d", i)
}

func firstString(ss ...string) string {
	for _, s := range ss {
		if s != "" {
			return s
		}
	}
	return ""
}

func firstDuration(ds ...time.Duration) time.Duration {
	for _, d := range ds {
		if d > 0 {
			return d
		}
	}
	return 0
}
