package manifest

import (
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/spf13/viper"

	"github.com/kbukum/cmdproxy/errors"
	"github.com/kbukum/cmdproxy/invoke"
	"github.com/kbukum/cmdproxy/result"
	"github.com/kbukum/cmdproxy/validation"
)

// Manifest is a decoded declaration file.
type Manifest struct {
	Interfaces []Interface `yaml:"interfaces" mapstructure:"interfaces" validate:"min=1,dive"`
}

// Interface declares one proxy.
type Interface struct {
	Name    string        `yaml:"name" mapstructure:"name" validate:"required"`
	Dir     string        `yaml:"dir" mapstructure:"dir"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"gte=0"`
	Stderr  string        `yaml:"stderr" mapstructure:"stderr" validate:"omitempty,oneof=discard merge separate"`
	Results string        `yaml:"results" mapstructure:"results" validate:"omitempty,oneof=string bytes lines json"`
	Methods []Method      `yaml:"methods" mapstructure:"methods" validate:"min=1,dive"`
}

// Method declares one method of an interface.
type Method struct {
	Name    string        `yaml:"name" mapstructure:"name" validate:"required"`
	Run     string        `yaml:"run" mapstructure:"run"`
	Dir     string        `yaml:"dir" mapstructure:"dir"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"gte=0"`
	Stderr  string        `yaml:"stderr" mapstructure:"stderr" validate:"omitempty,oneof=discard merge separate"`
	Results string        `yaml:"results" mapstructure:"results" validate:"omitempty,oneof=string bytes lines json"`
	Returns string        `yaml:"returns" mapstructure:"returns" validate:"omitempty,oneof=result nothing"`
	Params  []Param       `yaml:"params" mapstructure:"params" validate:"dive"`
}

// Param declares one parameter. Role defaults to value.
type Param struct {
	Name     string `yaml:"name" mapstructure:"name" validate:"required"`
	Role     string `yaml:"role" mapstructure:"role" validate:"omitempty,oneof=value workdir timeout sink"`
	Variadic bool   `yaml:"variadic" mapstructure:"variadic"`
	Nullable bool   `yaml:"nullable" mapstructure:"nullable"`
}

var (
	factories = map[string]result.Factory{
		"string": result.String,
		"bytes":  result.Bytes,
		"lines":  result.Lines,
		"json":   result.JSON[any](),
	}
	roles = map[string]invoke.Role{
		"":        invoke.RoleValue,
		"value":   invoke.RoleValue,
		"workdir": invoke.RoleWorkDir,
		"timeout": invoke.RoleTimeout,
		"sink":    invoke.RoleSink,
	}
)

// Load reads the manifest at path. The format follows the file extension.
func Load(path string) (*Manifest, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.ConfigError(fmt.Sprintf("read manifest %s", path)).WithCause(err)
	}
	return decode(v)
}

// Read decodes a YAML manifest from r.
func Read(r io.Reader) (*Manifest, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(r); err != nil {
		return nil, errors.ConfigError("read manifest").WithCause(err)
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Manifest, error) {
	var m Manifest
	if err := v.Unmarshal(&m); err != nil {
		return nil, errors.ConfigError("decode manifest").WithCause(err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks the names in the manifest. Structural checks such as
// role conflicts happen when the interfaces are compiled.
func (m *Manifest) Validate() error {
	v := validation.New().Struct("", m)
	for i, iface := range m.Interfaces {
		for j := range i {
			if m.Interfaces[j].Name == iface.Name && iface.Name != "" {
				v.AddError(fmt.Sprintf("interfaces[%d].name", i), fmt.Sprintf("duplicates interfaces[%d]", j))
				break
			}
		}
	}
	if appErr := v.Validate(errors.ErrCodeDeclaration); appErr != nil {
		return appErr
	}
	return nil
}

// Names returns the interface names in declaration order.
func (m *Manifest) Names() []string {
	names := make([]string, len(m.Interfaces))
	for i, iface := range m.Interfaces {
		names[i] = iface.Name
	}
	return names
}

// Lookup returns the named interface.
func (m *Manifest) Lookup(name string) (Interface, bool) {
	i := slices.IndexFunc(m.Interfaces, func(iface Interface) bool { return iface.Name == name })
	if i < 0 {
		return Interface{}, false
	}
	return m.Interfaces[i], true
}

// Declaration converts to the invoke form. Methods without their own
// results use the interface's, and the interface defaults to string.
func (i Interface) Declaration() invoke.Interface {
	out := invoke.Interface{
		Name:    i.Name,
		Dir:     i.Dir,
		Timeout: i.Timeout,
		Stderr:  i.Stderr,
		Results: factoryOf(i.Results, result.String),
		Methods: make([]invoke.Method, len(i.Methods)),
	}
	for k, m := range i.Methods {
		out.Methods[k] = m.declaration()
	}
	return out
}

func (m Method) declaration() invoke.Method {
	out := invoke.Method{
		Name:    m.Name,
		Run:     m.Run,
		Dir:     m.Dir,
		Timeout: m.Timeout,
		Stderr:  m.Stderr,
		Results: factoryOf(m.Results, nil),
		Params:  make([]invoke.Param, len(m.Params)),
	}
	if m.Returns == "nothing" {
		out.Returns = invoke.ReturnsNothing
	}
	for k, p := range m.Params {
		out.Params[k] = invoke.Param{
			Name:     p.Name,
			Role:     roles[p.Role],
			Variadic: p.Variadic,
			Nullable: p.Nullable,
		}
	}
	return out
}

func factoryOf(name string, fallback result.Factory) result.Factory {
	if f, ok := factories[name]; ok {
		return f
	}
	return fallback
}

// Compile compiles every interface. The first failure is returned.
func (m *Manifest) Compile(opts ...invoke.Option) (map[string]*invoke.Proxy, error) {
	proxies := make(map[string]*invoke.Proxy, len(m.Interfaces))
	for _, iface := range m.Interfaces {
		p, err := invoke.Compile(iface.Declaration(), opts...)
		if err != nil {
			return nil, err
		}
		proxies[iface.Name] = p
	}
	return proxies, nil
}
