package invoke

import (
	"fmt"
	"time"

	"github.com/kbukum/cmdproxy/result"
)

// Role is what a method parameter supplies to an invocation.
type Role int

const (
	// RoleValue fills the next placeholder of the template.
	RoleValue Role = iota
	// RoleWorkDir overrides the working directory.
	RoleWorkDir
	// RoleTimeout overrides the deadline.
	RoleTimeout
	// RoleSink receives the standard output.
	RoleSink
)

var roleNames = [...]string{"value", "workdir", "timeout", "sink"}

// String returns the role name.
func (r Role) String() string {
	if r.valid() {
		return roleNames[r]
	}
	return fmt.Sprintf("role(%d)", int(r))
}

func (r Role) valid() bool { return r >= RoleValue && r <= RoleSink }

// Returns selects what a method hands back to its caller.
type Returns int

const (
	// ReturnsResult builds and returns a value from the standard output.
	ReturnsResult Returns = iota
	// ReturnsNothing returns no value. Output goes to a Sink parameter if
	// the method has one, and is discarded otherwise.
	ReturnsNothing
)

// String returns "result" or "nothing".
func (r Returns) String() string {
	switch r {
	case ReturnsResult:
		return "result"
	case ReturnsNothing:
		return "nothing"
	default:
		return fmt.Sprintf("returns(%d)", int(r))
	}
}

// Param declares one method parameter.
type Param struct {
	// Name is used in error messages only.
	Name string `yaml:"name"`
	Role Role   `yaml:"role"`
	// Variadic marks the last parameter as taking every remaining argument.
	Variadic bool `yaml:"variadic"`
	// Nullable lets a nil argument drop its placeholder instead of failing.
	Nullable bool `yaml:"nullable"`
}

// Arg declares a value parameter.
func Arg(name string) Param { return Param{Name: name} }

// OptionalArg declares a value parameter that may be nil.
func OptionalArg(name string) Param { return Param{Name: name, Nullable: true} }

// VarArgs declares a variadic value parameter.
func VarArgs(name string) Param { return Param{Name: name, Variadic: true} }

// WorkDirArg declares a working directory parameter.
func WorkDirArg(name string) Param { return Param{Name: name, Role: RoleWorkDir} }

// TimeoutArg declares a deadline parameter.
func TimeoutArg(name string) Param { return Param{Name: name, Role: RoleTimeout} }

// SinkArg declares an output sink parameter.
func SinkArg(name string) Param { return Param{Name: name, Role: RoleSink} }

// Method declares one proxied operation.
type Method struct {
	Name string `yaml:"name" validate:"required"`
	// Run is the command template. It may be left empty and supplied with On.
	Run    string  `yaml:"run"`
	Params []Param `yaml:"params"`
	// Timeout, Dir and Stderr override the interface defaults when set.
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`
	Dir     string        `yaml:"dir"`
	Stderr  string        `yaml:"stderr" validate:"omitempty,oneof=discard merge separate"`
	// Results overrides the interface result factory.
	Results result.Factory `yaml:"-"`
	Returns Returns        `yaml:"returns"`
}

// Interface is a named set of methods with shared defaults.
type Interface struct {
	Name    string         `yaml:"name" validate:"required"`
	Dir     string         `yaml:"dir"`
	Timeout time.Duration  `yaml:"timeout" validate:"gte=0"`
	Stderr  string         `yaml:"stderr" validate:"omitempty,oneof=discard merge separate"`
	Results result.Factory `yaml:"-"`
	Methods []Method       `yaml:"methods" validate:"min=1,dive"`
}
