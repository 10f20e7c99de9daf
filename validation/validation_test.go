package validation

import (
	"strings"
	"testing"
	"time"

	"github.com/kbukum/cmdproxy/errors"
)

type testParam struct {
	Name string `validate:"required"`
}

type testMethod struct {
	Name    string        `yaml:"name" validate:"required"`
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`
	Params  []testParam   `yaml:"params" validate:"dive"`
}

type testExec struct {
	Stderr     string  `yaml:"stderr" validate:"omitempty,oneof=discard merge separate"`
	BufferSize int     `yaml:"buffer_size" validate:"gte=0"`
	WorkDir    string  `validate:"omitempty,dir"`
	Rate       float64 `yaml:"rate" validate:"lte=1"`
	Export     bool    `yaml:"export"`
	Endpoint   string  `yaml:"endpoint" validate:"required_if=Export true"`
}

func TestStruct_Valid(t *testing.T) {
	m := testMethod{Name: "concat", Timeout: time.Second, Params: []testParam{{Name: "prefix"}}}
	if fields := Struct(m); fields != nil {
		t.Errorf("expected no errors, got %v", fields)
	}
}

func TestStruct_Fields(t *testing.T) {
	tests := []struct {
		name      string
		value     any
		wantField string
		wantMsg   string
	}{
		{"required", testMethod{}, "name", "is required"},
		{"gte", testMethod{Name: "m", Timeout: -time.Second}, "timeout", "must be at least 0"},
		{"dive", testMethod{Name: "m", Params: []testParam{{Name: "a"}, {}}}, "params[1].name", "is required"},
		{"oneof", testExec{Stderr: "tee"}, "stderr", "must be one of: discard merge separate"},
		{"lte", testExec{Rate: 2}, "rate", "must be at most 1"},
		{"required_if", testExec{Export: true}, "endpoint", "is required"},
		{"snake case fallback", testExec{WorkDir: "/nonexistent/cmdproxy-dir"}, "work_dir", "must be an existing directory"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := Struct(tt.value)
			if len(fields) != 1 {
				t.Fatalf("expected 1 field error, got %v", fields)
			}
			if fields[0].Field != tt.wantField {
				t.Errorf("field = %q, want %q", fields[0].Field, tt.wantField)
			}
			if fields[0].Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", fields[0].Message, tt.wantMsg)
			}
		})
	}
}

func TestValidate_AppError(t *testing.T) {
	err := Validate(testMethod{Timeout: -1}, errors.ErrCodeDeclaration)
	if !errors.IsDeclaration(err) {
		t.Fatalf("expected declaration error, got %v", err)
	}
	appErr, _ := errors.AsAppError(err)
	fields, ok := appErr.Details["fields"].([]FieldError)
	if !ok || len(fields) != 2 {
		t.Fatalf("expected 2 fields in details, got %v", appErr.Details["fields"])
	}
	if !strings.Contains(appErr.Message, "name: is required") {
		t.Errorf("message = %q", appErr.Message)
	}

	if err := Validate(testMethod{Name: "ok"}, errors.ErrCodeDeclaration); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestValidator_Collects(t *testing.T) {
	v := New().
		Required("name", "  ").
		Min("buffer_size", -1, 0).
		Max("params", 3, 2).
		OneOf("stderr", "tee", []string{"discard", "merge"}).
		OneOf("empty", "", []string{"x"}).
		Custom(false, "params", "at most one timeout parameter").
		Custom(true, "never", "not reported")

	if !v.HasErrors() {
		t.Fatal("expected errors")
	}
	if got := len(v.Errors()); got != 5 {
		t.Fatalf("expected 5 errors, got %d: %v", got, v.Errors())
	}

	appErr := v.Validate(errors.ErrCodeConfig)
	if appErr == nil || appErr.Code != errors.ErrCodeConfig {
		t.Fatalf("expected CONFIG_INVALID, got %v", appErr)
	}
	if !strings.Contains(appErr.Message, "params: at most one timeout parameter") {
		t.Errorf("message = %q", appErr.Message)
	}
}

func TestValidator_NoErrors(t *testing.T) {
	v := New().Required("name", "x").Min("n", 1, 0)
	if v.HasErrors() {
		t.Errorf("unexpected errors: %v", v.Errors())
	}
	if appErr := v.Validate(errors.ErrCodeDeclaration); appErr != nil {
		t.Errorf("expected nil, got %v", appErr)
	}
}

func TestValidator_StructPrefix(t *testing.T) {
	v := New().Struct("methods[2]", testMethod{})
	errs := v.Errors()
	if len(errs) != 1 || errs[0].Field != "methods[2].name" {
		t.Errorf("errors = %v, want methods[2].name", errs)
	}
}

func TestFieldErrors_Error(t *testing.T) {
	fe := FieldErrors{{Field: "a", Message: "is required"}, {Message: "bare"}}
	if got := fe.Error(); got != "a: is required; bare" {
		t.Errorf("Error() = %q", got)
	}
}

func TestToSnakeCase(t *testing.T) {
	tests := map[string]string{
		"Name":         "name",
		"DrainTimeout": "drain_timeout",
		"Dir":          "dir",
	}
	for in, want := range tests {
		if got := toSnakeCase(in); got != want {
			t.Errorf("toSnakeCase(%q) = %q, want %q", in, got, want)
		}
	}
}
