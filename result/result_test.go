package result_test

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/kbukum/cmdproxy/result"
)

func build(t *testing.T, f result.Factory, output string) any {
	t.Helper()
	s := f.NewSink()
	fmt.Fprint(s, output)
	v, err := f.Build(s)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return v
}

func TestStockFactories(t *testing.T) {
	tests := []struct {
		name     string
		factory  result.Factory
		output   string
		expected any
	}{
		{"string", result.String, "prefixpostfix", "prefixpostfix"},
		{"string empty", result.String, "", ""},
		{"bytes", result.Bytes, "raw\x00bytes", []byte("raw\x00bytes")},
		{"lines", result.Lines, "a\nb\r\nc\n", []string{"a", "b", "c"}},
		{"lines keeps inner blanks", result.Lines, "a\n\nb", []string{"a", "", "b"}},
		{"lines empty", result.Lines, "", []string{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := build(t, tc.factory, tc.output)
			if !reflect.DeepEqual(got, tc.expected) {
				t.Fatalf("expected %#v, got %#v", tc.expected, got)
			}
		})
	}
}

func TestFactoryType(t *testing.T) {
	if result.String.Type() != reflect.TypeFor[string]() {
		t.Errorf("expected string, got %v", result.String.Type())
	}
	if result.Lines.Type() != reflect.TypeFor[[]string]() {
		t.Errorf("expected []string, got %v", result.Lines.Type())
	}
}

func TestFactoryFreshSinks(t *testing.T) {
	a := result.String.NewSink()
	b := result.String.NewSink()
	fmt.Fprint(a, "only a")
	got, _ := result.String.Build(b)
	if got != "" {
		t.Fatalf("expected independent sinks, got %q", got)
	}
}

func TestFactoryRejectsForeignSink(t *testing.T) {
	if _, err := result.String.Build(new(result.LinesBuilder)); err == nil {
		t.Fatal("expected error for a sink of another type")
	}
}

func TestBuilderResetReuse(t *testing.T) {
	var sb result.StringBuilder
	fmt.Fprint(&sb, "first")
	first, _ := sb.Build()

	sb.Reset()
	fmt.Fprint(&sb, "second")
	second, _ := sb.Build()

	if first != "first" || second != "second" {
		t.Fatalf("expected independent results, got %q and %q", first, second)
	}
}

func TestBytesBuilderCopies(t *testing.T) {
	var bb result.BytesBuilder
	fmt.Fprint(&bb, "abc")
	out, _ := bb.Build()
	bb.Reset()
	fmt.Fprint(&bb, "xyz")
	if string(out) != "abc" {
		t.Fatalf("expected built bytes to survive reuse, got %q", out)
	}
}

func TestJSONBuilder(t *testing.T) {
	type info struct {
		Name string `json:"name"`
		Args int    `json:"args"`
	}
	f := result.JSON[info]()
	got := build(t, f, `{"name":"concat","args":2}`)
	if got != (info{Name: "concat", Args: 2}) {
		t.Fatalf("unexpected decode: %#v", got)
	}

	s := f.NewSink()
	fmt.Fprint(s, "not json")
	if _, err := f.Build(s); err == nil {
		t.Fatal("expected decode error")
	}
}
