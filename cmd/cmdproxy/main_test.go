package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kbukum/cmdproxy/internal/helperproc"
)

func TestMain(m *testing.M) {
	helperproc.Main(m)
}

const manifestTemplate = `
interfaces:
  - name: tools
    methods:
      - name: concat
        run: %q
        params:
          - name: a
          - name: b
      - name: words
        run: %q
        results: json
        params:
          - name: words
            variadic: true
      - name: lines
        run: %q
        results: lines
        params:
          - name: a
      - name: stream
        run: %q
        returns: nothing
        params:
          - name: text
          - name: out
            role: sink
      - name: wait
        run: %q
        params:
          - name: deadline
            role: timeout
`

// workspace writes a quiet config and a manifest of helper methods and
// returns the flags selecting them.
func workspace(t *testing.T) []string {
	t.Helper()
	dir := t.TempDir()
	cfg := filepath.Join(dir, "cmdproxy.yml")
	if err := os.WriteFile(cfg, []byte("logging:\n  output: discard\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	m := filepath.Join(dir, "manifest.yml")
	src := fmt.Sprintf(manifestTemplate,
		helperproc.Command(helperproc.Concat)+" {?} {?}",
		helperproc.Command(helperproc.Args)+" {?}",
		helperproc.Command(helperproc.Concat)+" {?}",
		helperproc.Command(helperproc.Concat)+" {?}",
		helperproc.Command(helperproc.Forever),
	)
	if err := os.WriteFile(m, []byte(src), 0o600); err != nil {
		t.Fatal(err)
	}
	return []string{"--config", cfg, "--manifest", m}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCommand()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(io.Discard)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "cmdproxy ") {
		t.Errorf("unexpected output %q", out)
	}

	short, err := execute(t, "version", "--short")
	if err != nil {
		t.Fatalf("version --short: %v", err)
	}
	if strings.HasPrefix(short, "cmdproxy") || strings.TrimSpace(short) == "" {
		t.Errorf("unexpected short output %q", short)
	}
}

func TestMethodsCommand(t *testing.T) {
	flags := workspace(t)
	out, err := execute(t, append(flags, "methods")...)
	if err != nil {
		t.Fatalf("methods: %v", err)
	}
	for _, want := range []string{
		"tools.concat(a value, b value)",
		"tools.words(words ...value)",
		"tools.stream(text value, out sink)",
		"tools.wait(deadline timeout)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output does not list %q:\n%s", want, out)
		}
	}

	if _, err := execute(t, append(flags, "methods", "missing")...); err == nil {
		t.Error("expected an error for an undeclared interface")
	}
}
