package process_test

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/kbukum/cmdproxy/errors"
	"github.com/kbukum/cmdproxy/internal/helperproc"
	"github.com/kbukum/cmdproxy/logger"
	"github.com/kbukum/cmdproxy/observability"
	"github.com/kbukum/cmdproxy/process"
)

func TestMain(m *testing.M) {
	helperproc.Main(m)
}

func helper(mode string, args ...string) process.Command {
	return process.Command{
		Binary: helperproc.Binary(),
		Args:   helperproc.Argv(mode, args...),
	}
}

func quietEngine(cfg process.Config) *process.Engine {
	return process.NewEngine(cfg, process.WithLogger(logger.NewNop()))
}

func TestRun_Concat(t *testing.T) {
	var out bytes.Buffer
	cmd := helper(helperproc.Concat, "prefix", "postfix")
	cmd.Stdout = &out

	res, err := quietEngine(process.Config{}).Run(context.Background(), cmd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := out.String(); got != "prefixpostfix" {
		t.Errorf("stdout = %q, want %q", got, "prefixpostfix")
	}
	if res.State != process.StateCompleted {
		t.Errorf("state = %s, want completed", res.State)
	}
	if res.ExitCode != 0 || !res.Success() {
		t.Errorf("exit code = %d, want 0", res.ExitCode)
	}
	if res.Stdout != int64(len("prefixpostfix")) {
		t.Errorf("stdout bytes = %d, want %d", res.Stdout, len("prefixpostfix"))
	}
	if res.Pid <= 0 {
		t.Errorf("pid = %d, want > 0", res.Pid)
	}
}

func TestRun_PackageLevel(t *testing.T) {
	var out bytes.Buffer
	cmd := helper(helperproc.Concat)
	cmd.Stdout = &out

	if _, err := process.Run(context.Background(), cmd); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.String() != helperproc.Nothing {
		t.Errorf("stdout = %q, want %q", out.String(), helperproc.Nothing)
	}
}

func TestRun_NilStdoutDiscards(t *testing.T) {
	res, err := quietEngine(process.Config{}).Run(context.Background(), helper(helperproc.Concat, "x"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Stdout != 1 {
		t.Errorf("stdout bytes = %d, want 1", res.Stdout)
	}
}

func TestRun_Stdin(t *testing.T) {
	var out bytes.Buffer
	cmd := helper(helperproc.Echo)
	cmd.Stdin = strings.NewReader("from stdin")
	cmd.Stdout = &out

	if _, err := quietEngine(process.Config{}).Run(context.Background(), cmd); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.String() != "from stdin" {
		t.Errorf("stdout = %q, want %q", out.String(), "from stdin")
	}
}

func TestRun_NonZeroExitIsNotAnError(t *testing.T) {
	cmd := helper(helperproc.Exit, "42", "boom")
	cmd.Stderr = process.StderrSeparate

	res, err := quietEngine(process.Config{}).Run(context.Background(), cmd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExitCode != 42 {
		t.Errorf("exit code = %d, want 42", res.ExitCode)
	}
	if res.State != process.StateCompleted || res.Success() {
		t.Errorf("state = %s success = %v", res.State, res.Success())
	}
	if string(res.Stderr) != "boom" {
		t.Errorf("stderr = %q, want boom", res.Stderr)
	}
}

func TestRun_StderrPolicies(t *testing.T) {
	tests := []struct {
		name       string
		policy     process.Policy
		wantStdout []string
		wantStderr string
	}{
		{"discard", process.StderrDiscard, []string{"out"}, ""},
		{"merge", process.StderrMerge, []string{"out", "err"}, ""},
		{"separate", process.StderrSeparate, []string{"out"}, "err"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			cmd := helper(helperproc.Streams, "out", "err")
			cmd.Stdout = &out
			cmd.Stderr = tt.policy

			res, err := quietEngine(process.Config{}).Run(context.Background(), cmd)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			wantLen := 0
			for _, part := range tt.wantStdout {
				wantLen += len(part)
				if !strings.Contains(out.String(), part) {
					t.Errorf("stdout %q missing %q", out.String(), part)
				}
			}
			if out.Len() != wantLen {
				t.Errorf("stdout = %q, want %d bytes", out.String(), wantLen)
			}
			if res.Stdout != int64(wantLen) {
				t.Errorf("result stdout bytes = %d, want %d", res.Stdout, wantLen)
			}
			if string(res.Stderr) != tt.wantStderr {
				t.Errorf("stderr = %q, want %q", res.Stderr, tt.wantStderr)
			}
		})
	}
}

func realPath(t *testing.T, dir string) string {
	t.Helper()
	p, err := filepath.EvalSymlinks(dir)
	if err != nil {
		t.Fatalf("EvalSymlinks(%s): %v", dir, err)
	}
	return p
}

func TestRun_WorkingDirectory(t *testing.T) {
	dir := realPath(t, t.TempDir())
	engineDir := realPath(t, t.TempDir())

	tests := []struct {
		name      string
		engineDir string
		cmdDir    string
		want      string
	}{
		{"command dir", "", dir, dir},
		{"engine default", engineDir, "", engineDir},
		{"command wins", engineDir, dir, dir},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			cmd := helper(helperproc.PWD, "[", "]")
			cmd.Dir = tt.cmdDir
			cmd.Stdout = &out

			if _, err := quietEngine(process.Config{Dir: tt.engineDir}).Run(context.Background(), cmd); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got, want := out.String(), "["+tt.want+"]"; got != want {
				t.Errorf("stdout = %q, want %q", got, want)
			}
		})
	}
}

func TestRun_Timeout(t *testing.T) {
	tests := []struct {
		name   string
		engine process.Config
		cmd    time.Duration
	}{
		{"command timeout", process.Config{}, 200 * time.Millisecond},
		{"engine default", process.Config{Timeout: 200 * time.Millisecond}, 0},
		{"command overrides engine", process.Config{Timeout: time.Hour}, 200 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := helper(helperproc.Forever)
			cmd.Timeout = tt.cmd

			start := time.Now()
			res, err := quietEngine(tt.engine).Run(context.Background(), cmd)
			elapsed := time.Since(start)

			if !errors.IsTimeout(err) {
				t.Fatalf("expected timeout error, got %v", err)
			}
			if res.State != process.StateTimedOut {
				t.Errorf("state = %s, want timed_out", res.State)
			}
			if res.ExitCode != -1 {
				t.Errorf("exit code = %d, want -1", res.ExitCode)
			}
			if elapsed < 200*time.Millisecond || elapsed > 10*time.Second {
				t.Errorf("returned after %v", elapsed)
			}
		})
	}
}

func TestRun_NoDeadline(t *testing.T) {
	var out bytes.Buffer
	cmd := helper(helperproc.Concat, "done")
	cmd.Stdout = &out

	res, err := quietEngine(process.Config{}).Run(context.Background(), cmd)
	if err != nil || res.State != process.StateCompleted {
		t.Fatalf("Run() = %v, %v", res.State, err)
	}
}

func TestRun_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	res, err := quietEngine(process.Config{}).Run(ctx, helper(helperproc.Forever))
	if !errors.IsExecution(err) {
		t.Fatalf("expected execution error, got %v", err)
	}
	if !stderrors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context.DeadlineExceeded in chain, got %v", err)
	}
	if res.State != process.StateCanceled {
		t.Errorf("state = %s, want canceled", res.State)
	}
}

func TestRun_LaunchFailures(t *testing.T) {
	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name string
		ctx  context.Context
		cmd  process.Command
	}{
		{"empty binary", context.Background(), process.Command{}},
		{"missing binary", context.Background(), process.Command{Binary: "/nonexistent/cmdproxy-test-binary"}},
		{"missing dir", context.Background(), process.Command{
			Binary: helperproc.Binary(),
			Args:   helperproc.Argv(helperproc.Concat),
			Dir:    "/nonexistent/cmdproxy-test-dir",
		}},
		{"canceled context", canceled, helper(helperproc.Concat)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := quietEngine(process.Config{}).Run(tt.ctx, tt.cmd)
			if !errors.IsExecution(err) {
				t.Fatalf("expected execution error, got %v", err)
			}
			if res == nil {
				t.Fatal("expected non-nil result")
			}
			if res.State != process.StateLaunchFailed {
				t.Errorf("state = %s, want launch_failed", res.State)
			}
			if res.Pid != 0 {
				t.Errorf("pid = %d, want 0", res.Pid)
			}
		})
	}
}

func TestRun_ConcurrentStreamsDoNotDeadlock(t *testing.T) {
	const kib = 512

	tests := []struct {
		name       string
		policy     process.Policy
		wantStdout int
	}{
		{"separate", process.StderrSeparate, kib * 1024},
		{"merge", process.StderrMerge, 2 * kib * 1024},
		{"discard", process.StderrDiscard, kib * 1024},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			cmd := helper(helperproc.Flood, fmt.Sprint(kib))
			cmd.Stdout = &out
			cmd.Stderr = tt.policy
			cmd.Timeout = 30 * time.Second

			res, err := quietEngine(process.Config{}).Run(context.Background(), cmd)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if out.Len() != tt.wantStdout {
				t.Errorf("stdout = %d bytes, want %d", out.Len(), tt.wantStdout)
			}
			if tt.policy == process.StderrSeparate && len(res.Stderr) != process.MaxStderrCapture {
				t.Errorf("captured stderr = %d bytes, want cap %d", len(res.Stderr), process.MaxStderrCapture)
			}
		})
	}
}

func TestRun_DrainTimeoutBoundsLingeringDescendant(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "grandchild.pid")
	var out bytes.Buffer
	cmd := helper(helperproc.Linger, pidFile, "done")
	cmd.Stdout = &out

	start := time.Now()
	res, err := quietEngine(process.Config{DrainTimeout: 200 * time.Millisecond}).Run(context.Background(), cmd)
	elapsed := time.Since(start)

	if pid, pidErr := helperproc.WaitForPid(pidFile, 5*time.Second); pidErr == nil {
		t.Cleanup(func() {
			if p, findErr := os.FindProcess(pid); findErr == nil {
				_ = p.Kill()
			}
		})
	}

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.State != process.StateCompleted {
		t.Errorf("state = %s, want completed", res.State)
	}
	if !strings.HasPrefix(out.String(), "done") {
		t.Errorf("stdout = %q, want prefix %q", out.String(), "done")
	}
	if elapsed > 10*time.Second {
		t.Errorf("run held open for %v by lingering descendant", elapsed)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, stderrors.New("sink broken") }

func TestRun_SinkFailureIsNotFatal(t *testing.T) {
	cmd := helper(helperproc.Flood, "256")
	cmd.Stdout = failingWriter{}
	cmd.Timeout = 30 * time.Second

	res, err := quietEngine(process.Config{}).Run(context.Background(), cmd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.State != process.StateCompleted {
		t.Errorf("state = %s, want completed", res.State)
	}
	if res.Stdout != 0 {
		t.Errorf("stdout bytes = %d, want 0", res.Stdout)
	}
}

func TestRun_ConcurrentRuns(t *testing.T) {
	engine := quietEngine(process.Config{})

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var out bytes.Buffer
			cmd := helper(helperproc.Concat, "run", fmt.Sprint(i))
			cmd.Stdout = &out
			if _, err := engine.Run(context.Background(), cmd); err != nil {
				t.Errorf("run %d: %v", i, err)
				return
			}
			if want := fmt.Sprintf("run%d", i); out.String() != want {
				t.Errorf("run %d: stdout = %q, want %q", i, out.String(), want)
			}
		}()
	}
	wg.Wait()
}

func TestRun_InvocationIDFromContext(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	engine := process.NewEngine(process.Config{},
		process.WithLogger(logger.NewNop()),
		process.WithTracerProvider(tp),
	)

	ctx := logger.ContextWithInvocationID(context.Background(), "inv-1")
	if _, err := engine.Run(ctx, helper(helperproc.Concat)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	attrs := map[string]string{}
	for _, kv := range spans[0].Attributes {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	if spans[0].Name != observability.SpanProcessRun {
		t.Errorf("span name = %q", spans[0].Name)
	}
	if attrs[observability.AttrInvocationID] != "inv-1" {
		t.Errorf("invocation id = %q, want inv-1", attrs[observability.AttrInvocationID])
	}
	if attrs[observability.AttrState] != "completed" {
		t.Errorf("state attr = %q, want completed", attrs[observability.AttrState])
	}
	if attrs[observability.AttrExitCode] != "0" {
		t.Errorf("exit code attr = %q, want 0", attrs[observability.AttrExitCode])
	}
}

func TestRun_TimeoutSpanCarriesErrorCode(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	engine := process.NewEngine(process.Config{},
		process.WithLogger(logger.NewNop()),
		process.WithTracerProvider(tp),
	)

	cmd := helper(helperproc.Forever)
	cmd.Timeout = 100 * time.Millisecond
	_, _ = engine.Run(context.Background(), cmd)

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	var code string
	for _, kv := range spans[0].Attributes {
		if string(kv.Key) == observability.AttrErrorCode {
			code = kv.Value.AsString()
		}
	}
	if code != string(errors.ErrCodeTimeout) {
		t.Errorf("error code attr = %q, want %s", code, errors.ErrCodeTimeout)
	}
}

func TestRun_Metrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, err := observability.NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}
	engine := process.NewEngine(process.Config{},
		process.WithLogger(logger.NewNop()),
		process.WithMetrics(metrics),
	)

	ctx := context.Background()
	_, _ = engine.Run(ctx, helper(helperproc.Concat, "abc"))
	timed := helper(helperproc.Forever)
	timed.Timeout = 100 * time.Millisecond
	_, _ = engine.Run(ctx, timed)
	_, _ = engine.Run(ctx, process.Command{Binary: "/nonexistent/cmdproxy-test-binary"})

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	sums := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			if sum, ok := md.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					sums[md.Name] += dp.Value
				}
			}
		}
	}

	if sums[observability.MetricInvocationTotal] != 3 {
		t.Errorf("invocations = %d, want 3", sums[observability.MetricInvocationTotal])
	}
	if sums[observability.MetricTimeoutTotal] != 1 {
		t.Errorf("timeouts = %d, want 1", sums[observability.MetricTimeoutTotal])
	}
	if sums[observability.MetricInvocationActive] != 0 {
		t.Errorf("active = %d, want 0", sums[observability.MetricInvocationActive])
	}
	if sums[observability.MetricPumpBytes] != 3 {
		t.Errorf("pump bytes = %d, want 3", sums[observability.MetricPumpBytes])
	}
}
