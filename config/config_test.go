package config

import (
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/cmdproxy/errors"
	"github.com/kbukum/cmdproxy/process"
)

func TestConfigApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	if cfg.Name != "cmdproxy" {
		t.Errorf("expected name 'cmdproxy', got %q", cfg.Name)
	}
	if cfg.Environment != "development" {
		t.Errorf("expected 'development', got %q", cfg.Environment)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected logging level 'info', got %q", cfg.Logging.Level)
	}
	if cfg.Exec.Stderr != "discard" {
		t.Errorf("expected stderr 'discard', got %q", cfg.Exec.Stderr)
	}
	if cfg.Exec.DrainTimeout != process.DefaultDrainTimeout {
		t.Errorf("expected drain timeout %v, got %v", process.DefaultDrainTimeout, cfg.Exec.DrainTimeout)
	}
	if cfg.Exec.Timeout != 0 {
		t.Errorf("expected no default timeout, got %v", cfg.Exec.Timeout)
	}
	if cfg.Telemetry.Enabled || cfg.Telemetry.Endpoint != "localhost:4318" || cfg.Telemetry.SampleRate != 1 {
		t.Errorf("unexpected telemetry defaults %+v", cfg.Telemetry)
	}
}

func TestTelemetryConversions(t *testing.T) {
	cfg := Config{Name: "svc", Environment: "staging", Telemetry: Telemetry{Endpoint: "otel:4318", Insecure: true, SampleRate: 0.5}}
	cfg.ApplyDefaults()

	tc := cfg.TracerConfig("1.2.3")
	if tc.ServiceName != "svc" || tc.ServiceVersion != "1.2.3" || tc.Environment != "staging" {
		t.Errorf("unexpected tracer identity %+v", tc)
	}
	if tc.Endpoint != "otel:4318" || !tc.Insecure || tc.SampleRate != 0.5 {
		t.Errorf("unexpected tracer export settings %+v", tc)
	}
	mc := cfg.MeterConfig("1.2.3")
	if mc.Endpoint != "otel:4318" || mc.Interval != 15*time.Second || mc.ServiceVersion != "1.2.3" {
		t.Errorf("unexpected meter settings %+v", mc)
	}
}

func TestConfigValidate(t *testing.T) {
	valid := func() Config {
		cfg := Config{Name: "svc"}
		cfg.ApplyDefaults()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"staging", func(c *Config) { c.Environment = "staging" }, ""},
		{"missing name", func(c *Config) { c.Name = "" }, "name: is required"},
		{"bad environment", func(c *Config) { c.Environment = "qa" }, "environment: must be one of"},
		{"negative timeout", func(c *Config) { c.Exec.Timeout = -time.Second }, "exec.timeout: must be at least 0"},
		{"bad stderr", func(c *Config) { c.Exec.Stderr = "tee" }, "exec.stderr: must be one of"},
		{"missing dir", func(c *Config) { c.Exec.Dir = "/nonexistent/cmdproxy-dir" }, "exec.dir: must be an existing directory"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level must be one of"},
		{"sample rate above one", func(c *Config) { c.Telemetry.SampleRate = 2 }, "telemetry.sample_rate: must be at most 1"},
		{"telemetry without endpoint", func(c *Config) {
			c.Telemetry.Enabled = true
			c.Telemetry.Endpoint = ""
		}, "telemetry.endpoint: is required"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.IsConfig(err) {
				t.Fatalf("expected CONFIG_INVALID, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("expected error containing %q, got %q", tc.wantErr, err.Error())
			}
		})
	}
}

func TestExecConfigConversions(t *testing.T) {
	dir := t.TempDir()
	exec := ExecConfig{
		Timeout:       time.Second,
		Dir:           dir,
		Stderr:        "merge",
		DrainTimeout:  time.Millisecond,
		BufferSize:    128,
		MaxConcurrent: 4,
	}

	ec := exec.EngineConfig()
	if ec.Timeout != time.Second || ec.Dir != dir || ec.DrainTimeout != time.Millisecond || ec.BufferSize != 128 {
		t.Errorf("EngineConfig() = %+v", ec)
	}
	if exec.StderrPolicy() != process.StderrMerge {
		t.Errorf("StderrPolicy() = %s, want merge", exec.StderrPolicy())
	}

	rc := exec.Resilience()
	if rc.Bulkhead == nil || rc.Bulkhead.MaxConcurrent != 4 {
		t.Errorf("Resilience().Bulkhead = %+v", rc.Bulkhead)
	}
	if rc.Retry != nil || rc.CircuitBreaker != nil {
		t.Errorf("unexpected policies: %+v", rc)
	}
	if !(ExecConfig{}).Resilience().IsEmpty() {
		t.Error("zero ExecConfig should produce no policies")
	}
	if (ExecConfig{Stderr: "bogus"}).StderrPolicy() != process.StderrDiscard {
		t.Error("unknown policy should fall back to discard")
	}
}

func TestLoadWithYAML(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, FileName)

	yamlContent := `
name: media-tools
environment: staging
logging:
  level: debug
exec:
  timeout: 30s
  stderr: separate
  drain_timeout: 500ms
  max_concurrent: 2
  retry:
    max_attempts: 4
    initial_backoff: 10ms
  circuit_breaker:
    name: ffmpeg
    max_failures: 3
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load("media-tools", WithConfigFile(configPath), WithEnvFile("/nonexistent/.env"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Name != "media-tools" || cfg.Environment != "staging" {
		t.Errorf("name/env = %q/%q", cfg.Name, cfg.Environment)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("logging level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Exec.Timeout != 30*time.Second {
		t.Errorf("exec timeout = %v, want 30s", cfg.Exec.Timeout)
	}
	if cfg.Exec.StderrPolicy() != process.StderrSeparate {
		t.Errorf("stderr = %q, want separate", cfg.Exec.Stderr)
	}
	if cfg.Exec.DrainTimeout != 500*time.Millisecond {
		t.Errorf("drain timeout = %v, want 500ms", cfg.Exec.DrainTimeout)
	}
	if cfg.Exec.Retry == nil || cfg.Exec.Retry.MaxAttempts != 4 || cfg.Exec.Retry.InitialBackoff != 10*time.Millisecond {
		t.Errorf("retry = %+v", cfg.Exec.Retry)
	}
	if cfg.Exec.CircuitBreaker == nil || cfg.Exec.CircuitBreaker.MaxFailures != 3 {
		t.Errorf("circuit breaker = %+v", cfg.Exec.CircuitBreaker)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, FileName)
	if err := os.WriteFile(configPath, []byte("name: svc\nexec:\n  timeout: 1s\n"), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv("CMDPROXY_EXEC_TIMEOUT", "7s")
	t.Setenv("CMDPROXY_TELEMETRY_SAMPLE_RATE", "0.5")

	cfg, err := Load("svc", WithConfigFile(configPath), WithEnvFile("/nonexistent/.env"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Exec.Timeout != 7*time.Second {
		t.Errorf("exec timeout = %v, want 7s from env", cfg.Exec.Timeout)
	}
	if cfg.Exec.Stderr != "discard" || cfg.Telemetry.SampleRate != 0.5 {
		t.Errorf("unexpected exec %+v telemetry %+v", cfg.Exec, cfg.Telemetry)
	}
}

func TestLoadInvalid(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, FileName)
	if err := os.WriteFile(configPath, []byte("name: svc\nexec:\n  stderr: tee\n"), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	_, err := Load("svc", WithConfigFile(configPath), WithEnvFile("/nonexistent/.env"))
	if !errors.IsConfig(err) {
		t.Fatalf("expected CONFIG_INVALID, got %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load("nonexistent-service", WithConfigFile("/nonexistent/path.yml"), WithEnvFile("/nonexistent/.env"))
	if err != nil {
		t.Fatalf("expected Load to succeed with missing file, got %v", err)
	}
	if cfg.Name != "nonexistent-service" {
		t.Errorf("expected service name as default, got %q", cfg.Name)
	}
}

func TestLoadMalformedFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(configPath, []byte("exec: [unclosed"), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	if _, err := Load("svc", WithConfigFile(configPath), WithEnvFile("/nonexistent/.env")); !errors.IsConfig(err) {
		t.Fatalf("expected CONFIG_INVALID, got %v", err)
	}
}

func TestResolverWithMockFS(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]bool
		want  string
	}{
		{"working dir first", map[string]bool{"cmdproxy.yml": true, "config/cmdproxy.yml": true}, "cmdproxy.yml"},
		{"config dir", map[string]bool{"config/cmdproxy.yml": true}, "config/cmdproxy.yml"},
		{"user config dir", map[string]bool{"/home/u/.config/my-svc/cmdproxy.yml": true}, "/home/u/.config/my-svc/cmdproxy.yml"},
		{"etc", map[string]bool{"/etc/my-svc/cmdproxy.yml": true}, "/etc/my-svc/cmdproxy.yml"},
		{"none", map[string]bool{}, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resolver := &Resolver{FileSystem: &mockFS{files: tc.files}}
			files := resolver.ResolveFiles("my-svc", LoaderConfig{})
			if files.ConfigFile != tc.want {
				t.Errorf("expected config file %q, got %q", tc.want, files.ConfigFile)
			}
		})
	}
}

func TestResolverEnvFile(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]bool
		want  string
	}{
		{"service env first", map[string]bool{".env.my-svc": true, ".env": true}, ".env.my-svc"},
		{"plain env", map[string]bool{".env": true}, ".env"},
		{"config dir", map[string]bool{"config/.env": true}, "config/.env"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resolver := &Resolver{FileSystem: &mockFS{files: tc.files}}
			if got := resolver.ResolveFiles("my-svc", LoaderConfig{}).EnvFile; got != tc.want {
				t.Errorf("expected %q, got %q", tc.want, got)
			}
		})
	}

	resolver := &Resolver{FileSystem: &mockFS{}}
	explicit := resolver.ResolveFiles("my-svc", LoaderConfig{EnvFile: "/etc/cmdproxy.env"})
	if explicit.EnvFile != "/etc/cmdproxy.env" {
		t.Errorf("expected explicit env file, got %q", explicit.EnvFile)
	}
}

type mockFS struct {
	files map[string]bool
}

func (m *mockFS) Exists(path string) bool        { return m.files[path] }
func (m *mockFS) LoadEnv(path string) error      { return nil }
func (m *mockFS) UserConfigDir() (string, error) { return "/home/u/.config", nil }

func TestEnvKeys(t *testing.T) {
	keys := envKeys(reflect.TypeOf(&Config{}), "")
	for _, want := range []string{
		"name",
		"logging.level",
		"exec.drain_timeout",
		"exec.retry.max_attempts",
		"exec.circuit_breaker.max_failures",
		"telemetry.sample_rate",
	} {
		if !slices.Contains(keys, want) {
			t.Errorf("keys %v missing %q", keys, want)
		}
	}
	if got := envName("exec.drain_timeout"); got != "CMDPROXY_EXEC_DRAIN_TIMEOUT" {
		t.Errorf("envName = %q", got)
	}
}

func TestLoaderOptions(t *testing.T) {
	var lc LoaderConfig
	fs := &mockFS{}
	WithFileSystem(fs)(&lc)
	WithConfigFile("/path/to/cmdproxy.yml")(&lc)
	WithEnvFile("/path/to/.env")(&lc)
	if lc.FileSystem == nil || lc.ConfigFile != "/path/to/cmdproxy.yml" || lc.EnvFile != "/path/to/.env" {
		t.Errorf("options not applied: %+v", lc)
	}
}
