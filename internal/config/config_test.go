package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var envKeys = []string{
	"STATE_DIR", "STATE_PERSIST", "STATE_BACKEND", "STATE_DSN",
	"SCHEDULER_ENABLED", "SCHEDULER_POLL_INTERVAL", "SCHEDULER_TOKEN",
	"REMOTE_ENABLED", "REMOTE_API_URL", "REMOTE_API_KEY", "REMOTE_DEPLOYMENT_ID",
	"REMOTE_TIMEOUT", "REMOTE_RATE_LIMIT", "REMOTE_BREAKER_THRESHOLD", "REMOTE_BREAKER_COOLDOWN",
	"HTTP_ADDR", "HTTP_SHUTDOWN_TIMEOUT", "METRICS_ENABLED", "METRICS_PATH", "METRICS_PORT",
	"REDIS_ADDR", "PROCESSES_FILE", "SEED_FILE", "LOG_LEVEL", "LOG_FORMAT",
}

// clearEnv blanks every variable Load reads; empty values count as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.StateDir != ".cache/state" {
		t.Errorf("StateDir: expected .cache/state, got %q", cfg.StateDir)
	}
	if !cfg.StatePersist {
		t.Error("StatePersist: expected true")
	}
	if cfg.StateBackend != BackendFile {
		t.Errorf("StateBackend: expected file, got %q", cfg.StateBackend)
	}
	if !cfg.SchedulerEnabled {
		t.Error("SchedulerEnabled: expected true")
	}
	if cfg.SchedulerPollInterval != 30*time.Second {
		t.Errorf("SchedulerPollInterval: expected 30s, got %v", cfg.SchedulerPollInterval)
	}
	if cfg.RemoteEnabled {
		t.Error("RemoteEnabled: expected false")
	}
	if cfg.RemoteTimeout != 20*time.Second {
		t.Errorf("RemoteTimeout: expected 20s, got %v", cfg.RemoteTimeout)
	}
	if cfg.RemoteRateLimit != 10 {
		t.Errorf("RemoteRateLimit: expected 10, got %v", cfg.RemoteRateLimit)
	}
	if cfg.RemoteBreakerThreshold != 5 {
		t.Errorf("RemoteBreakerThreshold: expected 5, got %d", cfg.RemoteBreakerThreshold)
	}
	if cfg.RemoteBreakerCooldown != time.Minute {
		t.Errorf("RemoteBreakerCooldown: expected 1m, got %v", cfg.RemoteBreakerCooldown)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr: expected :8080, got %q", cfg.HTTPAddr)
	}
	if cfg.HTTPShutdownTimeout != 10*time.Second {
		t.Errorf("HTTPShutdownTimeout: expected 10s, got %v", cfg.HTTPShutdownTimeout)
	}
	if cfg.MetricsPath != "/metrics" {
		t.Errorf("MetricsPath: expected /metrics, got %q", cfg.MetricsPath)
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "text" {
		t.Errorf("logging: expected info/text, got %s/%s", cfg.LogLevel, cfg.LogFormat)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("STATE_BACKEND", "SQLite")
	t.Setenv("STATE_DSN", "file:/tmp/eoflow.db")
	t.Setenv("STATE_PERSIST", "false")
	t.Setenv("SCHEDULER_POLL_INTERVAL", "5s")
	t.Setenv("REMOTE_ENABLED", "true")
	t.Setenv("REMOTE_API_URL", "http://prefect:4200/")
	t.Setenv("REMOTE_DEPLOYMENT_ID", "dep-1")
	t.Setenv("REMOTE_RATE_LIMIT", "2.5")
	t.Setenv("REMOTE_BREAKER_THRESHOLD", "0")
	t.Setenv("SCHEDULER_TOKEN", "s3cret")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.StateBackend != BackendSQLite {
		t.Errorf("StateBackend: expected sqlite, got %q", cfg.StateBackend)
	}
	if cfg.StatePersist {
		t.Error("StatePersist: expected false")
	}
	if cfg.SchedulerPollInterval != 5*time.Second {
		t.Errorf("SchedulerPollInterval: expected 5s, got %v", cfg.SchedulerPollInterval)
	}
	if !cfg.RemoteEnabled {
		t.Error("RemoteEnabled: expected true")
	}
	if cfg.RemoteAPIURL != "http://prefect:4200" {
		t.Errorf("RemoteAPIURL: trailing slash should be trimmed, got %q", cfg.RemoteAPIURL)
	}
	if cfg.RemoteRateLimit != 2.5 {
		t.Errorf("RemoteRateLimit: expected 2.5, got %v", cfg.RemoteRateLimit)
	}
	if cfg.RemoteBreakerThreshold != 0 {
		t.Errorf("RemoteBreakerThreshold: expected 0, got %d", cfg.RemoteBreakerThreshold)
	}
	if cfg.SchedulerToken != "s3cret" {
		t.Errorf("SchedulerToken: got %q", cfg.SchedulerToken)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}
}

func TestLoad_BareIntegerIsSeconds(t *testing.T) {
	clearEnv(t)
	t.Setenv("REMOTE_TIMEOUT", "45")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RemoteTimeout != 45*time.Second {
		t.Errorf("RemoteTimeout: expected 45s, got %v", cfg.RemoteTimeout)
	}
}

func TestLoad_InvalidDurationLeftForValidate(t *testing.T) {
	clearEnv(t)
	t.Setenv("SCHEDULER_POLL_INTERVAL", "soon")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SchedulerPollInterval != 0 {
		t.Errorf("expected zero duration, got %v", cfg.SchedulerPollInterval)
	}
	if err := Validate(cfg); err == nil || !strings.Contains(err.Error(), "SCHEDULER_POLL_INTERVAL") {
		t.Errorf("expected SCHEDULER_POLL_INTERVAL error, got %v", err)
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("HTTP_ADDR", ":9999")

	path := filepath.Join(t.TempDir(), "eoflow.yaml")
	data := "http_addr: \":7000\"\nscheduler_poll_interval: 1m\nprocesses_file: processes.yaml\nlog_format: json\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.HTTPAddr != ":9999" {
		t.Errorf("env should win over file, got %q", cfg.HTTPAddr)
	}
	if cfg.SchedulerPollInterval != time.Minute {
		t.Errorf("SchedulerPollInterval: expected 1m, got %v", cfg.SchedulerPollInterval)
	}
	if cfg.ProcessesFile != "processes.yaml" {
		t.Errorf("ProcessesFile: got %q", cfg.ProcessesFile)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat: got %q", cfg.LogFormat)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestMaskedJSON_MasksSecrets(t *testing.T) {
	cfg := Config{
		StateBackend:   BackendPostgres,
		StateDSN:       "postgres://user:pass@db/eoflow",
		SchedulerToken: "token-value",
		RemoteAPIKey:   "key-value",
		HTTPAddr:       ":8080",
	}

	data, err := cfg.MaskedJSON()
	if err != nil {
		t.Fatalf("MaskedJSON: %v", err)
	}
	out := string(data)

	for _, secret := range []string{"user:pass", "token-value", "key-value"} {
		if strings.Contains(out, secret) {
			t.Errorf("masked output leaks %q: %s", secret, out)
		}
	}
	if !strings.Contains(out, `"state_dsn": "postgres://***"`) {
		t.Errorf("expected scheme-preserving mask: %s", out)
	}
	if !strings.Contains(out, `"http_addr": ":8080"`) {
		t.Errorf("expected http_addr in output: %s", out)
	}
}

func TestMaskSecret(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"plain", "***"},
		{"postgresql://x", "postgresql://***"},
		{"file:state.db?_busy_timeout=5000", "file:***"},
	}
	for _, tt := range tests {
		if got := maskSecret(tt.in); got != tt.want {
			t.Errorf("maskSecret(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
