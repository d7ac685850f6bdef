package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/djlord-it/eoflow/internal/config"
)

func validConfig() config.Config {
	return config.Config{
		StateDir:                 ".cache/state",
		StatePersist:             true,
		StateBackend:             config.BackendFile,
		SchedulerPollIntervalStr: "30s",
		HTTPShutdownTimeoutStr:   "10s",
		LogLevel:                 "info",
		LogFormat:                "text",
	}
}

func TestExitCode(t *testing.T) {
	if got := exitCode(nil); got != exitSuccess {
		t.Errorf("exitCode(nil) = %d", got)
	}
	if got := exitCode(errors.New("boom")); got != exitRuntimeError {
		t.Errorf("exitCode(plain) = %d", got)
	}
	if got := exitCode(invalidConfig(errors.New("bad"))); got != exitInvalidConfig {
		t.Errorf("exitCode(invalid config) = %d", got)
	}
}

func TestRunValidate(t *testing.T) {
	if err := runValidate(validConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg := validConfig()
	cfg.StateBackend = "etcd"
	if err := runValidate(cfg); exitCode(err) != exitInvalidConfig {
		t.Errorf("expected invalid config exit, got %v", err)
	}

	dir := t.TempDir()
	bad := filepath.Join(dir, "processes.yaml")
	if err := os.WriteFile(bad, []byte("processes:\n  - title: no id\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg = validConfig()
	cfg.ProcessesFile = bad
	if err := runValidate(cfg); exitCode(err) != exitInvalidConfig {
		t.Errorf("expected invalid processes file to fail, got %v", err)
	}

	cfg = validConfig()
	cfg.SeedFile = filepath.Join(dir, "missing.yaml")
	if err := runValidate(cfg); exitCode(err) != exitInvalidConfig {
		t.Errorf("expected missing seed file to fail, got %v", err)
	}
}

func TestVersionCommand(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	if err := root.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out.String(), "eoflow version dev") {
		t.Errorf("unexpected output: %q", out.String())
	}
}

func TestConfigCommand_MasksSecrets(t *testing.T) {
	t.Setenv("SCHEDULER_TOKEN", "super-secret-token")
	t.Setenv("STATE_DSN", "postgres://user:pw@db/eoflow")

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"config"})

	if err := root.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if strings.Contains(out.String(), "super-secret-token") || strings.Contains(out.String(), "user:pw") {
		t.Errorf("secrets leaked: %s", out.String())
	}
	if !strings.Contains(out.String(), `"state_dsn": "postgres://***"`) {
		t.Errorf("expected masked dsn: %s", out.String())
	}
}

func TestConfigCommand_MissingFile(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"config", "--config", filepath.Join(t.TempDir(), "nope.yaml")})

	err := root.Execute()
	if exitCode(err) != exitInvalidConfig {
		t.Errorf("expected invalid config exit, got %v", err)
	}
}
