package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// State backends.
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Config holds all configuration for the eoflow service.
// Values come from environment variables, optionally layered over a YAML file
// whose keys are the lower-cased variable names (state_dir, http_addr, ...).
type Config struct {
	StateDir     string `json:"state_dir"`
	StatePersist bool   `json:"state_persist"`
	StateBackend string `json:"state_backend"`
	StateDSN     string `json:"state_dsn,omitempty"`

	SchedulerEnabled         bool          `json:"scheduler_enabled"`
	SchedulerPollInterval    time.Duration `json:"-"`
	SchedulerPollIntervalStr string        `json:"scheduler_poll_interval"`
	SchedulerToken           string        `json:"scheduler_token,omitempty"`

	RemoteEnabled      bool          `json:"remote_enabled"`
	RemoteAPIURL       string        `json:"remote_api_url,omitempty"`
	RemoteAPIKey       string        `json:"remote_api_key,omitempty"`
	RemoteDeploymentID string        `json:"remote_deployment_id,omitempty"`
	RemoteTimeout      time.Duration `json:"-"`
	RemoteTimeoutStr   string        `json:"remote_timeout"`

	// RemoteRateLimit is submissions per second; 0 means unlimited.
	RemoteRateLimit float64 `json:"remote_rate_limit"`

	// RemoteBreakerThreshold is consecutive failures before the breaker opens;
	// values <= 0 use the remote client's default.
	RemoteBreakerThreshold   int           `json:"remote_breaker_threshold"`
	RemoteBreakerCooldown    time.Duration `json:"-"`
	RemoteBreakerCooldownStr string        `json:"remote_breaker_cooldown"`

	HTTPAddr               string        `json:"http_addr"`
	HTTPShutdownTimeout    time.Duration `json:"-"`
	HTTPShutdownTimeoutStr string        `json:"http_shutdown_timeout"`

	MetricsEnabled bool   `json:"metrics_enabled"`
	MetricsPath    string `json:"metrics_path"`
	MetricsPort    string `json:"metrics_port"`

	RedisAddr string `json:"redis_addr,omitempty"`

	ProcessesFile string `json:"processes_file,omitempty"`
	SeedFile      string `json:"seed_file,omitempty"`

	LogLevel  string `json:"log_level"`
	LogFormat string `json:"log_format"`
}

var defaults = map[string]any{
	"state_dir":                ".cache/state",
	"state_persist":            true,
	"state_backend":            BackendFile,
	"scheduler_enabled":        true,
	"scheduler_poll_interval":  "30s",
	"remote_enabled":           false,
	"remote_timeout":           "20s",
	"remote_rate_limit":        10.0,
	"remote_breaker_threshold": 5,
	"remote_breaker_cooldown":  "1m",
	"http_addr":                ":8080",
	"http_shutdown_timeout":    "10s",
	"metrics_enabled":          false,
	"metrics_path":             "/metrics",
	"metrics_port":             "9090",
	"log_level":                "info",
	"log_format":               "text",
}

// Load reads configuration from the environment, layered over the YAML file
// at path when path is non-empty. Malformed durations are left for Validate.
func Load(path string) (Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	// Keys without a default still need binding so AutomaticEnv sees them.
	for _, k := range []string{
		"state_dsn", "scheduler_token", "remote_api_url", "remote_api_key",
		"remote_deployment_id", "redis_addr", "processes_file", "seed_file",
	} {
		if err := v.BindEnv(k); err != nil {
			return Config{}, fmt.Errorf("config: bind %s: %w", k, err)
		}
	}
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	cfg := Config{
		StateDir:                 v.GetString("state_dir"),
		StatePersist:             v.GetBool("state_persist"),
		StateBackend:             strings.ToLower(v.GetString("state_backend")),
		StateDSN:                 v.GetString("state_dsn"),
		SchedulerEnabled:         v.GetBool("scheduler_enabled"),
		SchedulerPollIntervalStr: v.GetString("scheduler_poll_interval"),
		SchedulerToken:           v.GetString("scheduler_token"),
		RemoteEnabled:            v.GetBool("remote_enabled"),
		RemoteAPIURL:             strings.TrimRight(v.GetString("remote_api_url"), "/"),
		RemoteAPIKey:             v.GetString("remote_api_key"),
		RemoteDeploymentID:       v.GetString("remote_deployment_id"),
		RemoteTimeoutStr:         v.GetString("remote_timeout"),
		RemoteRateLimit:          v.GetFloat64("remote_rate_limit"),
		RemoteBreakerThreshold:   v.GetInt("remote_breaker_threshold"),
		RemoteBreakerCooldownStr: v.GetString("remote_breaker_cooldown"),
		HTTPAddr:                 v.GetString("http_addr"),
		HTTPShutdownTimeoutStr:   v.GetString("http_shutdown_timeout"),
		MetricsEnabled:           v.GetBool("metrics_enabled"),
		MetricsPath:              v.GetString("metrics_path"),
		MetricsPort:              v.GetString("metrics_port"),
		RedisAddr:                v.GetString("redis_addr"),
		ProcessesFile:            v.GetString("processes_file"),
		SeedFile:                 v.GetString("seed_file"),
		LogLevel:                 strings.ToLower(v.GetString("log_level")),
		LogFormat:                strings.ToLower(v.GetString("log_format")),
	}

	// Parse durations; validation is handled separately by Validate().
	if d, err := parseDuration(cfg.SchedulerPollIntervalStr); err == nil {
		cfg.SchedulerPollInterval = d
	}
	if d, err := parseDuration(cfg.RemoteTimeoutStr); err == nil {
		cfg.RemoteTimeout = d
	}
	if d, err := parseDuration(cfg.RemoteBreakerCooldownStr); err == nil {
		cfg.RemoteBreakerCooldown = d
	}
	if d, err := parseDuration(cfg.HTTPShutdownTimeoutStr); err == nil {
		cfg.HTTPShutdownTimeout = d
	}

	return cfg, nil
}

// parseDuration accepts Go duration syntax or a bare integer number of seconds.
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(s)
}

// MaskedJSON returns the configuration as JSON with secrets masked.
func (c Config) MaskedJSON() ([]byte, error) {
	masked := c
	masked.StateDSN = maskSecret(c.StateDSN)
	masked.SchedulerToken = maskSecret(c.SchedulerToken)
	masked.RemoteAPIKey = maskSecret(c.RemoteAPIKey)
	return json.MarshalIndent(masked, "", "  ")
}

// maskSecret masks a secret value, preserving only the URI scheme if present.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	for _, scheme := range []string{"postgres://", "postgresql://", "file:"} {
		if strings.HasPrefix(s, scheme) {
			return scheme + "***"
		}
	}
	return "***"
}
