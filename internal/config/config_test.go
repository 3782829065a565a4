package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var configEnvVars = []string{
	"ENV_NAME", "PORT", "FORECAST_API_URL", "FORECAST_USER_AGENT", "DATA_DIR",
	"CACHE_BACKEND", "MEMCACHED_ADDRS", "TIMEZONE",
}

// isolate clears every variable Load reads and runs the test from an empty project root.
func isolate(t *testing.T) string {
	t.Helper()
	for _, k := range configEnvVars {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	dir := t.TempDir()
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(origWd) })
	return dir
}

func writeEnvFile(t *testing.T, dir, name, content string) {
	t.Helper()
	configDir := filepath.Join(dir, "config")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(configDir, name+".yaml"), []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestLoad_DefaultsWithoutConfigFile(t *testing.T) {
	isolate(t)
	t.Setenv("FORECAST_USER_AGENT", "daily-forecast-service/test ops@example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	checks := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"ServerPort", cfg.ServerPort, "7700"},
		{"ForecastAPIURL", cfg.ForecastAPIURL, DefaultForecastAPIURL},
		{"ForecastAPITimeout", cfg.ForecastAPITimeout, 15 * time.Second},
		{"RetryAttempts", cfg.RetryAttempts, 1},
		{"BreakerFailures", cfg.BreakerFailures, 0},
		{"CacheBackend", cfg.CacheBackend, "in_memory"},
		{"CacheTTL", cfg.CacheTTL, 5 * time.Minute},
		{"WarmCache", cfg.WarmCache, true},
		{"Compress", cfg.Compress, true},
		{"DataDir", cfg.DataDir, "data"},
		{"Timezone", cfg.Timezone, "Africa/Johannesburg"},
		{"PipelineInterval", cfg.PipelineInterval, time.Hour},
		{"DaysAhead", cfg.DaysAhead, 1},
		{"Parallel", cfg.Parallel, false},
		{"CircularWindMean", cfg.CircularWindMean, false},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
	if cfg.Location == nil || cfg.Location.String() != "Africa/Johannesburg" {
		t.Errorf("Location = %v", cfg.Location)
	}
}

func TestLoad_FailsWithoutUserAgent(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	if err == nil {
		t.Fatal("Load() expected error without a user agent, got nil")
	}
	if cfg != nil {
		t.Fatalf("Load() expected nil config on error, got %+v", cfg)
	}
	if !strings.Contains(err.Error(), "FORECAST_USER_AGENT") {
		t.Errorf("Load() error = %v, want message containing FORECAST_USER_AGENT", err)
	}
}

func TestLoad_FromYAML(t *testing.T) {
	dir := isolate(t)
	writeEnvFile(t, dir, "dev", `
server:
  port: "9000"
  request_timeout: "8s"
  compress: false
forecast_api:
  url: "http://localhost:1234/compact"
  user_agent: "from-yaml/1.0"
  timeout: "3s"
cache:
  backend: "Memcached"
  ttl: "10m"
  warm: false
  memcached:
    addrs: "mc1:11211,mc2:11211"
reliability:
  retry_max_attempts: 3
  retry_base_delay: "100ms"
  retry_max_delay: "1s"
  breaker_failures: 5
  breaker_cooldown: "1m"
  rate_limit_rps: 0
pipeline:
  interval: "30m"
  run_timeout: "2h"
  days_ahead: 3
  parallel: true
  circular_wind_mean: true
  data_dir: "/var/lib/forecast"
  timezone: "UTC"
`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ServerPort != "9000" || cfg.RequestTimeout != 8*time.Second || cfg.Compress {
		t.Errorf("server = %q %v %v", cfg.ServerPort, cfg.RequestTimeout, cfg.Compress)
	}
	if cfg.ForecastAPIURL != "http://localhost:1234/compact" || cfg.ForecastUserAgent != "from-yaml/1.0" || cfg.ForecastAPITimeout != 3*time.Second {
		t.Errorf("forecast_api = %q %q %v", cfg.ForecastAPIURL, cfg.ForecastUserAgent, cfg.ForecastAPITimeout)
	}
	if cfg.CacheBackend != "memcached" || cfg.CacheTTL != 10*time.Minute || cfg.WarmCache || cfg.MemcachedAddrs != "mc1:11211,mc2:11211" {
		t.Errorf("cache = %q %v %v %q", cfg.CacheBackend, cfg.CacheTTL, cfg.WarmCache, cfg.MemcachedAddrs)
	}
	if cfg.RetryAttempts != 3 || cfg.BreakerFailures != 5 || cfg.BreakerCooldown != time.Minute {
		t.Errorf("reliability = %d %d %v", cfg.RetryAttempts, cfg.BreakerFailures, cfg.BreakerCooldown)
	}
	if cfg.RateLimitRPS != 0 {
		t.Errorf("RateLimitRPS = %d, want explicit 0 kept (limiter disabled)", cfg.RateLimitRPS)
	}
	if cfg.PipelineInterval != 30*time.Minute || cfg.DaysAhead != 3 || !cfg.Parallel || !cfg.CircularWindMean {
		t.Errorf("pipeline = %v %d %v %v", cfg.PipelineInterval, cfg.DaysAhead, cfg.Parallel, cfg.CircularWindMean)
	}
	if cfg.PipelineRunTimeout != 30*time.Minute {
		t.Errorf("PipelineRunTimeout = %v, want capped at the interval", cfg.PipelineRunTimeout)
	}
	if cfg.DataDir != "/var/lib/forecast" || cfg.Location != time.UTC {
		t.Errorf("DataDir = %q, Location = %v", cfg.DataDir, cfg.Location)
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	dir := isolate(t)
	writeEnvFile(t, dir, "staging", `
server:
  port: "9000"
forecast_api:
  user_agent: "from-yaml/1.0"
pipeline:
  data_dir: "yaml-data"
`)
	t.Setenv("ENV_NAME", "staging")
	t.Setenv("PORT", "7711")
	t.Setenv("FORECAST_API_URL", "http://override/compact")
	t.Setenv("FORECAST_USER_AGENT", "from-env/2.0")
	t.Setenv("DATA_DIR", "env-data")
	t.Setenv("CACHE_BACKEND", "MEMCACHED")
	t.Setenv("MEMCACHED_ADDRS", "cache:11211")
	t.Setenv("TIMEZONE", "Europe/Oslo")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ServerPort != "7711" {
		t.Errorf("ServerPort = %q", cfg.ServerPort)
	}
	if cfg.ForecastAPIURL != "http://override/compact" || cfg.ForecastUserAgent != "from-env/2.0" {
		t.Errorf("forecast api = %q %q", cfg.ForecastAPIURL, cfg.ForecastUserAgent)
	}
	if cfg.DataDir != "env-data" || cfg.CacheBackend != "memcached" || cfg.MemcachedAddrs != "cache:11211" {
		t.Errorf("DataDir = %q, CacheBackend = %q, MemcachedAddrs = %q", cfg.DataDir, cfg.CacheBackend, cfg.MemcachedAddrs)
	}
	if cfg.Location.String() != "Europe/Oslo" {
		t.Errorf("Location = %v", cfg.Location)
	}
}

func TestLoad_DotEnvFile(t *testing.T) {
	dir := isolate(t)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("FORECAST_USER_AGENT=from-dotenv/1.0\nPORT=7800\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PORT", "7900")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ForecastUserAgent != "from-dotenv/1.0" {
		t.Errorf("ForecastUserAgent = %q, want value from .env", cfg.ForecastUserAgent)
	}
	if cfg.ServerPort != "7900" {
		t.Errorf("ServerPort = %q, want the real environment to win over .env", cfg.ServerPort)
	}
}

func TestLoad_DurationFallbacks(t *testing.T) {
	dir := isolate(t)
	t.Setenv("FORECAST_USER_AGENT", "ua")
	writeEnvFile(t, dir, "dev", `
forecast_api:
  timeout: ""
cache:
  ttl: "invalid"
pipeline:
  interval: "-5m"
`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ForecastAPITimeout != 15*time.Second {
		t.Errorf("ForecastAPITimeout = %v, want default", cfg.ForecastAPITimeout)
	}
	if cfg.CacheTTL != 5*time.Minute {
		t.Errorf("CacheTTL = %v, want default", cfg.CacheTTL)
	}
	if cfg.PipelineInterval != time.Hour {
		t.Errorf("PipelineInterval = %v, want default", cfg.PipelineInterval)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"zero provider timeout", "forecast_api:\n  timeout: \"0s\"\n", "forecast_api.timeout"},
		{"bad backend", "cache:\n  backend: redis\n", "cache.backend"},
		{"bad timezone", "pipeline:\n  timezone: Mars/Olympus\n", "pipeline.timezone"},
		{"too many days", "pipeline:\n  days_ahead: 12\n", "days_ahead"},
		{"negative breaker", "reliability:\n  breaker_failures: -1\n", "breaker_failures"},
		{"negative rate", "reliability:\n  rate_limit_rps: -5\n", "rate_limit_rps"},
		{"retry delays inverted", "reliability:\n  retry_base_delay: 2s\n  retry_max_delay: 1s\n", "retry_max_delay"},
		{"invalid yaml", "server: [unclosed\n", "parse config file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := isolate(t)
			t.Setenv("FORECAST_USER_AGENT", "ua")
			writeEnvFile(t, dir, "dev", tt.yaml)

			cfg, err := Load()
			if err == nil {
				t.Fatalf("Load() = %+v, want error", cfg)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_RequestTimeoutCoversCoalescedLoad(t *testing.T) {
	dir := isolate(t)
	t.Setenv("FORECAST_USER_AGENT", "ua")
	writeEnvFile(t, dir, "dev", "server:\n  request_timeout: 1s\ncache:\n  coalesce_timeout: 3s\n")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.RequestTimeout != 4*time.Second {
		t.Errorf("RequestTimeout = %v, want 4s", cfg.RequestTimeout)
	}
}

func TestRepoConfigFilesLoad(t *testing.T) {
	root := findProjectRoot(t)
	entries, err := os.ReadDir(filepath.Join(root, "config"))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), ".yaml")
		if !ok {
			continue
		}
		t.Run(name, func(t *testing.T) {
			dir := isolate(t)
			data, err := os.ReadFile(filepath.Join(root, "config", e.Name()))
			if err != nil {
				t.Fatal(err)
			}
			writeEnvFile(t, dir, name, string(data))
			t.Setenv("ENV_NAME", name)
			t.Setenv("FORECAST_USER_AGENT", "ua")
			if _, err := Load(); err != nil {
				t.Errorf("config/%s does not load: %v", e.Name(), err)
			}
		})
	}
}

func findProjectRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("go.mod not found")
		}
		dir = parent
	}
}
