package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata" // zone database for hosts without one

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultForecastAPIURL is the MET Norway locationforecast compact endpoint.
const DefaultForecastAPIURL = "https://api.met.no/weatherapi/locationforecast/2.0/compact"

// Config holds service configuration loaded from YAML and env.
type Config struct {
	ServerPort     string
	RequestTimeout time.Duration
	Compress       bool

	ForecastAPIURL     string
	ForecastUserAgent  string
	ForecastAPITimeout time.Duration

	RetryAttempts   int
	RetryBaseDelay  time.Duration
	RetryMaxDelay   time.Duration
	BreakerFailures int // 0 disables the circuit breaker
	BreakerCooldown time.Duration
	RateLimitRPS    int // 0 disables rate limiting
	RateLimitBurst  int

	CacheBackend          string // "in_memory" or "memcached"
	CacheTTL              time.Duration
	CoalesceTimeout       time.Duration
	WarmCache             bool
	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	DataDir  string
	Timezone string
	Location *time.Location

	PipelineInterval   time.Duration
	PipelineRunTimeout time.Duration
	DaysAhead          int
	Parallel           bool
	CircularWindMean   bool

	ShutdownTimeout               time.Duration
	ShutdownInFlightTimeout       time.Duration
	ShutdownInFlightCheckInterval time.Duration
}

type fileConfig struct {
	Server struct {
		Port           string `yaml:"port"`
		RequestTimeout string `yaml:"request_timeout"`
		Compress       *bool  `yaml:"compress"`
	} `yaml:"server"`

	ForecastAPI struct {
		URL       string `yaml:"url"`
		UserAgent string `yaml:"user_agent"`
		Timeout   string `yaml:"timeout"`
	} `yaml:"forecast_api"`

	Cache struct {
		Backend         string `yaml:"backend"`
		TTL             string `yaml:"ttl"`
		CoalesceTimeout string `yaml:"coalesce_timeout"`
		Warm            *bool  `yaml:"warm"`
		Memcached       struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
	} `yaml:"cache"`

	Reliability struct {
		RetryMaxAttempts int    `yaml:"retry_max_attempts"`
		RetryBaseDelay   string `yaml:"retry_base_delay"`
		RetryMaxDelay    string `yaml:"retry_max_delay"`
		BreakerFailures  int    `yaml:"breaker_failures"`
		BreakerCooldown  string `yaml:"breaker_cooldown"`
		RateLimitRPS     *int   `yaml:"rate_limit_rps"`
		RateLimitBurst   int    `yaml:"rate_limit_burst"`
	} `yaml:"reliability"`

	Pipeline struct {
		Interval         string `yaml:"interval"`
		RunTimeout       string `yaml:"run_timeout"`
		DaysAhead        int    `yaml:"days_ahead"`
		Parallel         bool   `yaml:"parallel"`
		CircularWindMean bool   `yaml:"circular_wind_mean"`
		DataDir          string `yaml:"data_dir"`
		Timezone         string `yaml:"timezone"`
	} `yaml:"pipeline"`

	Shutdown struct {
		Timeout               string `yaml:"timeout"`
		InFlightTimeout       string `yaml:"in_flight_timeout"`
		InFlightCheckInterval string `yaml:"in_flight_check_interval"`
	} `yaml:"shutdown"`
}

// Load reads an optional .env file, then config/{ENV_NAME}.yaml (default dev), then env overrides.
// A missing YAML file means defaults. Call from project root.
func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	if err := loadDotEnv(filepath.Join(cwd, ".env")); err != nil {
		return nil, err
	}

	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}
	var fc fileConfig
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", configPath, err)
		}
	}

	cfg := fromFile(&fc)
	applyEnv(cfg)
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadDotEnv loads path into the environment without overriding variables already set.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func fromFile(fc *fileConfig) *Config {
	cfg := &Config{}

	cfg.ServerPort = orDefault(fc.Server.Port, "7700")
	cfg.RequestTimeout = parseDuration(fc.Server.RequestTimeout, 5*time.Second)
	cfg.Compress = boolOr(fc.Server.Compress, true)

	cfg.ForecastAPIURL = orDefault(fc.ForecastAPI.URL, DefaultForecastAPIURL)
	cfg.ForecastUserAgent = strings.TrimSpace(fc.ForecastAPI.UserAgent)
	cfg.ForecastAPITimeout = parseDurationOrZero(fc.ForecastAPI.Timeout, 15*time.Second)

	cfg.RetryAttempts = fc.Reliability.RetryMaxAttempts
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 1
	}
	cfg.RetryBaseDelay = parseDuration(fc.Reliability.RetryBaseDelay, 500*time.Millisecond)
	cfg.RetryMaxDelay = parseDuration(fc.Reliability.RetryMaxDelay, 5*time.Second)
	cfg.BreakerFailures = fc.Reliability.BreakerFailures
	cfg.BreakerCooldown = parseDuration(fc.Reliability.BreakerCooldown, 30*time.Second)
	cfg.RateLimitRPS = 100
	if fc.Reliability.RateLimitRPS != nil {
		cfg.RateLimitRPS = *fc.Reliability.RateLimitRPS
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 250
	}

	cfg.CacheBackend = strings.TrimSpace(strings.ToLower(fc.Cache.Backend))
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = "in_memory"
	}
	cfg.CacheTTL = parseDuration(fc.Cache.TTL, 5*time.Minute)
	cfg.CoalesceTimeout = parseDuration(fc.Cache.CoalesceTimeout, 5*time.Second)
	cfg.WarmCache = boolOr(fc.Cache.Warm, true)
	cfg.MemcachedAddrs = orDefault(fc.Cache.Memcached.Addrs, "localhost:11211")
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Cache.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}

	cfg.DataDir = orDefault(fc.Pipeline.DataDir, "data")
	cfg.Timezone = orDefault(fc.Pipeline.Timezone, "Africa/Johannesburg")
	cfg.PipelineInterval = parseDuration(fc.Pipeline.Interval, time.Hour)
	cfg.PipelineRunTimeout = parseDuration(fc.Pipeline.RunTimeout, 10*time.Minute)
	cfg.DaysAhead = fc.Pipeline.DaysAhead
	if cfg.DaysAhead <= 0 {
		cfg.DaysAhead = 1
	}
	cfg.Parallel = fc.Pipeline.Parallel
	cfg.CircularWindMean = fc.Pipeline.CircularWindMean

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)
	cfg.ShutdownInFlightTimeout = parseDuration(fc.Shutdown.InFlightTimeout, 10*time.Second)
	cfg.ShutdownInFlightCheckInterval = parseDuration(fc.Shutdown.InFlightCheckInterval, 100*time.Millisecond)
	return cfg
}

// applyEnv overrides file values with non-empty environment variables.
func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		cfg.ServerPort = v
	}
	if v := strings.TrimSpace(os.Getenv("FORECAST_API_URL")); v != "" {
		cfg.ForecastAPIURL = v
	}
	if v := strings.TrimSpace(os.Getenv("FORECAST_USER_AGENT")); v != "" {
		cfg.ForecastUserAgent = v
	}
	if v := strings.TrimSpace(os.Getenv("DATA_DIR")); v != "" {
		cfg.DataDir = v
	}
	if v := strings.TrimSpace(strings.ToLower(os.Getenv("CACHE_BACKEND"))); v != "" {
		cfg.CacheBackend = v
	}
	if v := strings.TrimSpace(os.Getenv("MEMCACHED_ADDRS")); v != "" {
		cfg.MemcachedAddrs = v
	}
	if v := strings.TrimSpace(os.Getenv("TIMEZONE")); v != "" {
		cfg.Timezone = v
	}
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return def
}

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}

// parseDuration parses s, falling back to defaultVal when s is empty, invalid or not positive.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero returns defaultVal on an empty or invalid string and keeps
// non-positive values so validate can reject them.
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate rejects unusable values, resolves the time zone and stretches RequestTimeout so it
// never undercuts a cold store read.
func validate(cfg *Config) error {
	if cfg.ForecastUserAgent == "" {
		return fmt.Errorf("FORECAST_USER_AGENT required (set env or forecast_api.user_agent); the provider rejects anonymous clients")
	}
	if cfg.ForecastAPITimeout <= 0 {
		return fmt.Errorf("forecast_api.timeout must be positive")
	}
	if cfg.RetryMaxDelay < cfg.RetryBaseDelay {
		return fmt.Errorf("reliability.retry_max_delay (%s) must be >= retry_base_delay (%s)", cfg.RetryMaxDelay, cfg.RetryBaseDelay)
	}
	if cfg.BreakerFailures < 0 {
		return fmt.Errorf("reliability.breaker_failures must not be negative")
	}
	if cfg.RateLimitRPS < 0 {
		return fmt.Errorf("reliability.rate_limit_rps must not be negative")
	}
	switch cfg.CacheBackend {
	case "in_memory", "memcached":
	default:
		return fmt.Errorf("cache.backend must be in_memory or memcached, got %q", cfg.CacheBackend)
	}
	if cfg.DaysAhead > 9 {
		return fmt.Errorf("pipeline.days_ahead must be at most 9 (provider horizon), got %d", cfg.DaysAhead)
	}
	if cfg.PipelineRunTimeout > cfg.PipelineInterval {
		cfg.PipelineRunTimeout = cfg.PipelineInterval
	}
	if cfg.RequestTimeout <= cfg.CoalesceTimeout {
		cfg.RequestTimeout = cfg.CoalesceTimeout + time.Second
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return fmt.Errorf("pipeline.timezone %q: %w", cfg.Timezone, err)
	}
	cfg.Location = loc
	return nil
}
