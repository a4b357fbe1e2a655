// Package config provides configuration loading and validation for the
// workflow server and its CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Duration is a time.Duration that reads and writes as a Go duration string
// such as "30m" or "12h" in JSON.
type Duration time.Duration

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"30m\": %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the server configuration. It can be loaded from a JSON file and
// overlaid by environment variables. Zero values mean "use the default".
type Config struct {
	Port        int    `json:"port,omitempty"`
	DatabaseURL string `json:"database_url,omitempty"` // empty runs on the in-memory store
	RedisURL    string `json:"redis_url,omitempty"`    // empty disables Redis-backed dedupe and throttling
	SeedFile    string `json:"seed_file,omitempty"`    // YAML users, jobs and applications loaded at startup

	JWTSecret          string `json:"jwt_secret,omitempty"`
	JWTExpirationHours int    `json:"jwt_expiration_hours,omitempty"`

	LogLevel  string `json:"log_level,omitempty"`  // debug, info, warn, error
	LogFormat string `json:"log_format,omitempty"` // text or json

	EditWindow              Duration `json:"edit_window,omitempty"`
	MaxEdits                int      `json:"max_edits,omitempty"`
	DeadlineWarningWindow   Duration `json:"deadline_warning_window,omitempty"`
	DeadlineWarningCooldown Duration `json:"deadline_warning_cooldown,omitempty"`
	SweepInterval           Duration `json:"sweep_interval,omitempty"`

	RateLimitEnabled   *bool `json:"rate_limit_enabled,omitempty"`
	RateLimitPerMinute int   `json:"rate_limit_per_minute,omitempty"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	enabled := true
	return Config{
		Port:                    8080,
		JWTExpirationHours:      24,
		LogLevel:                "info",
		LogFormat:               "text",
		EditWindow:              Duration(30 * time.Minute),
		MaxEdits:                3,
		DeadlineWarningWindow:   Duration(24 * time.Hour),
		DeadlineWarningCooldown: Duration(12 * time.Hour),
		SweepInterval:           Duration(time.Hour),
		RateLimitEnabled:        &enabled,
		RateLimitPerMinute:      120,
	}
}

// Load builds the effective configuration: the file at path (optional), then
// environment variables, then defaults. The result is validated.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		fileCfg, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = fileCfg
	}
	env, err := FromEnv()
	if err != nil {
		return nil, err
	}
	merged := env.MergeWithDefaults(*cfg).MergeWithDefaults(Defaults())
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return &merged, nil
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// FromEnv reads configuration from environment variables. Unset variables
// leave the field at its zero value.
func FromEnv() (Config, error) {
	var cfg Config
	var err error

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.RedisURL = os.Getenv("REDIS_URL")
	cfg.SeedFile = os.Getenv("SEED_FILE")
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	cfg.LogFormat = strings.ToLower(os.Getenv("LOG_FORMAT"))

	if cfg.Port, err = envInt("PORT"); err != nil {
		return cfg, err
	}
	if cfg.JWTExpirationHours, err = envInt("JWT_EXPIRATION_HOURS"); err != nil {
		return cfg, err
	}
	if cfg.MaxEdits, err = envInt("FEEDBACK_MAX_EDITS"); err != nil {
		return cfg, err
	}
	if cfg.RateLimitPerMinute, err = envInt("RATE_LIMIT_PER_MINUTE"); err != nil {
		return cfg, err
	}
	if cfg.EditWindow, err = envDuration("FEEDBACK_EDIT_WINDOW"); err != nil {
		return cfg, err
	}
	if cfg.DeadlineWarningWindow, err = envDuration("DEADLINE_WARNING_WINDOW"); err != nil {
		return cfg, err
	}
	if cfg.DeadlineWarningCooldown, err = envDuration("DEADLINE_WARNING_COOLDOWN"); err != nil {
		return cfg, err
	}
	if cfg.SweepInterval, err = envDuration("SWEEP_INTERVAL"); err != nil {
		return cfg, err
	}
	if v := os.Getenv("RATE_LIMIT_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid RATE_LIMIT_ENABLED: %v", err)
		}
		cfg.RateLimitEnabled = &b
	}
	return cfg, nil
}

func envInt(key string) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %v", key, err)
	}
	return n, nil
}

func envDuration(key string) (Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %v", key, err)
	}
	return Duration(d), nil
}

// Validate checks that the configuration has valid values. It does not
// require JWTSecret; commands that serve HTTP check it themselves.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("config error: 'port' must be between 0 and 65535")
	}
	if c.MaxEdits < 0 {
		return fmt.Errorf("config error: 'max_edits' must be non-negative")
	}
	if c.EditWindow < 0 {
		return fmt.Errorf("config error: 'edit_window' must be non-negative")
	}
	if c.DeadlineWarningWindow < 0 || c.DeadlineWarningCooldown < 0 {
		return fmt.Errorf("config error: deadline warning durations must be non-negative")
	}
	if c.SweepInterval < 0 {
		return fmt.Errorf("config error: 'sweep_interval' must be non-negative")
	}
	if c.RateLimitPerMinute < 0 {
		return fmt.Errorf("config error: 'rate_limit_per_minute' must be non-negative")
	}
	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config error: unknown log_level %q", c.LogLevel)
	}
	switch c.LogFormat {
	case "", "text", "json":
	default:
		return fmt.Errorf("config error: unknown log_format %q", c.LogFormat)
	}
	return nil
}

// MergeWithDefaults returns a new Config with zero fields filled from defaults.
func (c Config) MergeWithDefaults(defaults Config) Config {
	result := c

	if result.Port == 0 {
		result.Port = defaults.Port
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.RedisURL == "" {
		result.RedisURL = defaults.RedisURL
	}
	if result.SeedFile == "" {
		result.SeedFile = defaults.SeedFile
	}
	if result.JWTSecret == "" {
		result.JWTSecret = defaults.JWTSecret
	}
	if result.JWTExpirationHours == 0 {
		result.JWTExpirationHours = defaults.JWTExpirationHours
	}
	if result.LogLevel == "" {
		result.LogLevel = defaults.LogLevel
	}
	if result.LogFormat == "" {
		result.LogFormat = defaults.LogFormat
	}
	if result.EditWindow == 0 {
		result.EditWindow = defaults.EditWindow
	}
	if result.MaxEdits == 0 {
		result.MaxEdits = defaults.MaxEdits
	}
	if result.DeadlineWarningWindow == 0 {
		result.DeadlineWarningWindow = defaults.DeadlineWarningWindow
	}
	if result.DeadlineWarningCooldown == 0 {
		result.DeadlineWarningCooldown = defaults.DeadlineWarningCooldown
	}
	if result.SweepInterval == 0 {
		result.SweepInterval = defaults.SweepInterval
	}
	if result.RateLimitEnabled == nil {
		result.RateLimitEnabled = defaults.RateLimitEnabled
	}
	if result.RateLimitPerMinute == 0 {
		result.RateLimitPerMinute = defaults.RateLimitPerMinute
	}

	return result
}

// RateLimit reports whether request throttling is on. Unset means on.
func (c *Config) RateLimit() bool {
	return c.RateLimitEnabled == nil || *c.RateLimitEnabled
}
