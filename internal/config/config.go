package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTPAddr string `yaml:"http_addr"`

	// Env selects dev conveniences such as seeding. "dev" | "prod".
	Env string `yaml:"env"`

	DBPath       string `yaml:"db_path"`
	SchedulePath string `yaml:"schedule_path"`
	JournalPath  string `yaml:"journal_path"`

	// Lock behavior.
	PulseSeconds    int    `yaml:"pulse_seconds"`
	CooldownSeconds int    `yaml:"cooldown_seconds"`
	CooldownPolicy  string `yaml:"cooldown_policy"` // "suppress" | "deny"

	// Manual command freshness window.
	ManualWindowSeconds int `yaml:"manual_window_seconds"`

	// Rate limiting, per client IP. 0 disables.
	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`

	// Retention for heartbeat history and manual commands.
	RetentionDays      int `yaml:"retention_days"` // 0 = keep forever
	PruneIntervalHours int `yaml:"prune_interval_hours"`
}

func defaults() Config {
	return Config{
		HTTPAddr:            ":8080",
		Env:                 "dev",
		DBPath:              "./data/keybox.db",
		SchedulePath:        "./data/schedules.yaml",
		JournalPath:         "./data/attempts.log",
		PulseSeconds:        5,
		CooldownSeconds:     10,
		CooldownPolicy:      "suppress",
		ManualWindowSeconds: 5,
		RateLimitRPS:        20,
		RateLimitBurst:      40,
		RetentionDays:       30,
		PruneIntervalHours:  6,
	}
}

// Load builds the configuration: defaults, then the YAML file when path is
// non-empty, then KEYBOX_* environment overrides on top.
func Load(path string) (Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		dec := yaml.NewDecoder(strings.NewReader(string(data)))
		dec.KnownFields(true)
		// An empty file means no overrides, not a parse failure.
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromEnv builds the configuration without a file.
func FromEnv() (Config, error) {
	return Load("")
}

func applyEnv(cfg *Config) {
	cfg.HTTPAddr = getenvDefault("KEYBOX_HTTP_ADDR", cfg.HTTPAddr)
	cfg.Env = strings.ToLower(getenvDefault("KEYBOX_ENV", cfg.Env))
	cfg.DBPath = getenvDefault("KEYBOX_DB_PATH", cfg.DBPath)
	cfg.SchedulePath = getenvDefault("KEYBOX_SCHEDULE_PATH", cfg.SchedulePath)
	cfg.JournalPath = getenvDefault("KEYBOX_JOURNAL_PATH", cfg.JournalPath)
	cfg.CooldownPolicy = strings.ToLower(getenvDefault("KEYBOX_COOLDOWN_POLICY", cfg.CooldownPolicy))

	cfg.PulseSeconds = getenvInt("KEYBOX_PULSE_SECONDS", cfg.PulseSeconds)
	cfg.CooldownSeconds = getenvInt("KEYBOX_COOLDOWN_SECONDS", cfg.CooldownSeconds)
	cfg.ManualWindowSeconds = getenvInt("KEYBOX_MANUAL_WINDOW_SECONDS", cfg.ManualWindowSeconds)
	cfg.RetentionDays = getenvInt("KEYBOX_RETENTION_DAYS", cfg.RetentionDays)
	cfg.PruneIntervalHours = getenvInt("KEYBOX_PRUNE_INTERVAL_HOURS", cfg.PruneIntervalHours)
	cfg.RateLimitBurst = getenvInt("KEYBOX_RATE_LIMIT_BURST", cfg.RateLimitBurst)
	cfg.RateLimitRPS = getenvFloat("KEYBOX_RATE_LIMIT_RPS", cfg.RateLimitRPS)
}

func (c *Config) validate() error {
	if c.Env != "dev" && c.Env != "prod" {
		// fail-soft: treat unknown as dev
		c.Env = "dev"
	}
	if c.CooldownPolicy != "suppress" && c.CooldownPolicy != "deny" {
		return fmt.Errorf("cooldown_policy must be suppress or deny, got %q", c.CooldownPolicy)
	}
	if c.PulseSeconds <= 0 {
		return fmt.Errorf("pulse_seconds must be positive, got %d", c.PulseSeconds)
	}
	if c.CooldownSeconds < 0 {
		return fmt.Errorf("cooldown_seconds must not be negative, got %d", c.CooldownSeconds)
	}
	return nil
}

func (c Config) Pulse() time.Duration        { return time.Duration(c.PulseSeconds) * time.Second }
func (c Config) Cooldown() time.Duration     { return time.Duration(c.CooldownSeconds) * time.Second }
func (c Config) ManualWindow() time.Duration { return time.Duration(c.ManualWindowSeconds) * time.Second }

func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func getenvFloat(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return def
	}
	return f
}
