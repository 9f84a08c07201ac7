// Package config loads bark settings from the environment and the optional
// normalization rules file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // zone database for hosts without one

	"gopkg.in/yaml.v3"

	"github.com/example/bark/internal/core/cycletime"
)

// DefaultSubject is the NATS subject transitions are published on.
const DefaultSubject = "bark.job.phase_changed"

// Config holds all application configuration.
type Config struct {
	DBPath     string
	Location   *time.Location
	WindowDays int
	MaxWindow  int
	Editors    []string
	Actor      string
	LogLevel   slog.Level
	Rules      cycletime.Rules
	RulesPath  string

	HTTP HTTPConfig
	NATS NATSConfig
}

// HTTPConfig holds settings for `bark serve`.
type HTTPConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// NATSConfig holds publisher settings. An empty URL disables publishing.
type NATSConfig struct {
	URL     string
	Subject string
	Timeout time.Duration
}

// Load reads configuration from environment variables and validates it.
func Load() (*Config, error) {
	loc, err := time.LoadLocation(getEnv("BARK_TZ", "Asia/Manila"))
	if err != nil {
		return nil, fmt.Errorf("parse BARK_TZ: %w", err)
	}

	windowDays, err := getEnvInt("BARK_WINDOW_DAYS", 30)
	if err != nil {
		return nil, fmt.Errorf("parse BARK_WINDOW_DAYS: %w", err)
	}

	maxWindow, err := getEnvInt("BARK_MAX_WINDOW_DAYS", 366)
	if err != nil {
		return nil, fmt.Errorf("parse BARK_MAX_WINDOW_DAYS: %w", err)
	}

	shutdown, err := getEnvDuration("BARK_HTTP_SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("parse BARK_HTTP_SHUTDOWN_TIMEOUT: %w", err)
	}

	natsTimeout, err := getEnvDuration("BARK_NATS_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("parse BARK_NATS_TIMEOUT: %w", err)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(getEnv("BARK_LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("parse BARK_LOG_LEVEL: %w", err)
	}

	cfg := &Config{
		DBPath:     getEnv("BARK_DB_PATH", ""),
		Location:   loc,
		WindowDays: windowDays,
		MaxWindow:  maxWindow,
		Editors:    getEnvList("BARK_EDITORS", []string{"admin"}),
		Actor:      getEnv("BARK_ACTOR", os.Getenv("USER")),
		LogLevel:   level,
		RulesPath:  getEnv("BARK_RULES_FILE", ""),
		HTTP: HTTPConfig{
			Addr:            getEnv("BARK_HTTP_ADDR", ":8080"),
			ShutdownTimeout: shutdown,
		},
		NATS: NATSConfig{
			URL:     getEnv("BARK_NATS_URL", ""),
			Subject: getEnv("BARK_NATS_SUBJECT", DefaultSubject),
			Timeout: natsTimeout,
		},
	}

	cfg.Rules = cycletime.DefaultRules()
	if cfg.RulesPath != "" {
		if cfg.Rules, err = LoadRules(cfg.RulesPath); err != nil {
			return nil, err
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.WindowDays < 1 {
		return fmt.Errorf("BARK_WINDOW_DAYS must be at least 1")
	}
	if c.MaxWindow < c.WindowDays {
		return fmt.Errorf("BARK_MAX_WINDOW_DAYS must be at least BARK_WINDOW_DAYS (%d)", c.WindowDays)
	}
	if c.NATS.URL != "" && c.NATS.Subject == "" {
		return fmt.Errorf("BARK_NATS_SUBJECT is required when BARK_NATS_URL is set")
	}
	return nil
}

// LoadRules reads normalization rules from a YAML file. Keys the file omits
// keep their defaults; a price_brackets list replaces the default brackets.
func LoadRules(path string) (cycletime.Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return cycletime.Rules{}, fmt.Errorf("failed to read rules: %w", err)
	}

	rules := cycletime.DefaultRules()
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return cycletime.Rules{}, fmt.Errorf("failed to parse rules %s: %w", path, err)
	}
	compiled, err := rules.Compile()
	if err != nil {
		return cycletime.Rules{}, fmt.Errorf("invalid rules %s: %w", path, err)
	}
	return compiled, nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	return strconv.Atoi(v)
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	return time.ParseDuration(v)
}

// getEnvList splits a comma-separated variable, dropping blanks.
func getEnvList(key string, defaultValue []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
