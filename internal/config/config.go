// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/crypto/bcrypt"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	GRPCPort    string // empty disables the gRPC health server
	FrontendURL string
	DBPath      string
	LogLevel    slog.Level

	Content    ContentConfig
	Evaluation EvaluationConfig
	Retention  RetentionConfig

	// TeacherPINHash is a bcrypt hash. Empty means teacher mode can be
	// enabled without a PIN.
	TeacherPINHash string
}

// ContentConfig controls where lessons and projects are loaded from.
type ContentConfig struct {
	Dir   string // empty = embedded catalog
	Watch bool
}

// EvaluationConfig tunes challenge evaluation.
type EvaluationConfig struct {
	Debounce       time.Duration
	RegexTimeout   time.Duration
	MaxBufferBytes int64
}

// RetentionConfig controls the cleanup of inactive learners.
type RetentionConfig struct {
	MaxIdle  time.Duration
	Interval time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		GRPCPort:    getEnv("GRPC_PORT", "9090"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		DBPath:      getEnv("DB_PATH", "./data/codeando.db"),
		LogLevel:    parseLevel(getEnv("LOG_LEVEL", "info")),
		Content: ContentConfig{
			Dir:   getEnv("CONTENT_DIR", ""),
			Watch: getEnvBool("CONTENT_WATCH", false),
		},
		Evaluation: EvaluationConfig{
			Debounce:       getEnvDuration("EVAL_DEBOUNCE", 500*time.Millisecond),
			RegexTimeout:   getEnvDuration("REGEX_TIMEOUT", 50*time.Millisecond),
			MaxBufferBytes: int64(getEnvInt("MAX_BUFFER_BYTES", 256<<10)),
		},
		Retention: RetentionConfig{
			MaxIdle:  getEnvDuration("PROGRESS_RETENTION", 180*24*time.Hour),
			Interval: getEnvDuration("RETENTION_INTERVAL", time.Hour),
		},
		TeacherPINHash: getEnv("TEACHER_PIN_HASH", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	var errs error
	if c.Port == "" {
		errs = multierr.Append(errs, fmt.Errorf("PORT cannot be empty"))
	}
	if c.DBPath == "" {
		errs = multierr.Append(errs, fmt.Errorf("DB_PATH cannot be empty"))
	}
	if c.Content.Watch && c.Content.Dir == "" {
		errs = multierr.Append(errs, fmt.Errorf("CONTENT_WATCH requires CONTENT_DIR"))
	}
	if c.Evaluation.Debounce < 0 {
		errs = multierr.Append(errs, fmt.Errorf("EVAL_DEBOUNCE must be >= 0"))
	}
	if c.Evaluation.RegexTimeout <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("REGEX_TIMEOUT must be > 0"))
	}
	if c.Evaluation.MaxBufferBytes <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("MAX_BUFFER_BYTES must be > 0"))
	}
	if c.Retention.MaxIdle <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("PROGRESS_RETENTION must be > 0"))
	}
	if c.Retention.Interval <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("RETENTION_INTERVAL must be > 0"))
	}
	if c.TeacherPINHash != "" {
		if _, err := bcrypt.Cost([]byte(c.TeacherPINHash)); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("TEACHER_PIN_HASH is not a bcrypt hash: %w", err))
		}
	}
	return errs
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return level
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

// getEnvDuration accepts Go durations ("500ms") and plain seconds ("30").
// A "d" suffix counts days.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if days, found := strings.CutSuffix(value, "d"); found {
		n, err := strconv.Atoi(days)
		if err != nil {
			return fallback
		}
		return time.Duration(n) * 24 * time.Hour
	}
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
