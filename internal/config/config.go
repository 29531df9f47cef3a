// Package config loads the larder settings from an optional TOML file and
// LARDER_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/dukerupert/larder/internal/retry"
)

type Config struct {
	Addr             string
	DBPath           string
	LogLevel         string
	LogFormat        string
	StartOnline      bool
	ExportDir        string
	OperationTimeout time.Duration
	WSOrigins        []string
	Retry            RetryConfig
}

type RetryConfig struct {
	MaxAttempts       int
	InitialDelay      time.Duration
	BackoffMultiplier float64
	MaxDelay          time.Duration
}

const (
	defaultAddr      = "127.0.0.1:8484"
	defaultDBPath    = "larder.db"
	defaultExportDir = "exports"
	defaultTimeout   = 10 * time.Second
)

// Default returns the configuration used when nothing is set.
func Default() Config {
	p := retry.Default()
	return Config{
		Addr:             defaultAddr,
		DBPath:           defaultDBPath,
		LogLevel:         "info",
		LogFormat:        "text",
		StartOnline:      true,
		ExportDir:        defaultExportDir,
		OperationTimeout: defaultTimeout,
		Retry: RetryConfig{
			MaxAttempts:       p.MaxAttempts,
			InitialDelay:      p.InitialDelay,
			BackoffMultiplier: p.BackoffMultiplier,
			MaxDelay:          p.MaxDelay,
		},
	}
}

type rawRetry struct {
	MaxAttempts       *int     `toml:"max_attempts"`
	InitialDelay      string   `toml:"initial_delay"`
	BackoffMultiplier *float64 `toml:"backoff_multiplier"`
	MaxDelay          string   `toml:"max_delay"`
}

type rawConfig struct {
	Addr             string   `toml:"addr"`
	DBPath           string   `toml:"db_path"`
	LogLevel         string   `toml:"log_level"`
	LogFormat        string   `toml:"log_format"`
	StartOnline      *bool    `toml:"start_online"`
	ExportDir        string   `toml:"export_dir"`
	OperationTimeout string   `toml:"operation_timeout"`
	WSOrigins        []string `toml:"ws_origins"`
	Retry            rawRetry `toml:"retry"`
}

// Load reads path when it exists, then applies environment overrides. An
// empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(expandPath(path))
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config: %w", err)
		default:
			var raw rawConfig
			if err := toml.Unmarshal(data, &raw); err != nil {
				return Config{}, fmt.Errorf("parse config: %w", err)
			}
			if err := cfg.merge(raw); err != nil {
				return Config{}, err
			}
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) merge(raw rawConfig) error {
	setString(&c.Addr, raw.Addr)
	setString(&c.DBPath, raw.DBPath)
	setString(&c.LogLevel, raw.LogLevel)
	setString(&c.LogFormat, raw.LogFormat)
	setString(&c.ExportDir, raw.ExportDir)
	if raw.StartOnline != nil {
		c.StartOnline = *raw.StartOnline
	}
	if len(raw.WSOrigins) > 0 {
		c.WSOrigins = raw.WSOrigins
	}
	if raw.Retry.MaxAttempts != nil {
		c.Retry.MaxAttempts = *raw.Retry.MaxAttempts
	}
	if raw.Retry.BackoffMultiplier != nil {
		c.Retry.BackoffMultiplier = *raw.Retry.BackoffMultiplier
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"operation_timeout", raw.OperationTimeout, &c.OperationTimeout},
		{"retry.initial_delay", raw.Retry.InitialDelay, &c.Retry.InitialDelay},
		{"retry.max_delay", raw.Retry.MaxDelay, &c.Retry.MaxDelay},
	}
	for _, d := range durations {
		if err := setDuration(d.dst, d.key, d.raw); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) string {
		v, _ := lookup("LARDER_" + key)
		return strings.TrimSpace(v)
	}

	setString(&c.Addr, get("ADDR"))
	setString(&c.DBPath, get("DB_PATH"))
	setString(&c.LogLevel, get("LOG_LEVEL"))
	setString(&c.LogFormat, get("LOG_FORMAT"))
	setString(&c.ExportDir, get("EXPORT_DIR"))
	if v := get("WS_ORIGINS"); v != "" {
		c.WSOrigins = splitList(v)
	}
	if v := get("START_ONLINE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parse LARDER_START_ONLINE: %w", err)
		}
		c.StartOnline = b
	}
	if v := get("RETRY_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse LARDER_RETRY_MAX_ATTEMPTS: %w", err)
		}
		c.Retry.MaxAttempts = n
	}
	if v := get("RETRY_BACKOFF_MULTIPLIER"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("parse LARDER_RETRY_BACKOFF_MULTIPLIER: %w", err)
		}
		c.Retry.BackoffMultiplier = f
	}
	if err := setDuration(&c.OperationTimeout, "LARDER_OPERATION_TIMEOUT", get("OPERATION_TIMEOUT")); err != nil {
		return err
	}
	if err := setDuration(&c.Retry.InitialDelay, "LARDER_RETRY_INITIAL_DELAY", get("RETRY_INITIAL_DELAY")); err != nil {
		return err
	}
	return setDuration(&c.Retry.MaxDelay, "LARDER_RETRY_MAX_DELAY", get("RETRY_MAX_DELAY"))
}

// Validate rejects settings the engine cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr is empty"))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("db_path is empty"))
	}
	if c.OperationTimeout < 0 {
		errs = append(errs, errors.New("operation_timeout must not be negative"))
	}
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("retry.max_attempts must be at least 1"))
	}
	if c.Retry.BackoffMultiplier < 1 {
		errs = append(errs, errors.New("retry.backoff_multiplier must be at least 1"))
	}
	if c.Retry.InitialDelay < 0 || c.Retry.MaxDelay < 0 {
		errs = append(errs, errors.New("retry delays must not be negative"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// RetryPolicy converts the retry settings, keeping the default retry
// classification of errors.
func (c Config) RetryPolicy() retry.Policy {
	p := retry.Default()
	p.MaxAttempts = c.Retry.MaxAttempts
	p.InitialDelay = c.Retry.InitialDelay
	p.BackoffMultiplier = c.Retry.BackoffMultiplier
	p.MaxDelay = c.Retry.MaxDelay
	return p
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key, v string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("parse %s: %w", key, err)
	}
	*dst = d
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func expandPath(path string) string {
	path = strings.TrimSpace(path)
	if rest, ok := strings.CutPrefix(path, "~"); ok {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, rest)
		}
	}
	return path
}
