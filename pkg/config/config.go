// Package config loads the engine configuration from an optional YAML
// file overlaid with environment variables. A .env file in the working
// directory is honored for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "30s" or "5m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// LogConfig controls the operational logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the full engine configuration.
type Config struct {
	// BaseDomain is the apex domain project subdomains hang off,
	// e.g. "mockbird.dev".
	BaseDomain string `yaml:"base_domain"`

	// IngressAddr is the listen address for mock traffic.
	IngressAddr string `yaml:"ingress_addr"`

	// AdminAddr is the listen address for the admin/read API.
	AdminAddr string `yaml:"admin_addr"`

	// DatabaseDSN is the PostgreSQL connection string. Empty selects
	// the in-memory store (local development and tests).
	DatabaseDSN string `yaml:"database_dsn"`

	// RedisAddr enables the Redis event bus for multi-replica fan-out.
	// Empty selects the in-process hub.
	RedisAddr string `yaml:"redis_addr"`

	// CacheTTL bounds rule snapshot staleness.
	CacheTTL Duration `yaml:"cache_ttl"`

	// CaptureWriteTimeout bounds the synchronous capture write.
	CaptureWriteTimeout Duration `yaml:"capture_write_timeout"`

	// CaptureRetryQueueSize bounds the async capture retry queue.
	CaptureRetryQueueSize int `yaml:"capture_retry_queue_size"`

	// MaxBodyBytes caps how much of an inbound body is captured.
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	Log LogConfig `yaml:"log"`
}

// Default returns the configuration used when nothing is specified.
func Default() *Config {
	return &Config{
		BaseDomain:            "localhost",
		IngressAddr:           ":8080",
		AdminAddr:             ":8081",
		CacheTTL:              Duration(30 * time.Second),
		CaptureWriteTimeout:   Duration(3 * time.Second),
		CaptureRetryQueueSize: 1024,
		MaxBodyBytes:          1 << 20,
		Log:                   LogConfig{Level: "info", Format: "text"},
	}
}

// Load builds the configuration from defaults, an optional YAML file,
// and environment variables, in increasing precedence.
func Load(path string) (*Config, error) {
	// Missing .env files are fine; environments set real variables.
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.BaseDomain, "MOCKBIRD_BASE_DOMAIN")
	setString(&c.IngressAddr, "MOCKBIRD_INGRESS_ADDR")
	setString(&c.AdminAddr, "MOCKBIRD_ADMIN_ADDR")
	setString(&c.DatabaseDSN, "MOCKBIRD_DATABASE_DSN")
	setString(&c.RedisAddr, "MOCKBIRD_REDIS_ADDR")
	setString(&c.Log.Level, "MOCKBIRD_LOG_LEVEL")
	setString(&c.Log.Format, "MOCKBIRD_LOG_FORMAT")

	if err := setDuration(&c.CacheTTL, "MOCKBIRD_CACHE_TTL"); err != nil {
		return err
	}
	if err := setDuration(&c.CaptureWriteTimeout, "MOCKBIRD_CAPTURE_WRITE_TIMEOUT"); err != nil {
		return err
	}
	if err := setInt(&c.CaptureRetryQueueSize, "MOCKBIRD_CAPTURE_RETRY_QUEUE_SIZE"); err != nil {
		return err
	}
	return nil
}

func (c *Config) validate() error {
	if c.BaseDomain == "" {
		return fmt.Errorf("base_domain must not be empty")
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("cache_ttl must be positive")
	}
	if c.CaptureWriteTimeout <= 0 {
		return fmt.Errorf("capture_write_timeout must be positive")
	}
	if c.CaptureRetryQueueSize <= 0 {
		return fmt.Errorf("capture_retry_queue_size must be positive")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setDuration(dst *Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = Duration(d)
	return nil
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}
