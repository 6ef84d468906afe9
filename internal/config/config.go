// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/snapfresh/snapfresh/internal/refresh"
)

// Config captures all service configuration knobs loaded via Viper.
// Per-domain settings live under the domains map and are validated by
// the registry at lookup time.
type Config struct {
	Server    ServerConfig                    `mapstructure:"server"`
	Logging   LoggingConfig                   `mapstructure:"logging"`
	Probe     ProbeConfig                     `mapstructure:"probe"`
	Retry     RetryConfig                     `mapstructure:"retry"`
	Storage   StorageConfig                   `mapstructure:"storage"`
	Publisher PublisherConfig                 `mapstructure:"publisher"`
	Shutdown  ShutdownConfig                  `mapstructure:"shutdown"`
	Domains   map[string]refresh.DomainConfig `mapstructure:"domains"`
}

// ServerConfig controls the status API server used in continuous mode.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// ProbeConfig governs the shared verification client.
type ProbeConfig struct {
	UserAgent           string  `mapstructure:"user_agent"`
	DefaultRPS          float64 `mapstructure:"default_rps"`
	DefaultBurst        int     `mapstructure:"default_burst"`
	MaxIdleConnsPerHost int     `mapstructure:"max_idle_conns_per_host"`
}

// RetryConfig configures the backoff policy shared by all domains.
type RetryConfig struct {
	BaseDelayMs         int     `mapstructure:"base_delay_ms"`
	MaxDelayMs          int     `mapstructure:"max_delay_ms"`
	Multiplier          float64 `mapstructure:"multiplier"`
	RateLimitMinDelayMs int     `mapstructure:"rate_limit_min_delay_ms"`
}

// StorageConfig selects the catalog persistence provider.
type StorageConfig struct {
	Provider  string `mapstructure:"provider"`
	GCSBucket string `mapstructure:"gcs_bucket"`
}

// PublisherConfig selects the cycle-report fan-out provider.
type PublisherConfig struct {
	Provider  string `mapstructure:"provider"`
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// ShutdownConfig bounds the cooperative shutdown grace period.
type ShutdownConfig struct {
	GraceSeconds int `mapstructure:"grace_seconds"`
}

// Grace returns the configured shutdown grace period.
func (c ShutdownConfig) Grace() time.Duration {
	return time.Duration(c.GraceSeconds) * time.Second
}

// BaseDelay returns the retry base delay.
func (c RetryConfig) BaseDelay() time.Duration {
	return time.Duration(c.BaseDelayMs) * time.Millisecond
}

// MaxDelay returns the retry delay cap.
func (c RetryConfig) MaxDelay() time.Duration {
	return time.Duration(c.MaxDelayMs) * time.Millisecond
}

// RateLimitMinDelay returns the raised delay floor for 429 responses.
func (c RetryConfig) RateLimitMinDelay() time.Duration {
	return time.Duration(c.RateLimitMinDelayMs) * time.Millisecond
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SNAPFRESH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
	v.SetDefault("probe.user_agent", "snapfresh/0.1")
	v.SetDefault("probe.default_rps", 0)
	v.SetDefault("probe.default_burst", 1)
	v.SetDefault("probe.max_idle_conns_per_host", 8)
	v.SetDefault("retry.base_delay_ms", 500)
	v.SetDefault("retry.max_delay_ms", 30000)
	v.SetDefault("retry.multiplier", 2)
	v.SetDefault("retry.rate_limit_min_delay_ms", 2000)
	v.SetDefault("storage.provider", "file")
	v.SetDefault("publisher.provider", "noop")
	v.SetDefault("shutdown.grace_seconds", 10)
}

// Validate enforces required top-level values.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Shutdown.GraceSeconds <= 0 {
		return fmt.Errorf("shutdown.grace_seconds must be > 0")
	}
	switch c.Storage.Provider {
	case "file", "memory":
	case "gcs":
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set when storage.provider is gcs")
		}
	default:
		return fmt.Errorf("unknown storage provider %q", c.Storage.Provider)
	}
	switch c.Publisher.Provider {
	case "noop", "memory":
	case "pubsub":
		if c.Publisher.ProjectID == "" || c.Publisher.Topic == "" {
			return fmt.Errorf("publisher.project_id and publisher.topic must be set when publisher.provider is pubsub")
		}
	default:
		return fmt.Errorf("unknown publisher provider %q", c.Publisher.Provider)
	}
	return nil
}
