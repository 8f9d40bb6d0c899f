package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/marcelsud/webhook-dispatcher/dispatch"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

/* Config reads .env (toml) from the working directory, overridden by environment variables
 * Every key has a default so the binaries start with environment variables alone
 */

const (
	BackoffExponential = "exponential"
	BackoffPolynomial  = "polynomial"
	BackoffConstant    = "constant"
)

type Config struct {
	Port                     string `mapstructure:"PORT"`
	RedisAddr                string `mapstructure:"REDIS_ADDR"`
	RedisPassword            string `mapstructure:"REDIS_PASSWORD"`
	RedisDB                  int    `mapstructure:"REDIS_DB"`
	HooksFile                string `mapstructure:"HOOKS_FILE"`
	WebhookLane              string `mapstructure:"WEBHOOK_LANE"`
	WebhookConcurrency       int    `mapstructure:"WEBHOOK_CONCURRENCY"`
	MaxAttempts              int    `mapstructure:"MAX_ATTEMPTS"`
	BackoffStrategy          string `mapstructure:"BACKOFF_STRATEGY"`
	BackoffBaseSeconds       int    `mapstructure:"BACKOFF_BASE_SECONDS"`
	BackoffMaxSeconds        int    `mapstructure:"BACKOFF_MAX_SECONDS"`
	DeliveryTimeoutSeconds   int    `mapstructure:"DELIVERY_TIMEOUT_SECONDS"`
	VisibilityTimeoutSeconds int    `mapstructure:"VISIBILITY_TIMEOUT_SECONDS"`
	LogLevel                 string `mapstructure:"LOG_LEVEL"`
}

var defaults = map[string]any{
	"PORT":                       "8080",
	"REDIS_ADDR":                 "localhost:6379",
	"REDIS_PASSWORD":             "",
	"REDIS_DB":                   0,
	"HOOKS_FILE":                 "hooks.yaml",
	"WEBHOOK_LANE":               "webhooks",
	"WEBHOOK_CONCURRENCY":        10,
	"MAX_ATTEMPTS":               dispatch.DefaultMaxAttempts,
	"BACKOFF_STRATEGY":           BackoffExponential,
	"BACKOFF_BASE_SECONDS":       15,
	"BACKOFF_MAX_SECONDS":        3600,
	"DELIVERY_TIMEOUT_SECONDS":   10,
	"VISIBILITY_TIMEOUT_SECONDS": 60,
	"LOG_LEVEL":                  "info",
}

// GetConfig loads .env from the working directory; a missing file is not an error
func GetConfig() (*Config, error) {
	return Load(".env")
}

// Load reads the toml file at path (optional) and the environment
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("parsing config data: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &config, nil
}

// Validate checks values that would make the dispatcher misbehave
func (c *Config) Validate() error {
	if c.WebhookLane == "" {
		return fmt.Errorf("WEBHOOK_LANE cannot be empty")
	}
	if c.WebhookConcurrency < 1 {
		return fmt.Errorf("WEBHOOK_CONCURRENCY must be at least 1 (got %d)", c.WebhookConcurrency)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("MAX_ATTEMPTS must be at least 1 (got %d)", c.MaxAttempts)
	}
	switch c.BackoffStrategy {
	case BackoffExponential, BackoffPolynomial, BackoffConstant:
	default:
		return fmt.Errorf("unknown BACKOFF_STRATEGY %q", c.BackoffStrategy)
	}
	if c.BackoffBaseSeconds < 1 || c.BackoffMaxSeconds < c.BackoffBaseSeconds {
		return fmt.Errorf("backoff bounds must satisfy 1 <= BACKOFF_BASE_SECONDS <= BACKOFF_MAX_SECONDS (got %d and %d)",
			c.BackoffBaseSeconds, c.BackoffMaxSeconds)
	}
	if c.DeliveryTimeoutSeconds < 1 {
		return fmt.Errorf("DELIVERY_TIMEOUT_SECONDS must be at least 1")
	}
	// A message still being delivered must not be reclaimed by another worker
	if c.VisibilityTimeoutSeconds <= c.DeliveryTimeoutSeconds {
		return fmt.Errorf("VISIBILITY_TIMEOUT_SECONDS (%d) must exceed DELIVERY_TIMEOUT_SECONDS (%d)",
			c.VisibilityTimeoutSeconds, c.DeliveryTimeoutSeconds)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	return nil
}

// RetryPolicy builds the dispatch retry policy
func (c *Config) RetryPolicy() dispatch.RetryPolicy {
	base := time.Duration(c.BackoffBaseSeconds) * time.Second
	max := time.Duration(c.BackoffMaxSeconds) * time.Second
	var backoff dispatch.Backoff
	switch c.BackoffStrategy {
	case BackoffPolynomial:
		backoff = dispatch.PolynomialBackoff(max)
	case BackoffConstant:
		backoff = dispatch.ConstantBackoff(base)
	default:
		backoff = dispatch.ExponentialBackoff(base, max)
	}
	return dispatch.RetryPolicy{MaxAttempts: c.MaxAttempts, Backoff: backoff}
}

// DeliveryTimeout bounds one delivery attempt
func (c *Config) DeliveryTimeout() time.Duration {
	return time.Duration(c.DeliveryTimeoutSeconds) * time.Second
}

// VisibilityTimeout is how long a fetched message stays invisible before another worker reclaims it
func (c *Config) VisibilityTimeout() time.Duration {
	return time.Duration(c.VisibilityTimeoutSeconds) * time.Second
}

// Level returns the parsed log level
func (c *Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}
