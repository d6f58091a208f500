// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// GRPCAddr is the address the gRPC server listens on (e.g. :8080).
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	// PageTokenSecret signs list pagination tokens. Required.
	PageTokenSecret string `mapstructure:"PAGE_TOKEN_SECRET"`
	// PageTokenTTL is the pagination token lifetime (e.g. "1h").
	PageTokenTTL string `mapstructure:"PAGE_TOKEN_TTL"`

	// DirectoryAPIKey authenticates against the device registry.
	DirectoryAPIKey string `mapstructure:"DIRECTORY_API_KEY"`
	// DirectoryBaseURL is the device registry base URL.
	DirectoryBaseURL string `mapstructure:"DIRECTORY_BASE_URL"`

	// DefaultOU is the org unit enrolled devices live in.
	DefaultOU string `mapstructure:"DEFAULT_OU"`
	// GuestOU is the org unit devices move to when guest mode is enabled.
	GuestOU string `mapstructure:"GUEST_OU"`
	// UnenrolledOU is the org unit devices move to on unenrollment.
	UnenrolledOU string `mapstructure:"UNENROLLED_OU"`

	// Defaults used when the settings store has no stored value.
	// AllowGuestMode enables guest mode fleet-wide.
	AllowGuestMode bool `mapstructure:"ALLOW_GUEST_MODE"`
	// LoanDurationDays is the initial loan length in days.
	LoanDurationDays int `mapstructure:"LOAN_DURATION_DAYS"`
	// MaximumLoanDurationDays caps how far a loan can be extended.
	MaximumLoanDurationDays int `mapstructure:"MAXIMUM_LOAN_DURATION_DAYS"`

	// EventsKafkaBrokers is a comma-separated list of Kafka broker addresses.
	// Lifecycle events are disabled when empty.
	EventsKafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// EventsKafkaTopic is the Kafka topic for lifecycle events.
	EventsKafkaTopic string `mapstructure:"EVENTS_KAFKA_TOPIC"`

	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("GRPC_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("PAGE_TOKEN_SECRET", "")
	v.SetDefault("PAGE_TOKEN_TTL", "1h")
	v.SetDefault("DIRECTORY_API_KEY", "")
	v.SetDefault("DIRECTORY_BASE_URL", "")
	v.SetDefault("DEFAULT_OU", "/managed")
	v.SetDefault("GUEST_OU", "/managed/guest")
	v.SetDefault("UNENROLLED_OU", "/")
	v.SetDefault("ALLOW_GUEST_MODE", true)
	v.SetDefault("LOAN_DURATION_DAYS", 3)
	v.SetDefault("MAXIMUM_LOAN_DURATION_DAYS", 14)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("EVENTS_KAFKA_TOPIC", "device-lifecycle")
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.GRPCAddr == "" {
		return nil, errors.New("config: GRPC_ADDR must be set")
	}
	if cfg.PageTokenSecret == "" && cfg.Env == "production" {
		return nil, errors.New("config: PAGE_TOKEN_SECRET must be set when APP_ENV=production")
	}
	if cfg.LoanDurationDays <= 0 {
		return nil, errors.New("config: LOAN_DURATION_DAYS must be positive")
	}
	if cfg.MaximumLoanDurationDays < cfg.LoanDurationDays {
		return nil, errors.New("config: MAXIMUM_LOAN_DURATION_DAYS must be >= LOAN_DURATION_DAYS")
	}

	return &cfg, nil
}

// TokenTTL parses PageTokenTTL as a time.Duration. Returns 1h if unset or invalid.
func (c *Config) TokenTTL() time.Duration {
	d, err := time.ParseDuration(c.PageTokenTTL)
	if err != nil || d <= 0 {
		return time.Hour
	}
	return d
}

// EventsKafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if lifecycle events are enabled (non-empty list) and to create the producer.
func (c *Config) EventsKafkaBrokersList() []string {
	if c == nil || c.EventsKafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.EventsKafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
