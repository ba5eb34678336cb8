// Package config reads process configuration from the environment.
// A .env file in the working directory is loaded first when present;
// variables already set in the environment win.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // TIMEZONE must resolve on hosts without zoneinfo

	"github.com/joho/godotenv"
)

// Config is the configuration shared by the server, the worker and condoctl.
type Config struct {
	DatabaseURL string
	Port        string
	LogLevel    string
	Env         string
	JWTSecret   string

	// Location is the civil timezone charges and deadlines are dated in.
	Location *time.Location

	SweepBatchSize int
	SweepAt        ClockTime

	SMS     SMSConfig
	Payment PaymentConfig

	OutboxPollInterval time.Duration
}

// SMSConfig addresses the SMS provider.
type SMSConfig struct {
	URL    string
	APIKey string
	Sender string
}

// Enabled reports whether notifications can be sent.
func (c SMSConfig) Enabled() bool { return c.URL != "" }

// PaymentConfig addresses the payment gateway.
type PaymentConfig struct {
	URL         string
	MerchantID  string
	CallbackURL string
}

// ClockTime is a wall clock time of day.
type ClockTime struct {
	Hour   int
	Minute int
}

func (c ClockTime) String() string { return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute) }

// Next returns the first occurrence of c strictly after now, in now's location.
func (c ClockTime) Next(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), c.Hour, c.Minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// ParseClock parses "HH:MM".
func ParseClock(s string) (ClockTime, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return ClockTime{}, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return ClockTime{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// IsDevelopment reports whether APP_ENV selects development mode.
func (c *Config) IsDevelopment() bool { return c.Env == "development" }

// Load reads the configuration. DATABASE_URL is required.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		Port:        getEnv("APP_PORT", "8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Env:         getEnv("APP_ENV", "development"),
		JWTSecret:   getEnv("JWT_SECRET", "change-me-in-production"),

		SweepBatchSize: getEnvInt("SWEEP_BATCH_SIZE", 500),

		SMS: SMSConfig{
			URL:    os.Getenv("SMS_API_URL"),
			APIKey: os.Getenv("SMS_API_KEY"),
			Sender: os.Getenv("SMS_SENDER"),
		},
		Payment: PaymentConfig{
			URL:         os.Getenv("PAYMENT_API_URL"),
			MerchantID:  os.Getenv("PAYMENT_MERCHANT_ID"),
			CallbackURL: os.Getenv("PAYMENT_CALLBACK_URL"),
		},

		OutboxPollInterval: getEnvDuration("OUTBOX_POLL_INTERVAL", 10*time.Second),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}

	loc, err := time.LoadLocation(getEnv("TIMEZONE", "Asia/Tehran"))
	if err != nil {
		return nil, fmt.Errorf("TIMEZONE: %w", err)
	}
	cfg.Location = loc

	if cfg.SweepAt, err = ParseClock(getEnv("SWEEP_AT", "01:00")); err != nil {
		return nil, fmt.Errorf("SWEEP_AT: %w", err)
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if result, err := strconv.Atoi(value); err == nil && result > 0 {
			return result
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}
