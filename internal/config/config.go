// Package config loads and validates the service configuration from the
// environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	AppEnv      string
	Port        string
	LogLevel    string
	LogFormat   string
	DatabaseURL string
	RedisURL    string

	// BaseURL is used to build moderation deep links in report notifications.
	BaseURL string

	// Moderation report sinks.
	ReportMails       []string
	ReportMailsActive bool
	MailFrom          string
	SMTPHost          string
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string
	SlackWebhookURL   string

	// Vote rate limiting (token bucket).
	VoteRateCapacity  int
	VoteRatePerMinute int
}

func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:          getEnv("APP_ENV", "development"),
		Port:            getEnv("PORT", "8080"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "text"),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		RedisURL:        getEnv("REDIS_URL", ""),
		BaseURL:         getEnv("BASE_URL", "http://localhost:8080"),
		MailFrom:        getEnv("MAIL_FROM", "admin@wepublic.me"),
		SMTPHost:        getEnv("SMTP_HOST", ""),
		SMTPUsername:    getEnv("SMTP_USERNAME", ""),
		SMTPPassword:    getEnv("SMTP_PASSWORD", ""),
		SlackWebhookURL: getEnv("SLACK_WEBHOOK_URL", ""),
	}

	cfg.ReportMails = splitList(getEnv("REPORT_MAILS", ""))

	var err error
	if cfg.ReportMailsActive, err = getBoolEnv("REPORT_MAILS_ACTIVE", false); err != nil {
		return nil, err
	}
	if cfg.SMTPPort, err = getIntEnv("SMTP_PORT", 587); err != nil {
		return nil, err
	}
	if cfg.VoteRateCapacity, err = getIntEnv("VOTE_RATE_CAPACITY", 30); err != nil {
		return nil, err
	}
	if cfg.VoteRatePerMinute, err = getIntEnv("VOTE_RATE_PER_MINUTE", 10); err != nil {
		return nil, err
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	// Mail dispatch needs a host and at least one recipient when enabled.
	if cfg.ReportMailsActive {
		if cfg.SMTPHost == "" {
			return nil, fmt.Errorf("SMTP_HOST is required when REPORT_MAILS_ACTIVE is set")
		}
		if len(cfg.ReportMails) == 0 {
			return nil, fmt.Errorf("REPORT_MAILS is required when REPORT_MAILS_ACTIVE is set")
		}
	}

	if cfg.VoteRateCapacity <= 0 {
		return nil, fmt.Errorf("VOTE_RATE_CAPACITY must be positive, got %d", cfg.VoteRateCapacity)
	}
	if cfg.VoteRatePerMinute <= 0 {
		return nil, fmt.Errorf("VOTE_RATE_PER_MINUTE must be positive, got %d", cfg.VoteRatePerMinute)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean: %w", key, err)
	}
	return parsed, nil
}

func getIntEnv(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return parsed, nil
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
