package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/plusme")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 587, cfg.SMTPPort)
	assert.Equal(t, 30, cfg.VoteRateCapacity)
	assert.Equal(t, 10, cfg.VoteRatePerMinute)
	assert.False(t, cfg.ReportMailsActive)
	assert.Empty(t, cfg.ReportMails)
}

func TestLoad_MissingDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "redis://localhost:6379")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoad_MissingRedisURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/plusme")
	t.Setenv("REDIS_URL", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REDIS_URL")
}

func TestLoad_ReportMailsParsing(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("REPORT_MAILS", "mod1@wepublic.me, mod2@wepublic.me,,")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"mod1@wepublic.me", "mod2@wepublic.me"}, cfg.ReportMails)
}

func TestLoad_MailActiveRequiresHostAndRecipients(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("REPORT_MAILS_ACTIVE", "true")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SMTP_HOST")

	t.Setenv("SMTP_HOST", "smtp.wepublic.me")
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REPORT_MAILS")

	t.Setenv("REPORT_MAILS", "mods@wepublic.me")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.ReportMailsActive)
}

func TestLoad_InvalidRateLimit(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("VOTE_RATE_CAPACITY", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "VOTE_RATE_CAPACITY")
}

func TestLoad_InvalidBool(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("REPORT_MAILS_ACTIVE", "maybe")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REPORT_MAILS_ACTIVE")
}
