package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/shift_reminders?sslmode=disable")
	t.Setenv("TWILIO_ACCOUNT_SID", "AC0123456789abcdef")
	t.Setenv("TWILIO_AUTH_TOKEN", "secret")
	t.Setenv("TWILIO_FROM_NUMBER", "+13035550000")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "development", cfg.Environment)
	assert.True(t, cfg.RemindersEnabled)
	assert.Equal(t, 5, cfg.ReminderIntervalMinutes)
	assert.Equal(t, 2, cfg.ReminderMaxRetries)
	assert.Equal(t, 1, cfg.ReminderRetryDelayMinutes)
	assert.Equal(t, "19:00", cfg.NightBeforeTime)
	assert.Equal(t, "07:00", cfg.DayOfTime)
	assert.Equal(t, "America/Denver", cfg.Timezone)
	assert.Equal(t, float64(10), cfg.SMSSendRatePerSecond)
}

func TestLoadOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("HTTP_LISTEN_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("REMINDERS_ENABLED", "false")
	t.Setenv("REMINDER_INTERVAL_MINUTES", "15")
	t.Setenv("NIGHT_BEFORE_TIME", "18:30")
	t.Setenv("TIMEZONE", "America/Chicago")
	t.Setenv("SMS_SEND_RATE_PER_SECOND", "2.5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPListenAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.False(t, cfg.RemindersEnabled)
	assert.Equal(t, 15, cfg.ReminderIntervalMinutes)
	assert.Equal(t, "18:30", cfg.NightBeforeTime)
	assert.Equal(t, "America/Chicago", cfg.Timezone)
	assert.Equal(t, 2.5, cfg.SMSSendRatePerSecond)
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := []struct {
		name  string
		key   string
		value string
	}{
		{"missing database url", "DATABASE_URL", ""},
		{"non-numeric interval", "REMINDER_INTERVAL_MINUTES", "often"},
		{"zero interval", "REMINDER_INTERVAL_MINUTES", "0"},
		{"negative retries", "REMINDER_MAX_RETRIES", "-1"},
		{"malformed clock", "NIGHT_BEFORE_TIME", "7pm"},
		{"unknown zone", "TIMEZONE", "Mars/Olympus"},
		{"zero send rate", "SMS_SEND_RATE_PER_SECOND", "0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tc.key, tc.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
