package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	DatabaseURL string

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string

	HTTPListenAddr string

	LogLevel    string
	Environment string

	RemindersEnabled          bool
	ReminderIntervalMinutes   int
	ReminderMaxRetries        int
	ReminderRetryDelayMinutes int
	NightBeforeTime           string // "HH:mm", local wall clock
	DayOfTime                 string // "HH:mm", local wall clock
	Timezone                  string // IANA zone name

	SMSSendRatePerSecond float64
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// Attempt to load .env file. Errors are ignored if the file doesn't exist.
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	cfg.TwilioAccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	if cfg.TwilioAccountSID == "" {
		return nil, fmt.Errorf("TWILIO_ACCOUNT_SID is not set")
	}
	cfg.TwilioAuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	if cfg.TwilioAuthToken == "" {
		return nil, fmt.Errorf("TWILIO_AUTH_TOKEN is not set")
	}
	cfg.TwilioFromNumber = os.Getenv("TWILIO_FROM_NUMBER")
	if cfg.TwilioFromNumber == "" {
		return nil, fmt.Errorf("TWILIO_FROM_NUMBER is not set")
	}

	cfg.HTTPListenAddr = os.Getenv("HTTP_LISTEN_ADDR")
	if cfg.HTTPListenAddr == "" {
		cfg.HTTPListenAddr = ":8080"
	}

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info" // Default log level
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development" // Default environment
	}

	cfg.RemindersEnabled, err = boolEnv("REMINDERS_ENABLED", true)
	if err != nil {
		return nil, err
	}

	cfg.ReminderIntervalMinutes, err = intEnv("REMINDER_INTERVAL_MINUTES", 5)
	if err != nil {
		return nil, err
	}
	if cfg.ReminderIntervalMinutes < 1 {
		return nil, fmt.Errorf("REMINDER_INTERVAL_MINUTES must be at least 1")
	}

	cfg.ReminderMaxRetries, err = intEnv("REMINDER_MAX_RETRIES", 2)
	if err != nil {
		return nil, err
	}
	if cfg.ReminderMaxRetries < 0 {
		return nil, fmt.Errorf("REMINDER_MAX_RETRIES must not be negative")
	}

	cfg.ReminderRetryDelayMinutes, err = intEnv("REMINDER_RETRY_DELAY_MINUTES", 1)
	if err != nil {
		return nil, err
	}
	if cfg.ReminderRetryDelayMinutes < 0 {
		return nil, fmt.Errorf("REMINDER_RETRY_DELAY_MINUTES must not be negative")
	}

	cfg.NightBeforeTime = os.Getenv("NIGHT_BEFORE_TIME")
	if cfg.NightBeforeTime == "" {
		cfg.NightBeforeTime = "19:00" // Default: 7 PM the evening before
	}
	if _, err := time.Parse("15:04", cfg.NightBeforeTime); err != nil {
		return nil, fmt.Errorf("invalid NIGHT_BEFORE_TIME %q: %w", cfg.NightBeforeTime, err)
	}

	cfg.DayOfTime = os.Getenv("DAY_OF_TIME")
	if cfg.DayOfTime == "" {
		cfg.DayOfTime = "07:00" // Default: 7 AM on the work date
	}
	if _, err := time.Parse("15:04", cfg.DayOfTime); err != nil {
		return nil, fmt.Errorf("invalid DAY_OF_TIME %q: %w", cfg.DayOfTime, err)
	}

	cfg.Timezone = os.Getenv("TIMEZONE")
	if cfg.Timezone == "" {
		cfg.Timezone = "America/Denver"
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", cfg.Timezone, err)
	}

	rateStr := os.Getenv("SMS_SEND_RATE_PER_SECOND")
	if rateStr == "" {
		cfg.SMSSendRatePerSecond = 10
	} else {
		cfg.SMSSendRatePerSecond, err = strconv.ParseFloat(rateStr, 64)
		if err != nil || cfg.SMSSendRatePerSecond <= 0 {
			return nil, fmt.Errorf("invalid SMS_SEND_RATE_PER_SECOND %q", rateStr)
		}
	}

	return cfg, nil
}

func intEnv(name string, def int) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return n, nil
}

func boolEnv(name string, def bool) (bool, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", name, err)
	}
	return b, nil
}
