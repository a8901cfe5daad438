// Package config loads the runtime configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Timezone string `envconfig:"TZ" default:"Europe/Moscow"`

	SpreadsheetKey  string        `envconfig:"SPREADSHEET_KEY"`
	CredentialsFile string        `envconfig:"GSHEET_CREDS" default:"credentials.json"`
	StoreRetries    int           `envconfig:"GS_RETRY" default:"3"`
	StoreBackoff    time.Duration `envconfig:"GS_BACKOFF" default:"500ms"`

	TelegramToken     string `envconfig:"TELEGRAM_TOKEN"`
	AdminPasswordHash string `envconfig:"ADMIN_PASSWORD_HASH"`

	SweepInterval          time.Duration `envconfig:"CLEANUP_INTERVAL" default:"60s"`
	UnavailableBeforeHours int           `envconfig:"UNAVAILABLE_BEFORE_HOURS" default:"24"`
	DisplayMinHours        int           `envconfig:"DISPLAY_MIN_HOURS" default:"28"`
	CatchMinHours          int           `envconfig:"CATCH_MIN_HOURS" default:"36"`
	CatchWindowMinutes     int           `envconfig:"CATCH_WINDOW_MIN" default:"30"`
	ReminderLeadHours      int           `envconfig:"REMINDER_LEAD_HOURS" default:"2"`

	KafkaBrokers string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic   string `envconfig:"KAFKA_TOPIC" default:"slotbot.bookings"`
	RedisAddr    string `envconfig:"REDIS_ADDR"`

	HealthAddr string `envconfig:"HEALTH_ADDR" default:":8081"`
}

func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if cfg.StoreRetries < 1 {
		return Config{}, fmt.Errorf("GS_RETRY must be at least 1, got %d", cfg.StoreRetries)
	}
	if cfg.SweepInterval <= 0 {
		return Config{}, fmt.Errorf("CLEANUP_INTERVAL must be positive, got %s", cfg.SweepInterval)
	}
	return cfg, nil
}

func (c Config) UnavailableBefore() time.Duration {
	return time.Duration(c.UnavailableBeforeHours) * time.Hour
}

func (c Config) DisplayMin() time.Duration {
	return time.Duration(c.DisplayMinHours) * time.Hour
}

func (c Config) CatchMin() time.Duration {
	return time.Duration(c.CatchMinHours) * time.Hour
}

func (c Config) CatchWindow() time.Duration {
	return time.Duration(c.CatchWindowMinutes) * time.Minute
}

func (c Config) ReminderLead() time.Duration {
	return time.Duration(c.ReminderLeadHours) * time.Hour
}
