// Package config defines the global configuration structure for the bot.
// Configuration is loaded once at process startup and is immutable thereafter.
// It follows 12-Factor App principles by strictly separating code from
// configuration: values come from the OS environment, optionally seeded from a
// .env file. Any missing required value or invalid format fails the process
// immediately on startup (fail fast).
package config

import (
	"time"

	"subgate/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type used
// throughout configuration to prevent accidental logging of sensitive values.
type SecretString = types.SecretString

// Config is the top-level configuration struct. It is populated once during
// process initialization and never modified. Sub-components receive only the
// specific config subsets they require.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"development" validate:"required,oneof=development production"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	Telegram TelegramConfig
	Provider ProviderConfig
	Server   ServerConfig
	Database DatabaseConfig
	Sweep    SweepConfig
}

// TelegramConfig holds bot API credentials.
type TelegramConfig struct {
	Token SecretString `envconfig:"TELEGRAM_BOT_TOKEN" validate:"required"`
}

// ProviderConfig holds YooKassa payment integration credentials and tuning.
type ProviderConfig struct {
	ShopID    string       `envconfig:"YOOKASSA_SHOP_ID" validate:"required"`
	SecretKey SecretString `envconfig:"YOOKASSA_SECRET_KEY" validate:"required"`
	BaseURL   string       `envconfig:"YOOKASSA_BASE_URL" default:"https://api.yookassa.ru" validate:"url"`

	// Timeout bounds every outbound provider call; failures surface as
	// upstream_provider_error rather than hanging the caller.
	Timeout time.Duration `envconfig:"YOOKASSA_TIMEOUT" default:"10s"`

	// ReturnURL is where the provider redirects the user after checkout.
	ReturnURL string `envconfig:"PAYMENT_RETURN_URL" default:"https://t.me" validate:"url"`
}

// ServerConfig holds the webhook HTTP server settings.
type ServerConfig struct {
	Host string `envconfig:"WEBHOOK_HOST" default:"0.0.0.0"`
	Port string `envconfig:"WEBHOOK_PORT" default:"5000"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required"`

	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// SweepConfig holds scheduling parameters for the background sweeper.
type SweepConfig struct {
	Interval time.Duration `envconfig:"SWEEP_INTERVAL" default:"10m"`
}
