package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"
	_ "time/tzdata" // order numbers roll over in ORDER_TIMEZONE on hosts without zoneinfo

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required" validate:"required"`

	JWTSecret    string        `env:"JWT_SECRET,required" validate:"required,min=32"`
	JWTExpiresIn time.Duration `env:"JWT_EXPIRES_IN" envDefault:"168h" validate:"gt=0"`

	FrontendURL string `env:"FRONTEND_URL" validate:"omitempty,url"`

	CacheProvider         string `env:"CACHE_PROVIDER" envDefault:"memory" validate:"omitempty,oneof=memory redis"`
	RealtimeProvider      string `env:"REALTIME_PROVIDER" envDefault:"memory" validate:"omitempty,oneof=memory redis"`
	RedisConnectionString string `env:"REDIS_CONNECTION_STRING" envDefault:"redis://localhost:6379/0" validate:"required_if=CacheProvider redis,required_if=RealtimeProvider redis"`

	OrderTimezone     string        `env:"ORDER_TIMEZONE" envDefault:"UTC" validate:"required"`
	EstimatedDelivery time.Duration `env:"ESTIMATED_DELIVERY" envDefault:"30m" validate:"gt=0"`
	CatalogSeedFile   string        `env:"CATALOG_SEED_FILE"`

	EmailProvider string `env:"EMAIL_PROVIDER" envDefault:"none" validate:"omitempty,oneof=none resend"`
	ResendAPIKey  string `env:"RESEND_API_KEY" validate:"required_if=EmailProvider resend"`
	EmailFrom     string `env:"EMAIL_FROM" validate:"required_if=EmailProvider resend"`

	SentryDSN              string  `env:"SENTRY_DSN" validate:"omitempty,url"`
	SentryEnvironment      string  `env:"SENTRY_ENVIRONMENT" envDefault:"development"`
	SentryTracesSampleRate float64 `env:"SENTRY_TRACES_SAMPLE_RATE" envDefault:"0.2" validate:"gte=0,lte=1"`

	LogLevel  slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	LogFormat string     `env:"LOG_FORMAT" envDefault:"text" validate:"omitempty,oneof=text json"`
	LogFile   string     `env:"LOG_FILE"`
	Port      string     `env:"PORT" envDefault:"8080"`
}

var configValidator = validator.New()

func Load() (*Config, error) {
	var cfg Config

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Location returns the time zone used to roll over daily order numbers.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(strings.TrimSpace(c.OrderTimezone))
	if err != nil {
		return nil, fmt.Errorf("ORDER_TIMEZONE is not a valid time zone: %w", err)
	}
	return loc, nil
}

func (c *Config) validate() error {
	if err := configValidator.Struct(c); err != nil {
		return err
	}

	if _, err := c.Location(); err != nil {
		return err
	}

	if c.CacheProvider == "redis" || c.RealtimeProvider == "redis" {
		parsed, err := url.Parse(c.RedisConnectionString)
		if err != nil || (parsed.Scheme != "redis" && parsed.Scheme != "rediss") {
			return fmt.Errorf("REDIS_CONNECTION_STRING must be a redis:// or rediss:// URL")
		}
	}

	if from := strings.TrimSpace(c.EmailFrom); from != "" && !strings.Contains(from, "@") {
		return fmt.Errorf("EMAIL_FROM must be an email address")
	}

	frontendURL := strings.TrimSpace(c.FrontendURL)
	if frontendURL != "" {
		parsed, err := url.Parse(frontendURL)
		if err != nil || parsed.Hostname() == "" {
			return fmt.Errorf("FRONTEND_URL must be a valid absolute URL")
		}
		if !isLocalHost(parsed.Hostname()) && !strings.EqualFold(parsed.Scheme, "https") {
			return fmt.Errorf("FRONTEND_URL must use https outside local development")
		}
	}

	return nil
}

func isLocalHost(host string) bool {
	switch strings.ToLower(strings.TrimSpace(host)) {
	case "localhost", "127.0.0.1", "::1":
		return true
	default:
		return false
	}
}
