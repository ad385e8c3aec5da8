package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	DatabaseURL   string `env:"DATABASE_URL,required" validate:"required"`
	DBAutoMigrate bool   `env:"DB_AUTO_MIGRATE" envDefault:"false"`

	GatewayProvider string        `env:"GATEWAY_PROVIDER" envDefault:"fedapay" validate:"required,oneof=fedapay stripe"`
	GatewayTimeout  time.Duration `env:"GATEWAY_TIMEOUT" envDefault:"15s" validate:"gt=0"`
	DefaultCurrency string        `env:"DEFAULT_CURRENCY" envDefault:"XOF" validate:"required,len=3,alpha"`

	FedaPaySecretKey     string `env:"FEDAPAY_SECRET_KEY" validate:"required_if=GatewayProvider fedapay"`
	FedaPayBaseURL       string `env:"FEDAPAY_BASE_URL" envDefault:"https://sandbox-api.fedapay.com" validate:"omitempty,url"`
	FedaPayWebhookSecret string `env:"FEDAPAY_WEBHOOK_SECRET"`
	FedaPayPhoneCountry  string `env:"FEDAPAY_PHONE_COUNTRY" envDefault:"bj" validate:"omitempty,len=2,alpha"`

	StripeSecretKey     string `env:"STRIPE_SECRET_KEY" validate:"required_if=GatewayProvider stripe"`
	StripeWebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`
	StripeAccountID     string `env:"STRIPE_ACCOUNT_ID"`

	// DefaultReturnURL is used when a create-payment request carries no return URL.
	DefaultReturnURL string `env:"DEFAULT_RETURN_URL" validate:"omitempty,url"`
	WebhookBaseURL   string `env:"WEBHOOK_BASE_URL" validate:"omitempty,url"`

	ShippingSource      string `env:"SHIPPING_SOURCE" envDefault:"db" validate:"omitempty,oneof=db file"`
	ShippingCatalogPath string `env:"SHIPPING_CATALOG_PATH" validate:"required_if=ShippingSource file"`

	CacheProvider         string `env:"CACHE_PROVIDER" envDefault:"memory" validate:"omitempty,oneof=memory redis"`
	RedisConnectionString string `env:"REDIS_CONNECTION_STRING" envDefault:"redis://localhost:6379/0" validate:"required_if=CacheProvider redis"`

	EmailProvider string `env:"EMAIL_PROVIDER" validate:"omitempty,oneof=resend postmark"`
	EmailAPIKey   string `env:"EMAIL_API_KEY" validate:"required_with=EmailProvider"`
	EmailFrom     string `env:"EMAIL_FROM" validate:"omitempty,email"`

	SentryDSN         string  `env:"SENTRY_DSN" validate:"omitempty,url"`
	SentryEnvironment string  `env:"SENTRY_ENVIRONMENT" envDefault:"development"`
	SentrySampleRate  float64 `env:"SENTRY_TRACES_SAMPLE_RATE" envDefault:"0.2" validate:"gte=0,lte=1"`

	// AllowedOrigins lists storefront origins that may call the API from a browser.
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`

	LogLevel  slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	LogFormat string     `env:"LOG_FORMAT" envDefault:"text" validate:"omitempty,oneof=text json"`
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

func (c *Config) validate() error {
	if err := configValidator.Struct(c); err != nil {
		return err
	}

	if strings.TrimSpace(c.EmailProvider) != "" && strings.TrimSpace(c.EmailFrom) == "" {
		return fmt.Errorf("EMAIL_FROM is required when EMAIL_PROVIDER is set")
	}

	if c.GatewayProvider == "stripe" && strings.TrimSpace(c.DefaultReturnURL) == "" {
		return fmt.Errorf("DEFAULT_RETURN_URL is required when GATEWAY_PROVIDER is stripe")
	}

	for name, raw := range map[string]string{
		"DEFAULT_RETURN_URL": c.DefaultReturnURL,
		"WEBHOOK_BASE_URL":   c.WebhookBaseURL,
	} {
		if err := validatePublicURL(name, raw); err != nil {
			return err
		}
	}

	for _, origin := range c.AllowedOrigins {
		if err := validatePublicURL("ALLOWED_ORIGINS", origin); err != nil {
			return err
		}
	}

	return nil
}

// WebhookURL returns the public callback URL for the active gateway, or "" when
// no webhook base URL is configured.
func (c *Config) WebhookURL() string {
	base := strings.TrimRight(strings.TrimSpace(c.WebhookBaseURL), "/")
	if base == "" {
		return ""
	}
	return base + "/webhooks/" + c.GatewayProvider
}

func validatePublicURL(name, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Hostname() == "" {
		return fmt.Errorf("%s must be a valid absolute URL", name)
	}
	if !isLocalHost(parsed.Hostname()) && !strings.EqualFold(parsed.Scheme, "https") {
		return fmt.Errorf("%s must use https outside local development", name)
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
