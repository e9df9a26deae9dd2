package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
}

type DBConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime string
}

type AuthConfig struct {
	AccessSecret string
}

type ContractsConfig struct {
	RefSegment      string
	DefaultCurrency string
	SigningBaseURL  string
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
}

type FlutterwaveConfig struct {
	BaseURL     string
	SecretKey   string
	RedirectURL string
	WebhookHash string
}

type MomoConfig struct {
	MTNAPIKey          string
	MTNSubscriptionKey string
	MTNAPIUser         string
	MTNAPISecret       string
	DefaultCurrency    string
}

type PaymentsConfig struct {
	PlatformName string
	HTTPTimeout  time.Duration
	Stripe       StripeConfig
	Flutterwave  FlutterwaveConfig
	Momo         MomoConfig
}

type MailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	From         string
}

type RateLimitConfig struct {
	RPS   float64
	Burst int
}

type Config struct {
	Environment string
	HTTP        HTTPConfig
	DB          DBConfig
	Auth        AuthConfig
	Contracts   ContractsConfig
	Payments    PaymentsConfig
	Mail        MailConfig
	RateLimit   RateLimitConfig
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./deploy")
	v.AddConfigPath("./internal/config")
	v.AutomaticEnv()

	_ = v.ReadInConfig()

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Environment: v.GetString("APP_ENV"),
		HTTP: HTTPConfig{
			Host:           v.GetString("HTTP_HOST"),
			Port:           v.GetInt("HTTP_PORT"),
			AllowedOrigins: parseList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		DB: DBConfig{
			DSN:             v.GetString("DB_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetString("DB_CONN_MAX_LIFETIME"),
		},
		Auth: AuthConfig{
			AccessSecret: v.GetString("JWT_ACCESS_SECRET"),
		},
		Contracts: ContractsConfig{
			RefSegment:      v.GetString("CONTRACTS_REF_SEGMENT"),
			DefaultCurrency: v.GetString("CONTRACTS_DEFAULT_CURRENCY"),
			SigningBaseURL:  v.GetString("CONTRACTS_SIGNING_BASE_URL"),
		},
		Payments: PaymentsConfig{
			PlatformName: v.GetString("PAYMENTS_PLATFORM_NAME"),
			HTTPTimeout:  v.GetDuration("PAYMENTS_HTTP_TIMEOUT"),
			Stripe: StripeConfig{
				SecretKey:     v.GetString("STRIPE_SECRET_KEY"),
				WebhookSecret: v.GetString("STRIPE_WEBHOOK_SECRET"),
			},
			Flutterwave: FlutterwaveConfig{
				BaseURL:     v.GetString("FLUTTERWAVE_BASE_URL"),
				SecretKey:   v.GetString("FLUTTERWAVE_SECRET_KEY"),
				RedirectURL: v.GetString("FLUTTERWAVE_REDIRECT_URL"),
				WebhookHash: v.GetString("FLUTTERWAVE_WEBHOOK_HASH"),
			},
			Momo: MomoConfig{
				MTNAPIKey:          v.GetString("MOMO_MTN_API_KEY"),
				MTNSubscriptionKey: v.GetString("MOMO_MTN_SUBSCRIPTION_KEY"),
				MTNAPIUser:         v.GetString("MOMO_MTN_API_USER"),
				MTNAPISecret:       v.GetString("MOMO_MTN_API_SECRET"),
				DefaultCurrency:    v.GetString("MOMO_DEFAULT_CURRENCY"),
			},
		},
		Mail: MailConfig{
			SMTPHost:     v.GetString("SMTP_HOST"),
			SMTPPort:     v.GetInt("SMTP_PORT"),
			SMTPUsername: v.GetString("SMTP_USERNAME"),
			SMTPPassword: v.GetString("SMTP_PASSWORD"),
			From:         v.GetString("MAIL_FROM"),
		},
		RateLimit: RateLimitConfig{
			RPS:   v.GetFloat64("SIGN_RATE_LIMIT_RPS"),
			Burst: v.GetInt("SIGN_RATE_LIMIT_BURST"),
		},
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.HTTP.Host == "" {
		cfg.HTTP.Host = "0.0.0.0"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 7090
	}
	if cfg.Contracts.RefSegment == "" {
		cfg.Contracts.RefSegment = "IoT"
	}
	if cfg.Contracts.DefaultCurrency == "" {
		cfg.Contracts.DefaultCurrency = "USD"
	}
	if cfg.Payments.PlatformName == "" {
		cfg.Payments.PlatformName = "Egreed Technology"
	}
	if cfg.Payments.HTTPTimeout <= 0 {
		cfg.Payments.HTTPTimeout = 15 * time.Second
	}
	if cfg.Payments.Flutterwave.BaseURL == "" {
		cfg.Payments.Flutterwave.BaseURL = "https://api.flutterwave.com/v3"
	}
	if cfg.Payments.Momo.DefaultCurrency == "" {
		cfg.Payments.Momo.DefaultCurrency = "RWF"
	}
	if cfg.Mail.SMTPPort == 0 {
		cfg.Mail.SMTPPort = 587
	}
	if cfg.RateLimit.RPS <= 0 {
		cfg.RateLimit.RPS = 1
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = 5
	}
}

func validate(cfg *Config) error {
	if cfg.DB.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	if cfg.Auth.AccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if len(cfg.Contracts.RefSegment) > 16 || strings.ContainsAny(cfg.Contracts.RefSegment, "- ") {
		return fmt.Errorf("CONTRACTS_REF_SEGMENT must be a short token without dashes or spaces")
	}
	return nil
}

func parseList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	items := strings.Split(raw, ",")
	result := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item != "" {
			result = append(result, item)
		}
	}
	return result
}
