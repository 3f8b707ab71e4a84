package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"carealert/internal/models"
	"carealert/internal/validation"
)

// Provider selection values
const (
	ProviderNone     = "none"
	ProviderSMTP     = "smtp"
	ProviderSendGrid = "sendgrid"
	ProviderHTTP     = "http"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Environment
	Env string // "development", "production", etc.

	// Server
	ServerAddr         string
	BaseURL            string
	CORSOrigins        string // Comma-separated allowed origins
	RateLimitPerMinute int    // 0 disables the limiter

	// Storage
	DatabaseURL string
	RedisURL    string // Optional; enables shared rate limiting and realtime publish

	// Logging
	LogLevel string

	// Bearer-token auth for the API (disabled when OIDCIssuer is empty)
	OIDCIssuer   string
	OIDCAudience string

	// Classification
	LexiconFile     string // Optional YAML file overriding the built-in lexicon
	ClassifyMaxText int    // Max bytes accepted by classify

	// Alerting
	AlertingEnabled bool
	AlertMinLevel   string // Minimum crisis level that records an alert and notifies

	// Contact resolution and dispatch
	ContactLookupTimeout time.Duration
	DispatchInterval     time.Duration // 0 disables the background dispatcher
	DispatchBatchSize    int
	DispatchSendTimeout  time.Duration

	// Metrics
	MetricsCacheTTL time.Duration

	// Email
	EmailProvider  string // smtp, sendgrid, none
	SMTPHost       string
	SMTPPort       int
	SMTPUsername   string
	SMTPPassword   string
	SMTPFrom       string
	SMTPFromName   string
	SMTPTLS        string // "none", "tls", "starttls"
	SendGridAPIKey string

	// SMS
	SMSProvider     string // http, none
	SMSAPIURL       string
	SMSAccountSID   string
	SMSAuthToken    string
	SMSFrom         string
	SMSTokenURL     string // Optional OAuth2 client-credentials token endpoint
	SMSClientID     string
	SMSClientSecret string

	// Site Branding
	SiteTitle string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Env:                getEnv("ENV", "development"),
		ServerAddr:         getEnv("SERVER_ADDR", ":3000"),
		BaseURL:            getEnv("BASE_URL", "http://localhost:3000"),
		CORSOrigins:        getEnv("CORS_ORIGINS", ""),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),

		DatabaseURL: getEnv("DATABASE_URL", "postgres://localhost:5432/carealert?sslmode=disable"),
		RedisURL:    getEnv("REDIS_URL", ""),

		LogLevel: getEnv("LOG_LEVEL", "info"),

		OIDCIssuer:   getEnv("OIDC_ISSUER", ""),
		OIDCAudience: getEnv("OIDC_AUDIENCE", ""),

		LexiconFile:     getEnv("LEXICON_FILE", ""),
		ClassifyMaxText: getEnvInt("CLASSIFY_MAX_TEXT", 10000),

		AlertingEnabled: getEnvBool("ALERTING_ENABLED", true),
		AlertMinLevel:   strings.ToLower(getEnv("ALERT_MIN_LEVEL", models.LevelHigh)),

		ContactLookupTimeout: getEnvDuration("CONTACT_LOOKUP_TIMEOUT", 5*time.Second),
		DispatchInterval:     getEnvDuration("DISPATCH_INTERVAL", 0),
		DispatchBatchSize:    getEnvInt("DISPATCH_BATCH_SIZE", 25),
		DispatchSendTimeout:  getEnvDuration("DISPATCH_SEND_TIMEOUT", 10*time.Second),

		MetricsCacheTTL: getEnvDuration("METRICS_CACHE_TTL", 30*time.Second),

		EmailProvider:  strings.ToLower(getEnv("EMAIL_PROVIDER", ProviderNone)),
		SMTPHost:       getEnv("SMTP_HOST", ""),
		SMTPPort:       getEnvInt("SMTP_PORT", 587),
		SMTPUsername:   getEnv("SMTP_USERNAME", ""),
		SMTPPassword:   getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:       getEnv("SMTP_FROM", ""),
		SMTPFromName:   getEnv("SMTP_FROM_NAME", "CareAlert"),
		SMTPTLS:        strings.ToLower(getEnv("SMTP_TLS", "starttls")),
		SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),

		SMSProvider:     strings.ToLower(getEnv("SMS_PROVIDER", ProviderNone)),
		SMSAPIURL:       getEnv("SMS_API_URL", ""),
		SMSAccountSID:   getEnv("SMS_ACCOUNT_SID", ""),
		SMSAuthToken:    getEnv("SMS_AUTH_TOKEN", ""),
		SMSFrom:         getEnv("SMS_FROM", ""),
		SMSTokenURL:     getEnv("SMS_TOKEN_URL", ""),
		SMSClientID:     getEnv("SMS_CLIENT_ID", ""),
		SMSClientSecret: getEnv("SMS_CLIENT_SECRET", ""),

		SiteTitle: getEnv("SITE_TITLE", "CareAlert"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s", c.LogLevel)
	}

	if !models.IsValidLevel(c.AlertMinLevel) {
		return fmt.Errorf("invalid ALERT_MIN_LEVEL: %s", c.AlertMinLevel)
	}

	switch c.EmailProvider {
	case ProviderNone, ProviderSMTP, ProviderSendGrid:
	default:
		return fmt.Errorf("invalid EMAIL_PROVIDER: %s", c.EmailProvider)
	}

	switch c.SMSProvider {
	case ProviderNone, ProviderHTTP:
	default:
		return fmt.Errorf("invalid SMS_PROVIDER: %s", c.SMSProvider)
	}

	switch c.SMTPTLS {
	case "none", "tls", "starttls":
	default:
		return fmt.Errorf("invalid SMTP_TLS: %s", c.SMTPTLS)
	}

	if c.DispatchBatchSize < 1 {
		return fmt.Errorf("DISPATCH_BATCH_SIZE must be at least 1")
	}
	if c.DispatchInterval != 0 && c.DispatchInterval < time.Second {
		return fmt.Errorf("DISPATCH_INTERVAL must be at least 1s")
	}
	if c.ContactLookupTimeout <= 0 || c.DispatchSendTimeout <= 0 {
		return fmt.Errorf("lookup and send timeouts must be positive")
	}
	if c.ClassifyMaxText < 1 {
		return fmt.Errorf("CLASSIFY_MAX_TEXT must be at least 1")
	}

	return nil
}

// ConfigurationError reports a provider that was selected but cannot be used.
type ConfigurationError struct {
	Component string
	Missing   []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s is not configured: missing %s", e.Component, strings.Join(e.Missing, ", "))
}

// EmailConfigError returns a *ConfigurationError if the selected email
// provider lacks credentials, or nil when it is usable or disabled.
func (c *Config) EmailConfigError() error {
	var missing []string
	switch c.EmailProvider {
	case ProviderSMTP:
		if c.SMTPHost == "" {
			missing = append(missing, "SMTP_HOST")
		}
		if c.SMTPFrom == "" {
			missing = append(missing, "SMTP_FROM")
		}
	case ProviderSendGrid:
		if c.SendGridAPIKey == "" {
			missing = append(missing, "SENDGRID_API_KEY")
		}
		if c.SMTPFrom == "" {
			missing = append(missing, "SMTP_FROM")
		}
	default:
		return nil
	}
	if len(missing) > 0 {
		return &ConfigurationError{Component: "email provider " + c.EmailProvider, Missing: missing}
	}
	return nil
}

// SMSConfigError returns a *ConfigurationError if the SMS gateway is
// selected but lacks credentials, or nil when it is usable or disabled.
func (c *Config) SMSConfigError() error {
	if c.SMSProvider != ProviderHTTP {
		return nil
	}

	var missing []string
	if valid, _ := validation.ValidateURL(c.SMSAPIURL); !valid {
		missing = append(missing, "SMS_API_URL")
	}
	if c.SMSFrom == "" {
		missing = append(missing, "SMS_FROM")
	}
	if c.UsesSMSOAuth() {
		if c.SMSClientID == "" || c.SMSClientSecret == "" {
			missing = append(missing, "SMS_CLIENT_ID/SMS_CLIENT_SECRET")
		}
	} else if c.SMSAccountSID == "" || c.SMSAuthToken == "" {
		missing = append(missing, "SMS_ACCOUNT_SID/SMS_AUTH_TOKEN")
	}

	if len(missing) > 0 {
		return &ConfigurationError{Component: "sms provider", Missing: missing}
	}
	return nil
}

// UsesSMSOAuth returns true if the SMS gateway authenticates with OAuth2
// client credentials instead of basic auth.
func (c *Config) UsesSMSOAuth() bool {
	return c.SMSTokenURL != ""
}

// IsDev returns true if the environment is set to development.
func (c *Config) IsDev() bool {
	return c.Env == "development" || c.Env == "dev"
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}
