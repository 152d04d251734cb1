package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration.
type Config struct {
	Env      string
	HTTPAddr string
	BaseURL  string

	DBDSN     string
	JWTSecret string

	LogLevel string

	LoginRateLimitRPM int
	SessionDays       int

	InviteTTLDays int

	MailProviderURL string
	MailAPIKey      string
	MailFrom        string
	MailTimeoutMS   int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Env = strings.TrimSpace(os.Getenv("OB_ENV"))
	if cfg.Env == "" {
		return nil, fmt.Errorf("OB_ENV is required")
	}
	if cfg.Env != "dev" && cfg.Env != "prod" {
		return nil, fmt.Errorf("OB_ENV must be one of: dev, prod (got: %s)", cfg.Env)
	}

	cfg.HTTPAddr = getEnvOrDefault("OB_HTTP_ADDR", ":8080")

	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("OB_BASE_URL")), "/")
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("OB_BASE_URL is required")
	}

	cfg.DBDSN = strings.TrimSpace(os.Getenv("OB_DB_DSN"))
	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("OB_DB_DSN is required")
	}

	cfg.JWTSecret = os.Getenv("OB_JWT_SECRET")
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("OB_JWT_SECRET is required")
	}
	if cfg.Env == "prod" && len(cfg.JWTSecret) < 32 {
		return nil, fmt.Errorf("OB_JWT_SECRET must be at least 32 characters (currently %d)", len(cfg.JWTSecret))
	}

	cfg.LogLevel = getEnvOrDefault("OB_LOG_LEVEL", "info")
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("OB_LOG_LEVEL must be one of: debug, info, warn, error (got: %s)", cfg.LogLevel)
	}

	var err error
	cfg.LoginRateLimitRPM, err = getEnvIntOrDefault("OB_LOGIN_RATE_LIMIT_RPM", 10)
	if err != nil {
		return nil, err
	}

	cfg.SessionDays, err = getEnvIntOrDefault("OB_SESSION_DAYS", 7)
	if err != nil {
		return nil, err
	}
	if cfg.SessionDays <= 0 {
		return nil, fmt.Errorf("OB_SESSION_DAYS must be positive (got: %d)", cfg.SessionDays)
	}

	cfg.InviteTTLDays, err = getEnvIntOrDefault("OB_INVITE_TTL_DAYS", 7)
	if err != nil {
		return nil, err
	}
	if cfg.InviteTTLDays <= 0 {
		return nil, fmt.Errorf("OB_INVITE_TTL_DAYS must be positive (got: %d)", cfg.InviteTTLDays)
	}

	cfg.MailProviderURL = strings.TrimSpace(os.Getenv("OB_MAIL_PROVIDER_URL"))
	cfg.MailAPIKey = os.Getenv("OB_MAIL_API_KEY")
	cfg.MailFrom = getEnvOrDefault("OB_MAIL_FROM", "no-reply@orgbase.local")

	cfg.MailTimeoutMS, err = getEnvIntOrDefault("OB_MAIL_TIMEOUT_MS", 2000)
	if err != nil {
		return nil, err
	}
	if cfg.MailTimeoutMS <= 0 || cfg.MailTimeoutMS > 30000 {
		return nil, fmt.Errorf("OB_MAIL_TIMEOUT_MS must be between 1 and 30000 (got: %d)", cfg.MailTimeoutMS)
	}

	return cfg, nil
}

// IsDev returns true if running in development mode.
func (c *Config) IsDev() bool {
	return c.Env == "dev"
}

// MailConfigured returns true if a transactional email provider is set up.
func (c *Config) MailConfigured() bool {
	return c.MailProviderURL != ""
}

// RedactedValues returns a map of config values with secrets redacted.
func (c *Config) RedactedValues() map[string]string {
	mailKey := "[UNSET]"
	if c.MailAPIKey != "" {
		mailKey = "[REDACTED]"
	}
	return map[string]string{
		"OB_ENV":                  c.Env,
		"OB_HTTP_ADDR":            c.HTTPAddr,
		"OB_BASE_URL":             c.BaseURL,
		"OB_DB_DSN":               redactDSN(c.DBDSN),
		"OB_JWT_SECRET":           "[REDACTED]",
		"OB_LOG_LEVEL":            c.LogLevel,
		"OB_LOGIN_RATE_LIMIT_RPM": fmt.Sprintf("%d", c.LoginRateLimitRPM),
		"OB_SESSION_DAYS":         fmt.Sprintf("%d", c.SessionDays),
		"OB_INVITE_TTL_DAYS":      fmt.Sprintf("%d", c.InviteTTLDays),
		"OB_MAIL_PROVIDER_URL":    c.MailProviderURL,
		"OB_MAIL_API_KEY":         mailKey,
		"OB_MAIL_FROM":            c.MailFrom,
		"OB_MAIL_TIMEOUT_MS":      fmt.Sprintf("%d", c.MailTimeoutMS),
	}
}

func redactDSN(dsn string) string {
	if start := strings.Index(dsn, "://"); start != -1 {
		if end := strings.Index(dsn[start+3:], "@"); end != -1 {
			return dsn[:start+3] + "[REDACTED]" + dsn[start+3+end:]
		}
	}
	return dsn
}

func getEnvOrDefault(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvIntOrDefault(key string, defaultValue int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer (got: %q)", key, value)
	}
	return parsed, nil
}
