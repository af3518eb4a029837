package config

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Cookie   CookieConfig
	Email    EmailConfig
}

type ServerConfig struct {
	Host        string
	Port        int
	BaseURL     string // public URL used in notification email links
	Environment string // "development", "production", "test"
	Debug       bool
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// AuthConfig describes the hosted auth service this backend delegates
// registration, login and token refresh to.
type AuthConfig struct {
	URL          string // base URL of the auth service, e.g. https://xyz.supabase.co
	AnonKey      string // public API key sent with user-scoped calls
	ServiceKey   string // privileged API key for admin lookups
	JWTSecret    string // shared secret for the hs256 verifier
	Issuer       string // expected token issuer; defaults to URL + "/auth/v1"
	VerifierMode string // "hs256" (legacy shared secret) or "oidc" (provider JWKS)
}

// CookieConfig controls the refresh-token cookie attributes.
type CookieConfig struct {
	HTTPOnly bool
	Secure   bool
	SameSite string // "lax", "strict", "none"
	Domain   string
}

type EmailConfig struct {
	Provider     string // "resend", "console"
	FromAddress  string
	FromName     string
	ResendAPIKey string
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// SameSiteMode maps the configured string onto the http.SameSite constant,
// defaulting to Lax for unrecognized values.
func (c CookieConfig) SameSiteMode() http.SameSite {
	switch strings.ToLower(c.SameSite) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:        getEnv("SERVER_HOST", "0.0.0.0"),
			Port:        getEnvInt("SERVER_PORT", 8080),
			BaseURL:     getEnv("APP_BASE_URL", "http://localhost:8080"),
			Environment: getEnv("APP_ENV", "development"),
			Debug:       getEnvBool("DEBUG", false),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "confab"),
			Password: getEnv("DB_PASSWORD", "confab"),
			DBName:   getEnv("DB_NAME", "confab"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			URL:          getEnv("AUTH_URL", "http://localhost:9999"),
			AnonKey:      getEnv("AUTH_ANON_KEY", ""),
			ServiceKey:   getEnv("AUTH_SERVICE_KEY", ""),
			JWTSecret:    getEnv("AUTH_JWT_SECRET", ""),
			Issuer:       getEnv("AUTH_ISSUER", ""),
			VerifierMode: getEnvNonEmpty("AUTH_VERIFIER", "hs256"),
		},
		Cookie: CookieConfig{
			HTTPOnly: getEnvBool("COOKIE_HTTPONLY", true),
			Secure:   getEnvBool("COOKIE_SECURE", false),
			SameSite: getEnvNonEmpty("COOKIE_SAMESITE", "lax"),
			Domain:   getEnv("COOKIE_DOMAIN", ""),
		},
		Email: EmailConfig{
			Provider:     getEnv("EMAIL_PROVIDER", "console"),
			FromAddress:  getEnv("EMAIL_FROM_ADDRESS", "noreply@confab.chat"),
			FromName:     getEnv("EMAIL_FROM_NAME", "Confab"),
			ResendAPIKey: getEnv("RESEND_API_KEY", ""),
		},
	}

	if cfg.Auth.Issuer == "" {
		cfg.Auth.Issuer = strings.TrimRight(cfg.Auth.URL, "/") + "/auth/v1"
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvNonEmpty(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		if strings.TrimSpace(value) != "" {
			return value
		}
		return defaultValue
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
