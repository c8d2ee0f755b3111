package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string

	// Legacy per-patient appointment store (Postgres)
	DatabaseURL string

	// Global appointment store (DynamoDB)
	AWSRegion               string
	AWSAccessKeyID          string
	AWSSecretAccessKey      string
	AWSEndpointOverride     string
	GlobalAppointmentsTable string

	// Change feed
	RedisAddr      string
	RedisPassword  string
	RedisTLS       bool
	RefreshDebounce time.Duration

	// Patient portal auth
	PortalJWTSecret string

	// Provider-facing notifications
	NotifyWebhookURL   string
	NotifyWebhookToken string
	NotifyEmailTo      string

	// Email notifications
	EmailProvider     string
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	SESFromEmail      string

	CORSAllowedOrigins []string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		AWSRegion:               getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride:     getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		GlobalAppointmentsTable: getEnv("GLOBAL_APPOINTMENTS_TABLE", "appointments"),

		RedisAddr:       getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisTLS:        getEnvAsBool("REDIS_TLS", false),
		RefreshDebounce: getEnvAsDuration("REFRESH_DEBOUNCE", 75*time.Millisecond),

		PortalJWTSecret: getEnv("PORTAL_JWT_SECRET", ""),

		NotifyWebhookURL:   getEnv("NOTIFY_WEBHOOK_URL", ""),
		NotifyWebhookToken: getEnv("NOTIFY_WEBHOOK_TOKEN", ""),
		NotifyEmailTo:      getEnv("NOTIFY_EMAIL_TO", ""),

		EmailProvider:     strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "none"))),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Clearwell Health"),
		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", nil),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
