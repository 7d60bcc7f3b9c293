package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port               string
	Env                string
	LogLevel           string
	DashboardURL       string
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int

	// Wizard sessions
	SessionBackend   string
	SessionTTL       time.Duration
	InFlightLease    time.Duration
	NoticeTTL        time.Duration
	ReminderTimezone string
	RedisAddr        string
	RedisPassword    string
	RedisTLS         bool

	// Simulated account service
	AccountCreateLatency time.Duration
	ProfileUpdateLatency time.Duration
	EffectFailureRate    float64

	// Analytics
	AnalyticsBuffer    int
	DatabaseURL        string
	AnalyticsQueueURL  string
	OutboxPollInterval time.Duration
	OutboxBatchSize    int

	// AWS
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Reminder email
	EmailProvider  string
	SendGridAPIKey string
	EmailFromAddr  string
	EmailFromName  string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		DashboardURL:       getEnv("DASHBOARD_URL", "/journal"),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
		RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 20),

		SessionBackend:   strings.ToLower(strings.TrimSpace(getEnv("SESSION_BACKEND", "memory"))),
		SessionTTL:       getEnvAsDuration("SESSION_TTL", 30*time.Minute),
		InFlightLease:    getEnvAsDuration("INFLIGHT_LEASE", 2*time.Minute),
		NoticeTTL:        getEnvAsDuration("NOTICE_TTL", 5*time.Second),
		ReminderTimezone: getEnv("REMINDER_TIMEZONE", "UTC"),
		RedisAddr:        getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisTLS:         getEnvAsBool("REDIS_TLS", false),

		AccountCreateLatency: getEnvAsDuration("ACCOUNT_CREATE_LATENCY", 1500*time.Millisecond),
		ProfileUpdateLatency: getEnvAsDuration("PROFILE_UPDATE_LATENCY", 1000*time.Millisecond),
		EffectFailureRate:    getEnvAsFloat("EFFECT_FAILURE_RATE", 0),

		AnalyticsBuffer:    getEnvAsInt("ANALYTICS_BUFFER", 256),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		AnalyticsQueueURL:  getEnv("ANALYTICS_QUEUE_URL", ""),
		OutboxPollInterval: getEnvAsDuration("OUTBOX_POLL_INTERVAL", 2*time.Second),
		OutboxBatchSize:    getEnvAsInt("OUTBOX_BATCH_SIZE", 25),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		EmailProvider:  strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "stub"))),
		SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),
		EmailFromAddr:  getEnv("EMAIL_FROM_ADDRESS", ""),
		EmailFromName:  getEnv("EMAIL_FROM_NAME", "Weekly Career Journal"),
	}
}

// UsesRedis reports whether wizard sessions live in Redis.
func (c *Config) UsesRedis() bool {
	return c.SessionBackend == "redis"
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
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

// getEnvAsList splits a comma separated variable, dropping blanks.
func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
