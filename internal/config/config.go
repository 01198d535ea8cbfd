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
	LogLevel      string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Chat platform session
	TenantID          string
	BridgeURL         string
	CredentialDir     string
	MediaSpoolDir     string
	DefaultRegion     string
	ConflictCooldown  time.Duration
	StreamErrorDelay  time.Duration
	GenericCloseDelay time.Duration
	AuthFailureDelay  time.Duration

	// Generative fallback
	GeminiAPIKey     string
	GeminiModels     []string
	HistoryDepth     int
	CompletionTokens int
	Temperature      float64

	// Reminder sweep
	ReminderInterval time.Duration
	ReminderLeadMin  time.Duration
	ReminderLeadMax  time.Duration

	// Notifications
	NotificationRulesPath string

	AdminJWTSecret     string
	CORSAllowedOrigins []string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		TenantID:          getEnv("TENANT_ID", "default"),
		BridgeURL:         getEnv("BRIDGE_URL", "ws://127.0.0.1:3001"),
		CredentialDir:     getEnv("CREDENTIAL_DIR", "auth_state"),
		MediaSpoolDir:     getEnv("MEDIA_SPOOL_DIR", "uploads"),
		DefaultRegion:     getEnv("DEFAULT_PHONE_REGION", "JO"),
		ConflictCooldown:  getEnvAsDuration("SESSION_CONFLICT_COOLDOWN", 15*time.Second),
		StreamErrorDelay:  getEnvAsDuration("SESSION_STREAM_ERROR_DELAY", time.Second),
		GenericCloseDelay: getEnvAsDuration("SESSION_GENERIC_CLOSE_DELAY", 3*time.Second),
		AuthFailureDelay:  getEnvAsDuration("SESSION_AUTH_FAILURE_DELAY", 2*time.Second),

		GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),
		GeminiModels:     getEnvAsList("GEMINI_MODELS", "gemini-2.0-flash,gemini-flash-latest,gemini-pro-latest,gemini-1.5-flash"),
		HistoryDepth:     getEnvAsInt("CONVERSATION_HISTORY_DEPTH", 6),
		CompletionTokens: getEnvAsInt("COMPLETION_MAX_TOKENS", 4096),
		Temperature:      getEnvAsFloat("COMPLETION_TEMPERATURE", 0.7),

		ReminderInterval: getEnvAsDuration("REMINDER_INTERVAL", time.Minute),
		ReminderLeadMin:  getEnvAsDuration("REMINDER_LEAD_MIN", 55*time.Minute),
		ReminderLeadMax:  getEnvAsDuration("REMINDER_LEAD_MAX", 65*time.Minute),

		NotificationRulesPath: getEnv("NOTIFICATION_RULES_PATH", ""),

		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", ""),
	}
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

// getEnvAsList splits a comma-separated environment variable, trimming blanks.
func getEnvAsList(key, defaultValue string) []string {
	raw := getEnv(key, defaultValue)
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
