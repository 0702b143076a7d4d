package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	ServerAddr string

	// Remote backend. Both DatabaseURL and RedisAddr must be set for
	// remote mode; otherwise the engine runs against the local store.
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Notification side channel. Optional; when empty, notifications
	// are discarded.
	NatsURL string

	// Local-mode state directory.
	StateDir string

	// Bound on every backend write issued by the engine.
	WriteTimeout time.Duration

	// Twilio credentials for the notify worker.
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFrom       string

	// Gemini API key for AI-generated listing drafts. Optional.
	GeminiAPIKey string
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		ServerAddr:       GetEnv("SERVER_ADDR", ":8080"),
		DatabaseURL:      GetEnv("DATABASE_URL", ""),
		RedisAddr:        GetEnv("REDIS_ADDR", ""),
		RedisPassword:    GetEnv("REDIS_PASSWORD", ""),
		RedisDB:          GetEnvInt("REDIS_DB", 0),
		NatsURL:          GetEnv("NATS_URL", ""),
		StateDir:         GetEnv("STATE_DIR", "./state"),
		WriteTimeout:     GetEnvDuration("WRITE_TIMEOUT", 10*time.Second),
		TwilioAccountSID: GetEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:  GetEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioFrom:       GetEnv("TWILIO_FROM", ""),
		GeminiAPIKey:     GetEnv("GEMINI_API_KEY", ""),
	}
}

// RemoteConfigured reports whether the remote backend can be used.
// Absent configuration is not an error; it selects local mode.
func (c *Config) RemoteConfigured() bool {
	return c.DatabaseURL != "" && c.RedisAddr != ""
}

// GetEnv returns the value of the environment variable or a default.
func GetEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// GetEnvInt returns the integer value of the environment variable or a default.
func GetEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// GetEnvDuration returns the duration value of the environment variable or a default.
func GetEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
