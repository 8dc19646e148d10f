package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration loaded from environment variables.
// Every field has a sensible default; only DATABASE_URL is required.
type Config struct {
	// Server
	HTTPPort        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration

	// Database
	DatabaseURL    string
	DBMaxConns     int32
	DBMinConns     int32
	MigrationsPath string

	// Firebase. The service account itself is read from CredentialEnv on
	// every request, never here.
	CredentialEnv   string
	FCMBaseURL      string
	OAuthTokenURL   string
	APNSBundleID    string
	ProviderTimeout time.Duration

	// Access tokens
	TokenCacheMode        string
	TokenExchangeAttempts int
	TokenExchangeBackoff  time.Duration

	// Rate limiting: maximum FCM sends per second
	RateLimit int

	// Optional device-token suppression
	RedisURL       string
	SuppressionTTL time.Duration

	LogLevel string
}

// Load reads an optional .env file and then the process environment.
// Values already present in the environment win over the file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	cfg := &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		ReadTimeout:     getDuration("READ_TIMEOUT", 5*time.Second),
		WriteTimeout:    getDuration("WRITE_TIMEOUT", 30*time.Second),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		RequestTimeout:  getDuration("REQUEST_TIMEOUT", 25*time.Second),

		DatabaseURL:    dbURL,
		DBMaxConns:     int32(getInt("DB_MAX_CONNS", 10)),
		DBMinConns:     int32(getInt("DB_MIN_CONNS", 1)),
		MigrationsPath: getEnv("MIGRATIONS_PATH", "file://migrations"),

		CredentialEnv:   "FIREBASE_SERVICE_ACCOUNT",
		FCMBaseURL:      getEnv("FCM_BASE_URL", "https://fcm.googleapis.com"),
		OAuthTokenURL:   getEnv("OAUTH_TOKEN_URL", "https://oauth2.googleapis.com/token"),
		APNSBundleID:    getEnv("APNS_BUNDLE_ID", "com.nerdherd.app"),
		ProviderTimeout: getDuration("PROVIDER_TIMEOUT", 10*time.Second),

		TokenCacheMode:        getEnv("TOKEN_CACHE_MODE", "always"),
		TokenExchangeAttempts: getInt("TOKEN_EXCHANGE_ATTEMPTS", 1),
		TokenExchangeBackoff:  getDuration("TOKEN_EXCHANGE_BACKOFF", 500*time.Millisecond),

		RateLimit: getInt("RATE_LIMIT_PER_SECOND", 100),

		RedisURL:       os.Getenv("REDIS_URL"),
		SuppressionTTL: getDuration("SUPPRESSION_TTL", 24*time.Hour),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	switch cfg.TokenCacheMode {
	case "always", "cached":
	default:
		return nil, fmt.Errorf("TOKEN_CACHE_MODE must be always or cached, got %q", cfg.TokenCacheMode)
	}

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
