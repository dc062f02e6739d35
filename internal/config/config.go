// internal/config/config.go
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the runtime settings of the storefront.
type Config struct {
	AppEnv   string
	LogLevel string
	HTTPPort int

	// DatabaseURL selects Postgres when set; SQLite at SQLitePath otherwise.
	DatabaseURL string
	SQLitePath  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	SessionTTL   time.Duration
	CookieSecure bool
	RequireLogin bool

	AdminHandle   string
	AdminPassword string
	SeedCatalog   bool

	OTLPEndpoint      string
	AuthRatePerMinute int

	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// Load reads an optional .env file and then the process environment.
// A missing .env file is not an error.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppEnv:            getEnv("APP_ENV", "dev"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		HTTPPort:          getEnvInt("HTTP_PORT", 5000),
		DatabaseURL:       firstEnv("POSTGRES_URL", "DATABASE_URL"),
		SQLitePath:        getEnv("SQLITE_PATH", "instance/doceria.db"),
		RedisAddr:         getEnv("REDIS_ADDR", ""),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisDB:           getEnvInt("REDIS_DB", 0),
		SessionTTL:        getEnvDuration("SESSION_TTL", 24*time.Hour),
		CookieSecure:      getEnvBool("COOKIE_SECURE", false),
		RequireLogin:      getEnvBool("REQUIRE_LOGIN", true),
		AdminHandle:       getEnv("ADMIN_HANDLE", ""),
		AdminPassword:     getEnv("ADMIN_PASSWORD", ""),
		SeedCatalog:       getEnvBool("SEED_CATALOG", true),
		OTLPEndpoint:      getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		AuthRatePerMinute: getEnvInt("AUTH_RATE_PER_MINUTE", 30),
		RequestTimeout:    getEnvDuration("REQUEST_TIMEOUT", 15*time.Second),
		ShutdownTimeout:   getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if v := getEnv(key, ""); v != "" {
			return v
		}
	}
	return ""
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}

	return n
}

func getEnvBool(key string, def bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return def
	}

	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}

	return b
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return def
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}

	return d
}
