package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const PROD_STRING = "prod"

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds all application configuration loaded from environment.
type Config struct {
	IsProduction bool
	ProdOrigins  string
	HTTPAddr     string

	StorageDriver string
	DBDSN         string
	DBAutoMigrate bool

	JWTSecret         string
	JWTAccessTokenTTL time.Duration
	BcryptCost        int
	AdminEmails       []string

	// Booking admission
	LockTimeout       time.Duration
	AdmitMaxRetries   int
	AdmitRetryBackoff time.Duration
	BookingPastGrace  time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	AMQPURL string

	LogLevel  string
	LogFormat string
}

// Load loads configuration from .env (optional) and environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	cfg := &Config{}
	var err error

	cfg.ProdOrigins = getEnv("PROD_ORIGINS", "")
	cfg.IsProduction = getEnv("APP_ENV", "dev") == PROD_STRING
	cfg.HTTPAddr = getEnv("HTTP_ADDR", ":8080")

	// Storage driver (default: postgres)
	cfg.StorageDriver = strings.ToLower(getEnv("STORAGE_DRIVER", DriverPostgres))
	switch cfg.StorageDriver {
	case DriverPostgres:
		// Database DSN is required for the durable driver
		cfg.DBDSN = os.Getenv("DB_DSN")
		if cfg.DBDSN == "" {
			return nil, fmt.Errorf("DB_DSN is required")
		}
	case DriverMemory:
		if cfg.IsProduction {
			return nil, fmt.Errorf("STORAGE_DRIVER=memory is not allowed in production")
		}
	default:
		return nil, fmt.Errorf("invalid STORAGE_DRIVER %q", cfg.StorageDriver)
	}

	if cfg.DBAutoMigrate, err = getEnvAsBool("DB_AUTO_MIGRATE", false); err != nil {
		return nil, err
	}

	// JWT secret is required for signing tokens
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	if cfg.JWTAccessTokenTTL, err = getEnvAsDuration("JWT_ACCESS_TOKEN_TTL", 15*time.Minute); err != nil {
		return nil, err
	}

	// Bcrypt cost for password hashing (default: 12)
	if cfg.BcryptCost, err = getEnvAsInt("BCRYPT_COST", 12); err != nil {
		return nil, err
	}

	cfg.AdminEmails = splitList(getEnv("ADMIN_EMAILS", ""))

	if cfg.LockTimeout, err = getEnvAsDuration("LOCK_TIMEOUT", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.LockTimeout <= 0 {
		return nil, fmt.Errorf("LOCK_TIMEOUT must be positive")
	}
	if cfg.AdmitMaxRetries, err = getEnvAsInt("ADMIT_MAX_RETRIES", 3); err != nil {
		return nil, err
	}
	if cfg.AdmitMaxRetries < 0 {
		return nil, fmt.Errorf("ADMIT_MAX_RETRIES must not be negative")
	}
	if cfg.AdmitRetryBackoff, err = getEnvAsDuration("ADMIT_RETRY_BACKOFF", 25*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.BookingPastGrace, err = getEnvAsDuration("BOOKING_PAST_GRACE", 0); err != nil {
		return nil, err
	}

	// Redis is optional; without it sessions are not tracked server-side
	cfg.RedisAddr = getEnv("REDIS_ADDR", "")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	if cfg.RedisDB, err = getEnvAsInt("REDIS_DB", 0); err != nil {
		return nil, err
	}

	// AMQP is optional; without it booking events are not published
	cfg.AMQPURL = getEnv("AMQP_URL", "")

	cfg.LogLevel = getEnv("LOG_LEVEL", "info")
	cfg.LogFormat = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

// IsAdminEmail reports whether email is listed in ADMIN_EMAILS.
func (c *Config) IsAdminEmail(email string) bool {
	for _, e := range c.AdminEmails {
		if strings.EqualFold(e, strings.TrimSpace(email)) {
			return true
		}
	}
	return false
}

// getEnv returns the value of the environment variable if set,
// otherwise returns the provided default value.
func getEnv(key, defaultValue string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer.
// It returns an error if the variable is set but is not a valid integer.
func getEnvAsInt(key string, defaultValue int) (int, error) {
	valStr := getEnv(key, "")
	if valStr == "" {
		return defaultValue, nil
	}

	val, err := strconv.Atoi(valStr)
	if err != nil {
		return 0, fmt.Errorf("env %s value %q is not a valid integer: %w", key, valStr, err)
	}
	return val, nil
}

// getEnvAsDuration parses values like "15m" or "250ms".
func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	valStr := getEnv(key, "")
	if valStr == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(valStr)
	if err != nil {
		return 0, fmt.Errorf("env %s value %q is not a valid duration: %w", key, valStr, err)
	}
	return val, nil
}

func getEnvAsBool(key string, defaultValue bool) (bool, error) {
	valStr := getEnv(key, "")
	if valStr == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(valStr)
	if err != nil {
		return false, fmt.Errorf("env %s value %q is not a valid bool: %w", key, valStr, err)
	}
	return val, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
