package config // package config loads application configuration from environment variables

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration values. Each field
// corresponds to an environment variable. The three JWT keys are
// independent on purpose: user access, user refresh and device access
// tokens must never verify against each other's key.
type Config struct {
	Env  string // application environment (e.g. "dev", "prod")
	Port string // HTTP port to listen on

	DBUser string // database username
	DBPass string // database password (optional)
	DBHost string // database host address
	DBPort string // database port number
	DBName string // database name

	JWTAccessSecret  string // signing key for user access tokens
	JWTRefreshSecret string // signing key for user refresh tokens
	JWTDeviceSecret  string // signing key for device access tokens

	AccessTTLMin   int // user access token time-to-live in minutes
	RefreshTTLDays int // user refresh token time-to-live in days
	DeviceTTLMin   int // device access token time-to-live in minutes

	BcryptCost int // bcrypt cost for password and secret hashing

	PayloadLimitBytes  int           // maximum accepted reading payload size
	MinReadingInterval time.Duration // minimum spacing between real readings per device
	MaxReadingsPage    int           // hard cap for readings listing page size

	AdminEmail    string // bootstrap admin account email
	AdminPassword string // bootstrap admin account password

	SimulatorEnabled bool // toggle for the background telemetry generator
}

// Load reads configuration from environment variables. Required
// variables are enforced by must() and missing values cause the
// program to exit with a fatal log message; tunables fall back to the
// defaults of the original demo deployment.
func Load() Config {
	return Config{
		Env:  must("APP_ENV"),
		Port: must("APP_PORT"),

		DBUser: must("DB_USER"),
		DBPass: os.Getenv("DB_PASS"),
		DBHost: must("DB_HOST"),
		DBPort: must("DB_PORT"),
		DBName: must("DB_NAME"),

		JWTAccessSecret:  must("JWT_ACCESS_SECRET"),
		JWTRefreshSecret: must("JWT_REFRESH_SECRET"),
		JWTDeviceSecret:  must("JWT_DEVICE_SECRET"),

		AccessTTLMin:   envInt("ACCESS_TOKEN_TTL_MIN", 15),
		RefreshTTLDays: envInt("REFRESH_TOKEN_TTL_DAYS", 7),
		DeviceTTLMin:   envInt("DEVICE_TOKEN_TTL_MIN", 5),

		BcryptCost: envInt("BCRYPT_COST", 12),

		PayloadLimitBytes:  envInt("DATA_PAYLOAD_LIMIT_BYTES", 2048),
		MinReadingInterval: envDur("MIN_READING_INTERVAL", time.Second),
		MaxReadingsPage:    envInt("MAX_READINGS_PAGE_SIZE", 100),

		AdminEmail:    envStr("ADMIN_EMAIL", "admin@example.com"),
		AdminPassword: envStr("ADMIN_PASSWORD", "Admin123!"),

		SimulatorEnabled: envBool("TELEMETRY_SIMULATION_ENABLED", true),
	}
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and
// exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, v)
	}
	return n
}

func envBool(key string, def bool) bool {
	switch os.Getenv(key) {
	case "1", "true", "TRUE", "True", "yes", "on":
		return true
	case "0", "false", "FALSE", "False", "no", "off":
		return false
	}
	return def
}

func envDur(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Fatalf("invalid duration for %s: %q", key, v)
	}
	return d
}
