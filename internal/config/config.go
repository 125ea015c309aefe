package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string
	RedisURL    string
	JWTSecret   string
	ServerPort  string
	Environment string
	JWTExpiry   time.Duration
	CORSOrigins []string

	// Nextcloud (WebDAV) asset store
	NextcloudURL      string
	NextcloudUser     string
	NextcloudPassword string
	NextcloudTimeout  time.Duration

	// Audit log spool used while the database is unreachable
	AuditSpoolPath string

	// Image listing cache
	AssetCacheSize int
	AssetCacheTTL  time.Duration

	// Rate limiting (login endpoint)
	RateLimitMaxRequests int
	RateLimitWindow      time.Duration
	RateLimitBlockTime   time.Duration
}

func Load() *Config {
	// Try to load .env file, but don't fail if it doesn't exist
	// (Docker containers use environment variables directly)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using process environment")
	}

	cfg := &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		ServerPort:  getEnv("SERVER_PORT", ":8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		JWTExpiry:   getEnvAsDuration("JWT_EXPIRY", "168h"),
		CORSOrigins: splitList(os.Getenv("CORS_ORIGINS")),

		NextcloudURL:      strings.TrimRight(os.Getenv("NEXTCLOUD_URL"), "/"),
		NextcloudUser:     os.Getenv("NEXTCLOUD_ADMIN_USER"),
		NextcloudPassword: os.Getenv("NEXTCLOUD_ADMIN_PASSWORD"),
		NextcloudTimeout:  getEnvAsDuration("NEXTCLOUD_TIMEOUT", "30s"),

		AuditSpoolPath: getEnv("AUDIT_SPOOL_PATH", "data/audit_spool.log"),

		AssetCacheSize: getEnvAsInt("ASSET_CACHE_SIZE", 256),
		AssetCacheTTL:  getEnvAsDuration("ASSET_CACHE_TTL", "30s"),

		RateLimitMaxRequests: getEnvAsInt("RATE_LIMIT_MAX_REQUESTS", 10),
		RateLimitWindow:      getEnvAsDuration("RATE_LIMIT_WINDOW", "1m"),
		RateLimitBlockTime:   getEnvAsDuration("RATE_LIMIT_BLOCK_TIME", "5m"),
	}

	return cfg
}

// Validate reports every missing required setting at once.
func (c *Config) Validate() error {
	required := []struct{ key, val string }{
		{"DATABASE_URL", c.DatabaseURL},
		{"JWT_SECRET", c.JWTSecret},
		{"NEXTCLOUD_URL", c.NextcloudURL},
		{"NEXTCLOUD_ADMIN_USER", c.NextcloudUser},
		{"NEXTCLOUD_ADMIN_PASSWORD", c.NextcloudPassword},
	}

	var missing []string
	for _, r := range required {
		if r.val == "" {
			missing = append(missing, r.key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	if c.JWTExpiry <= 0 {
		return errors.New("JWT_EXPIRY must be positive")
	}
	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// getEnvAsInt retrieves environment variable as int with default value
func getEnvAsInt(key string, defaultVal int) int {
	valStr := os.Getenv(key)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil {
		log.Printf("Invalid %s value, using default: %d", key, defaultVal)
		return defaultVal
	}
	return val
}

// getEnvAsDuration retrieves environment variable as duration with default value
func getEnvAsDuration(key string, defaultVal string) time.Duration {
	valStr := os.Getenv(key)
	if valStr == "" {
		valStr = defaultVal
	}
	duration, err := time.ParseDuration(valStr)
	if err != nil {
		log.Printf("Invalid %s value, using default: %s", key, defaultVal)
		duration, _ = time.ParseDuration(defaultVal)
	}
	return duration
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
