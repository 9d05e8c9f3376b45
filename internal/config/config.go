package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string
	LogLevel    string

	// AdminToken gates the /v1/diagnostics surface. Empty disables it.
	AdminToken string

	// CORSAllowlist holds allowed browser origins, comma separated in the
	// environment. Entries may be exact origins or *.example.com wildcards.
	CORSAllowlist []string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	Security     SecurityConfig
	RateLimit    RateLimitConfig
	Verification VerificationConfig
	Webhook      WebhookConfig
	Cache        CacheConfig
}

// SecurityConfig controls request signing checks.
type SecurityConfig struct {
	SignatureSkew time.Duration
	// SealKey encrypts stored api_secrets at rest so the signature
	// validator can recompute request MACs.
	SealKey string
	// ProvisioningWindow is how long a freshly registered domain may read
	// its configuration before verification completes.
	ProvisioningWindow time.Duration
	// RotationGrace is how long the pre-rotation api key keeps working so
	// satellites can roll credentials without downtime.
	RotationGrace time.Duration
}

// RateLimitConfig holds per-endpoint-class hourly limits.
type RateLimitConfig struct {
	RegistrationPerHour int
	TrackingPerHour     int
	DefaultPerHour      int
	DefaultPerMinute    int
}

// VerificationConfig controls outbound domain verification.
type VerificationConfig struct {
	Path        string
	Timeout     time.Duration
	PaceDelay   time.Duration
	MaxFailures int
}

// WebhookConfig controls outbound webhook delivery.
type WebhookConfig struct {
	Timeout    time.Duration
	MaxRetries int
}

// CacheConfig controls cache-aside TTLs for hot lookups.
type CacheConfig struct {
	DomainTTL time.Duration
	CodeTTL   time.Duration
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "affcd-gateway"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),
		LogLevel:    getenv("LOG_LEVEL", "info"),
		AdminToken:  strings.TrimSpace(getenv("ADMIN_TOKEN", "")),

		CORSAllowlist: getenvList("CORS_ALLOWLIST"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "affcd"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", "postgres"),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 3600),

		RedisAddr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
		RedisPassword: strings.TrimSpace(getenv("REDIS_PASSWORD", "")),
		RedisDB:       getenvInt("REDIS_DB", 0),

		Security: SecurityConfig{
			SignatureSkew:      getenvDuration("SIGNATURE_SKEW", 300*time.Second),
			SealKey:            getenv("SECRET_SEAL_KEY", "dev-only-seal-key"),
			ProvisioningWindow: getenvDuration("PROVISIONING_WINDOW", 24*time.Hour),
			RotationGrace:      getenvDuration("ROTATION_GRACE", 24*time.Hour),
		},
		RateLimit: RateLimitConfig{
			RegistrationPerHour: getenvInt("RATE_LIMIT_REGISTRATION_HOURLY", 100),
			TrackingPerHour:     getenvInt("RATE_LIMIT_TRACKING_HOURLY", 10000),
			DefaultPerHour:      getenvInt("RATE_LIMIT_DEFAULT_HOURLY", 1000),
			DefaultPerMinute:    getenvInt("RATE_LIMIT_DEFAULT_MINUTE", 60),
		},
		Verification: VerificationConfig{
			Path:        getenv("VERIFICATION_PATH", "/.well-known/affcd-verification"),
			Timeout:     getenvDuration("VERIFICATION_TIMEOUT", 30*time.Second),
			PaceDelay:   getenvDuration("VERIFICATION_PACE_DELAY", 500*time.Millisecond),
			MaxFailures: getenvInt("VERIFICATION_MAX_FAILURES", 5),
		},
		Webhook: WebhookConfig{
			Timeout:    getenvDuration("WEBHOOK_TIMEOUT", 10*time.Second),
			MaxRetries: getenvInt("WEBHOOK_MAX_RETRIES", 3),
		},
		Cache: CacheConfig{
			DomainTTL: getenvDuration("CACHE_DOMAIN_TTL", 5*time.Minute),
			CodeTTL:   getenvDuration("CACHE_CODE_TTL", 2*time.Minute),
		},
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvList(key string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return def
}
