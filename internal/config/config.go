package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"

	defaultTokenTTL   = 30 * 24 * time.Hour
	developmentSecret = "taskhub-development-secret"
)

var ErrMissingJWTSecret = errors.New("AUTH_JWT_SECRET is required in production")

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	Auth AuthConfig

	OTLPEndpoint string

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
	DBConnMaxIdleTime int

	Redis          RedisConfig
	LoginRateLimit RateLimitConfig
	SuperAdmin     SuperAdminConfig
}

type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
	Issuer    string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	Enabled bool
	Rate    float64
	Burst   int
}

// SuperAdminConfig describes the platform operator account ensured at startup.
type SuperAdminConfig struct {
	Email    string
	Password string
	FullName string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:     getenv("APP_SERVICE", "taskhub"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", EnvDevelopment),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),
		Auth: AuthConfig{
			JWTSecret: strings.TrimSpace(getenv("AUTH_JWT_SECRET", "")),
			TokenTTL:  getenvDuration("AUTH_TOKEN_TTL", defaultTokenTTL),
			Issuer:    getenv("AUTH_TOKEN_ISSUER", "taskhub"),
		},
		OTLPEndpoint:      getenv("OTLP_ENDPOINT", ""),
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "taskhub"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 10),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 50),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 1800),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 300),
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getenvInt("REDIS_DB", 0),
		},
		LoginRateLimit: RateLimitConfig{
			Enabled: getenvBool("LOGIN_RATE_LIMIT_ENABLED", false),
			Rate:    getenvFloat("LOGIN_RATE_LIMIT_RATE", 0.2),
			Burst:   getenvInt("LOGIN_RATE_LIMIT_BURST", 10),
		},
		SuperAdmin: SuperAdminConfig{
			Email:    strings.ToLower(strings.TrimSpace(getenv("SUPERADMIN_EMAIL", ""))),
			Password: getenv("SUPERADMIN_PASSWORD", ""),
			FullName: getenv("SUPERADMIN_NAME", "Platform Admin"),
		},
	}

	return cfg
}

// Validate fills development fallbacks and rejects unsafe production settings.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		if c.IsProduction() {
			return ErrMissingJWTSecret
		}
		c.Auth.JWTSecret = developmentSecret
	}
	if c.Auth.TokenTTL <= 0 {
		c.Auth.TokenTTL = defaultTokenTTL
	}
	return nil
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), EnvProduction)
}

func provideConfig() (Config, error) {
	cfg := Load()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
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

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
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
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}
