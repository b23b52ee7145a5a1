package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Grants    GrantsConfig
	Telemetry TelemetryConfig
}

type ServerConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	Environment     string
}

type DatabaseConfig struct {
	DSN string // vacío => storage in-memory
	// AutoMigrate aplica las migraciones embebidas al arrancar.
	AutoMigrate bool
}

// AuthMode: dev (headers X-Debug-*), jwt (HS256 local) u odin (IAM remoto).
type AuthMode string

const (
	AuthModeDev  AuthMode = "dev"
	AuthModeJWT  AuthMode = "jwt"
	AuthModeOdin AuthMode = "odin"
)

type AuthConfig struct {
	Mode AuthMode

	JWTSecret   string
	JWTIssuer   string
	JWTAudience string

	OdinBaseURL string
	OdinAPIKey  string
	OdinTimeout time.Duration
}

type RedisConfig struct {
	Addr     string // vacío => limiter en memoria
	Password string
	DB       int
}

type RateLimitConfig struct {
	TokenAttempts int
	TokenWindow   time.Duration
}

type GrantsConfig struct {
	TokenTTLDays    int
	MaxTokenTTLDays int
	SweepInterval   time.Duration
}

type TelemetryConfig struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	ExporterURL    string
	Insecure       bool
	SamplingRatio  float64
}

func NewConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            getEnv("SERVER_ADDR", ":"+getEnv("PORT", "8080")),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 5*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			Environment:     getEnv("SERVER_ENVIRONMENT", "development"),
		},
		Database: DatabaseConfig{
			DSN:         getEnv("DB_DSN", ""),
			AutoMigrate: getEnvBool("DB_AUTO_MIGRATE", true),
		},
		Auth: AuthConfig{
			Mode:        AuthMode(strings.ToLower(getEnv("AUTH_MODE", string(AuthModeDev)))),
			JWTSecret:   getEnv("JWT_SECRET", ""),
			JWTIssuer:   getEnv("JWT_ISSUER", ""),
			JWTAudience: getEnv("JWT_AUDIENCE", ""),
			OdinBaseURL: getEnv("ODIN_BASE_URL", ""),
			OdinAPIKey:  getEnv("ODIN_API_KEY", ""),
			OdinTimeout: getEnvDuration("ODIN_TIMEOUT", 5*time.Second),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		RateLimit: RateLimitConfig{
			TokenAttempts: getEnvInt("GRANT_TOKEN_RATE_LIMIT", 10),
			TokenWindow:   getEnvDuration("GRANT_TOKEN_RATE_WINDOW", time.Minute),
		},
		Grants: GrantsConfig{
			TokenTTLDays:    getEnvInt("GRANT_TOKEN_TTL_DAYS", 7),
			MaxTokenTTLDays: getEnvInt("GRANT_TOKEN_MAX_TTL_DAYS", 30),
			SweepInterval:   getEnvDuration("GRANT_SWEEP_INTERVAL", 15*time.Minute),
		},
		Telemetry: TelemetryConfig{
			Enabled:        getEnvBool("OTEL_ENABLED", false),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "child-development-records"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "dev"),
			ExporterURL:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Insecure:       getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", true),
			SamplingRatio:  getEnvFloat("OTEL_SAMPLING_RATIO", 1.0),
		},
	}
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if durationValue, err := time.ParseDuration(value); err == nil {
			return durationValue
		}
	}
	return defaultValue
}
