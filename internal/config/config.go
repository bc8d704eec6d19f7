package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the service reads from the environment.
type Config struct {
	Port        string
	GinMode     string
	LogLevel    string
	LogFormat   string
	JWTSecret   string
	TokenTTL    time.Duration
	CORSOrigins []string

	Database Database
	Tracing  Tracing
}

// Database selects and addresses the backing store. Driver is "postgres"
// (default) or "sqlite". DSN, when set, wins over the individual fields.
type Database struct {
	Driver   string
	DSN      string
	Host     string
	User     string
	Password string
	Name     string
	Port     string
	SSLMode  string
}

type Tracing struct {
	Exporter     string // none | stdout | otlp
	OTLPEndpoint string
	ServiceName  string
}

// Load reads .env (if present) and then the process environment.
func Load() (*Config, error) {
	// a missing .env is fine, the environment may already be populated
	_ = godotenv.Load()

	ttl, err := time.ParseDuration(getEnv("TOKEN_TTL", "24h"))
	if err != nil {
		return nil, fmt.Errorf("invalid TOKEN_TTL: %w", err)
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		GinMode:     getEnv("GIN_MODE", "release"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "json"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		TokenTTL:    ttl,
		CORSOrigins: splitList(getEnv("CORS_ORIGIN", "*")),
		Database: Database{
			Driver:   strings.ToLower(getEnv("DB_DRIVER", "postgres")),
			DSN:      os.Getenv("DB_DSN"),
			Host:     os.Getenv("DB_HOST"),
			User:     os.Getenv("DB_USER"),
			Password: os.Getenv("DB_PASS"),
			Name:     os.Getenv("DB_NAME"),
			Port:     getEnv("DB_PORT", "5432"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Tracing: Tracing{
			Exporter:     strings.ToLower(getEnv("OTEL_TRACES_EXPORTER", "none")),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			ServiceName:  getEnv("OTEL_SERVICE_NAME", "slotswap-api"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports configuration that would prevent the server from starting.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is missing")
	}
	if c.TokenTTL <= 0 {
		return errors.New("TOKEN_TTL must be positive")
	}
	switch c.GinMode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("unknown GIN_MODE %q", c.GinMode)
	}
	switch c.Tracing.Exporter {
	case "none", "stdout", "otlp":
	default:
		return fmt.Errorf("unknown OTEL_TRACES_EXPORTER %q", c.Tracing.Exporter)
	}
	return c.Database.Validate()
}

func (d Database) Validate() error {
	switch d.Driver {
	case "sqlite":
		if d.DSN == "" {
			return errors.New("DB_DSN is required for the sqlite driver")
		}
	case "postgres":
		if d.DSN != "" {
			return nil
		}
		if d.Host == "" || d.User == "" || d.Password == "" || d.Name == "" || d.Port == "" {
			return errors.New("database env missing: set DB_DSN or DB_HOST, DB_USER, DB_PASS, DB_NAME, DB_PORT")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", d.Driver)
	}
	return nil
}

// PostgresDSN builds a key/value DSN unless DB_DSN was given verbatim.
func (d Database) PostgresDSN() string {
	if d.DSN != "" {
		return d.DSN
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
