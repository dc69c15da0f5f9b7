// Package config provides configuration parsing for the dtsociety server.
//
// Values come from command-line flags, with environment variables as
// fallbacks. A .env file in the working directory (or the file named by
// ENV_FILE) is loaded into the environment first; variables already set in
// the process environment win over the file.
//
// Supported configuration sources (in order of precedence):
//  1. Command-line flags
//  2. Environment variables
//  3. .env file
//  4. Default values
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/HatiCode/dtsociety/pkg/tls"
)

// Storage backends.
const (
	StorageMemory   = "memory"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
)

// Config holds all server configuration.
type Config struct {
	Listen    string
	LogFormat string
	LogLevel  string

	Storage       string
	DatasetTTL    time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration
	PostgresDSN   string

	CacheTTL       time.Duration
	Workers        int
	RequestTimeout time.Duration
	ImportTimeout  time.Duration

	TLS tls.Config
	// ImportTLS configures the client used by dataset imports.
	ImportTLS tls.Config
}

// LoadEnvFile loads path (".env" when empty) into the process environment.
// A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// ParseFlags parses command-line flags and environment variables into a Config.
// Environment variables are used as fallbacks when flags are not provided.
func ParseFlags() *Config {
	if err := LoadEnvFile(os.Getenv("ENV_FILE")); err != nil {
		fmt.Fprintln(os.Stderr, "Warning:", err)
	}

	cfg := &Config{}

	flag.StringVar(&cfg.Listen, "listen", getEnv("LISTEN", ":8080"), "HTTP listen address")

	flag.StringVar(&cfg.LogFormat, "log-format", getEnv("LOG_FORMAT", "text"), "Log format: text or json")
	flag.StringVar(&cfg.LogLevel, "log-level", getEnv("LOG_LEVEL", "info"), "Log level: debug, info, warn, error")

	flag.StringVar(&cfg.Storage, "storage", getEnv("STORAGE", StorageMemory), "Storage backend: memory, redis or postgres")
	flag.DurationVar(&cfg.DatasetTTL, "dataset-ttl", getEnvDuration("DATASET_TTL", 0), "Expire in-memory datasets after this duration (0 keeps them)")
	flag.StringVar(&cfg.RedisAddr, "redis-addr", getEnv("REDIS_ADDR", "localhost:6379"), "Redis server address")
	flag.StringVar(&cfg.RedisPassword, "redis-password", getEnv("REDIS_PASSWORD", ""), "Redis password")
	flag.IntVar(&cfg.RedisDB, "redis-db", getEnvInt("REDIS_DB", 0), "Redis database number")
	flag.DurationVar(&cfg.RedisTTL, "redis-ttl", getEnvDuration("REDIS_TTL", 24*time.Hour), "Redis dataset TTL")
	flag.StringVar(&cfg.PostgresDSN, "postgres-dsn", getEnv("POSTGRES_DSN", ""), "PostgreSQL connection string")

	flag.DurationVar(&cfg.CacheTTL, "cache-ttl", getEnvDuration("CACHE_TTL", 10*time.Minute), "Prepared table cache TTL (0 disables the cache)")
	flag.IntVar(&cfg.Workers, "workers", getEnvInt("WORKERS", 4), "Concurrent per-country fits for map forecasts")
	flag.DurationVar(&cfg.RequestTimeout, "request-timeout", getEnvDuration("REQUEST_TIMEOUT", 90*time.Second), "Per-request processing timeout")
	flag.DurationVar(&cfg.ImportTimeout, "import-timeout", getEnvDuration("IMPORT_TIMEOUT", 30*time.Second), "Dataset download timeout")

	flag.BoolVar(&cfg.TLS.Enabled, "tls-enabled", getEnvBool("TLS_ENABLED", false), "Enable TLS for HTTP server")
	flag.StringVar(&cfg.TLS.CertFile, "tls-cert-file", getEnv("TLS_CERT_FILE", ""), "TLS certificate file")
	flag.StringVar(&cfg.TLS.KeyFile, "tls-key-file", getEnv("TLS_KEY_FILE", ""), "TLS private key file")
	flag.StringVar(&cfg.TLS.CAFile, "tls-ca-file", getEnv("TLS_CA_FILE", ""), "TLS CA certificate file for client verification")

	flag.BoolVar(&cfg.ImportTLS.Enabled, "import-tls-enabled", getEnvBool("IMPORT_TLS_ENABLED", false), "Use custom TLS settings for dataset imports")
	flag.StringVar(&cfg.ImportTLS.CertFile, "import-cert-file", getEnv("IMPORT_CERT_FILE", ""), "Client certificate for dataset imports")
	flag.StringVar(&cfg.ImportTLS.KeyFile, "import-key-file", getEnv("IMPORT_KEY_FILE", ""), "Client key for dataset imports")
	flag.StringVar(&cfg.ImportTLS.CAFile, "import-ca-file", getEnv("IMPORT_CA_FILE", ""), "CA certificate trusted by dataset imports")

	flag.Parse()

	return cfg
}

// Validate checks option combinations.
func (c *Config) Validate() error {
	switch c.Storage {
	case StorageMemory:
	case StorageRedis:
		if c.RedisAddr == "" {
			return errors.New("redis storage requires a redis address")
		}
	case StoragePostgres:
		if c.PostgresDSN == "" {
			return errors.New("postgres storage requires a postgres DSN")
		}
	default:
		return fmt.Errorf("invalid storage %q (must be memory, redis or postgres)", c.Storage)
	}

	if c.DatasetTTL < 0 {
		return fmt.Errorf("dataset TTL cannot be negative, got %v", c.DatasetTTL)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be > 0, got %d", c.Workers)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be > 0, got %v", c.RequestTimeout)
	}
	if c.ImportTimeout <= 0 {
		return fmt.Errorf("import timeout must be > 0, got %v", c.ImportTimeout)
	}
	if err := c.TLS.Validate(); err != nil {
		return fmt.Errorf("tls: %w", err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}
