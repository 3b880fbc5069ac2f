// Package config loads server configuration from environment variables,
// an optional .env file and an optional YAML seed file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	StoreSQLite = "sqlite"
	StoreMemory = "memory"

	DefaultDBPath = "./data/prepaidrecon.db"
)

// Config represents the server configuration.
type Config struct {
	Port       int
	Store      string
	DBPath     string
	StaticPath string

	JWTSecret   string
	JWTDuration time.Duration

	// RedisAddr enables the distributed per-record lock when set.
	RedisAddr     string
	RedisPassword string
	LockTTL       time.Duration

	// SeedPath points at an optional YAML seed file.
	SeedPath string
}

// Load loads configuration from environment variables.
// It automatically loads .env file from the current directory if available.
// You can optionally specify a custom .env file path.
func Load(envPath ...string) (*Config, error) {
	if len(envPath) > 0 && envPath[0] != "" {
		if err := godotenv.Load(envPath[0]); err != nil {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	} else {
		// Try to load .env from current directory (ignore error if not found)
		_ = godotenv.Load()
	}

	port, err := parseIntEnv("PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}
	jwtDuration, err := parseDurationEnv("JWT_DURATION", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_DURATION: %w", err)
	}
	lockTTL, err := parseDurationEnv("LOCK_TTL", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid LOCK_TTL: %w", err)
	}

	cfg := &Config{
		Port:          port,
		Store:         getEnvOrDefault("STORE", StoreSQLite),
		DBPath:        getEnvOrDefault("DB_PATH", DefaultDBPath),
		StaticPath:    os.Getenv("STATIC_PATH"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		JWTDuration:   jwtDuration,
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		LockTTL:       lockTTL,
		SeedPath:      os.Getenv("SEED_PATH"),
	}
	return cfg, cfg.Validate()
}

// Validate checks that required fields are set and values are coherent.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if len(c.JWTSecret) < 16 {
		return fmt.Errorf("JWT_SECRET must be at least 16 characters")
	}
	switch c.Store {
	case StoreSQLite, StoreMemory:
	default:
		return fmt.Errorf("unknown STORE %q (want %s or %s)", c.Store, StoreSQLite, StoreMemory)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT out of range: %d", c.Port)
	}
	return nil
}

func getEnvOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func parseIntEnv(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	return strconv.Atoi(value)
}

func parseDurationEnv(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	return time.ParseDuration(value)
}
