// Package config reads process configuration from the environment.
package config

import (
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the agentsim process.
type Config struct {
	Port     string
	DBPath   string
	AdminKey string // Bearer token for mutating endpoints. Empty = open (dev only).
	Seed     int64  // Random seed; 0 means derive from the clock.
	LogLevel slog.Level
}

// Load reads configuration from environment variables, with a .env file
// honored in development.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		Port:     getEnv("AGENTSIM_PORT", "8080"),
		DBPath:   getEnv("AGENTSIM_DB", "data/agentsim.db"),
		AdminKey: os.Getenv("AGENTSIM_ADMIN_KEY"),
		LogLevel: parseLevel(getEnv("AGENTSIM_LOG_LEVEL", "info")),
	}

	if raw := os.Getenv("AGENTSIM_SEED"); raw != "" {
		if seed, err := strconv.ParseInt(raw, 10, 64); err == nil {
			cfg.Seed = seed
		}
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
