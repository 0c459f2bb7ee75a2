package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	ServerPort     string
	DatabaseType   string
	DatabasePath   string
	DatabaseURL    string
	MigrationsPath string

	// Timezone for streak day boundaries. Streaks compare dates, not
	// timestamps, and all dates are truncated in this location.
	Timezone string

	// MaxInProgress caps how many courses may be unlocked at once when
	// courses are auto-assigned to a child.
	MaxInProgress int

	// DuplicateWindow is the interval within which repeated interactions
	// for the same child+content are treated as client-side duplicates.
	DuplicateWindow time.Duration

	LogLevel string
	LogPath  string

	SESRegion    string
	SESFromEmail string
	SESFromName  string
}

// Load reads configuration from environment variables with sensible defaults
func Load() *Config {
	// Optional .env file for local development
	_ = godotenv.Load()

	return &Config{
		ServerPort:      getEnv("PORT", "8080"),
		DatabaseType:    getEnv("DB_TYPE", "sqlite"),
		DatabasePath:    getEnv("DB_PATH", "./starpath.db"),
		DatabaseURL:     getEnv("DB_URL", ""),
		MigrationsPath:  getEnv("MIGRATIONS_PATH", "./migrations"),
		Timezone:        getEnv("STREAK_TIMEZONE", "UTC"),
		MaxInProgress:   getEnvInt("MAX_IN_PROGRESS", 1),
		DuplicateWindow: getEnvDuration("DUPLICATE_WINDOW", 5*time.Second),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogPath:         getEnv("LOG_PATH", ""),
		SESRegion:       getEnv("SES_REGION", "eu-west-1"),
		SESFromEmail:    getEnv("SES_FROM_EMAIL", ""),
		SESFromName:     getEnv("SES_FROM_NAME", "Starpath"),
	}
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt reads an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// getEnvDuration reads a duration environment variable or returns a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
