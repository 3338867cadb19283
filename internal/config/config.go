// Package config loads runtime configuration from environment variables,
// with an optional .env file for local development.
package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime settings for the server.
type Config struct {
	Port         string        // TCP port the HTTP server listens on
	UploadDir    string        // root directory for room-scoped media storage
	RoomIdleTTL  time.Duration // how long an empty room survives before the reaper evicts it
	ReapInterval time.Duration // how often the reaper scans for idle rooms
	LogLevel     string        // logrus level name: debug, info, warn, error
	Env          string        // "development" or "production"
}

// Load reads configuration from the environment. A missing .env file is not
// an error; in production real environment variables are used instead.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:         getEnv("PORT", "8080"),
		UploadDir:    getEnv("UPLOAD_DIR", "uploads"),
		RoomIdleTTL:  getDuration("ROOM_IDLE_TTL", 10*time.Minute),
		ReapInterval: getDuration("ROOM_REAP_INTERVAL", time.Minute),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		Env:          getEnv("ENV", "development"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getDuration parses a Go duration string ("90s", "10m"). Unset or
// unparseable values fall back to the default.
func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
