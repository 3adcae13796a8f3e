package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// HTTP
	HTTPPort string

	// Redis (push channel broker)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Poll channel
	PollBaseURL    string
	PollIntervalMS int

	// Reconciler intake buffer
	EventChannelSize int

	// Logging
	LogLevel string
}

func Load() *Config {
	// Best effort; absent .env just means plain environment variables.
	_ = godotenv.Load()

	return &Config{
		HTTPPort:         getEnv("HTTP_PORT", "8080"),
		RedisAddr:        getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisDB:          getEnvInt("REDIS_DB", 0),
		PollBaseURL:      getEnv("POLL_BASE_URL", "http://localhost:5000/api"),
		PollIntervalMS:   getEnvInt("POLL_INTERVAL_MS", 2000),
		EventChannelSize: getEnvInt("EVENT_CHANNEL_SIZE", 1024),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
