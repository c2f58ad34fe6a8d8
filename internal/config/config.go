package config

import (
	"os"
	"strings"
)

type AppConfig struct {
	// Server
	HTTPAddr string

	// Redis
	RedisAddr string
	RedisPass string

	// Booking system API
	BookingAPIBaseURL string
	BookingAPIToken   string
}

// Load loads environment variables into AppConfig. The PostgreSQL connection
// string is read separately via DATABASE_URL.
func Load() AppConfig {
	return AppConfig{
		HTTPAddr: getEnv("HTTP_ADDR", ":8000"),

		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPass: getEnv("REDIS_PASS", ""),

		BookingAPIBaseURL: getEnv("BOOKING_API_BASE_URL", ""),
		BookingAPIToken:   getEnv("BOOKING_API_TOKEN", ""),
	}
}

// --- Helper functions ---

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
