package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the workflow service.
type Config struct {
	// Database configuration
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Server configuration
	Port string

	// Duplicate guard policy. Tuned once already; keep these in config.
	DuplicateRadiusMeters float64
	DuplicateMaxNearby    int

	// Unassigned report expiry
	UnassignedTTL       time.Duration
	ExpirySweepInterval time.Duration

	// RabbitMQ configuration for the change-notification transport
	AMQPURL      string
	AMQPExchange string
	AMQPRouting  string

	// Auth
	JWTSecret string

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "server"),
		DBPassword: getEnv("DB_PASSWORD", "secret_app"),
		DBName:     getEnv("DB_NAME", "infrasee"),

		Port: getEnv("PORT", "8080"),

		DuplicateRadiusMeters: getFloatEnv("DUPLICATE_RADIUS_METERS", 10),
		DuplicateMaxNearby:    getIntEnv("DUPLICATE_MAX_NEARBY", 3),

		UnassignedTTL:       getDurationEnv("UNASSIGNED_TTL", 7*24*time.Hour),
		ExpirySweepInterval: getDurationEnv("EXPIRY_SWEEP_INTERVAL", time.Hour),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "infrasee"),
		AMQPRouting:  getEnv("AMQP_ROUTING_KEY", "notifications"),

		JWTSecret: getEnv("JWT_SECRET", ""),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDurationEnv gets a duration environment variable or returns a default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getIntEnv gets an integer environment variable or returns a default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getFloatEnv gets a float environment variable or returns a default value
func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
