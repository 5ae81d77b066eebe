package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

// RateClass holds the admission parameters for one class of routes.
type RateClass struct {
	Window      time.Duration
	MaxRequests int
	Message     string
}

type Config struct {
	// MongoDB configuration
	MongoURI     string
	DatabaseName string

	// Admin authentication. AdminPassword may be a plain secret or a
	// bcrypt hash ($2a$/$2b$ prefix). APIKey authenticates non-browser
	// integrations and is optional.
	AdminPassword string
	APIKey        string

	// Liveness and sweep intervals
	HeartbeatTimeout time.Duration
	ReapInterval     time.Duration
	SessionTTL       time.Duration
	CSRFTTL          time.Duration
	PingInterval     time.Duration
	SweepInterval    time.Duration

	// Persistence write coalescing delay
	SaveDelay time.Duration

	// Rate limiting per route class
	GeneralRate RateClass
	AuthRate    RateClass
	APIRate     RateClass

	// Server configuration
	Port        string
	CORSOrigins string
}

func LoadConfig() *Config {
	cfg := &Config{
		MongoURI:     getEnv("MONGO_URI", "mongodb://localhost:27017"),
		DatabaseName: getEnv("MONGO_DB_NAME", "signage"),

		AdminPassword: getEnv("ADMIN_PASSWORD", ""),
		APIKey:        getEnv("API_KEY", ""),

		HeartbeatTimeout: getEnvDuration("HEARTBEAT_TIMEOUT", 90*time.Second),
		ReapInterval:     getEnvDuration("REAP_INTERVAL", 60*time.Second),
		SessionTTL:       getEnvDuration("SESSION_TTL", 24*time.Hour),
		CSRFTTL:          getEnvDuration("CSRF_TTL", time.Hour),
		PingInterval:     getEnvDuration("PING_INTERVAL", 30*time.Second),
		SweepInterval:    getEnvDuration("SWEEP_INTERVAL", time.Hour),

		SaveDelay: getEnvDuration("SAVE_DELAY", 2*time.Second),

		GeneralRate: RateClass{
			Window:      getEnvDuration("RATE_GENERAL_WINDOW", time.Minute),
			MaxRequests: getEnvInt("RATE_GENERAL_MAX", 300),
			Message:     "Too many requests, please try again later",
		},
		AuthRate: RateClass{
			Window:      getEnvDuration("RATE_AUTH_WINDOW", 15*time.Minute),
			MaxRequests: getEnvInt("RATE_AUTH_MAX", 10),
			Message:     "Too many login attempts, please try again later",
		},
		APIRate: RateClass{
			Window:      getEnvDuration("RATE_API_WINDOW", time.Minute),
			MaxRequests: getEnvInt("RATE_API_MAX", 100),
			Message:     "API rate limit exceeded",
		},

		Port:        getEnv("PORT", "8080"),
		CORSOrigins: getEnv("CORS_ORIGINS", "http://localhost:5173, http://localhost:3000"),
	}

	if cfg.AdminPassword == "" {
		slog.Error("ADMIN_PASSWORD not set; admin login will reject all credentials")
	}

	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
		slog.Error("Invalid integer in environment", "key", key, "value", value)
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		slog.Error("Invalid duration in environment", "key", key, "value", value)
	}
	return defaultValue
}
