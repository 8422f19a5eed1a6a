// internal/config/config.go
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	APIBaseURL     string
	WSURL          string
	SessionToken   string
	RequestTimeout time.Duration
	HistorySize    int
	Development    bool
}

// Load reads .env (if present) and the environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, relying on OS environment variables")
	}

	return &Config{
		APIBaseURL:     envOr("FORMREACH_API_URL", "http://localhost:8080"),
		WSURL:          envOr("FORMREACH_WS_URL", "ws://localhost:8080/ws"),
		SessionToken:   os.Getenv("FORMREACH_TOKEN"),
		RequestTimeout: envDuration("FORMREACH_TIMEOUT", 15*time.Second),
		HistorySize:    envInt("FORMREACH_HISTORY_SIZE", 60),
		Development:    os.Getenv("FORMREACH_ENV") != "production",
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
