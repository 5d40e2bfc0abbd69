package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds client configuration values.
type Config struct {
	APIBaseURL    string
	HTTPTimeout   time.Duration
	PollInterval  time.Duration
	CountdownTick time.Duration
	SlipMaxBytes  int64
	TryOnMaxBytes int64
	TokenDir      string
}

// Load reads environment variables and returns a populated Config.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		APIBaseURL:    getEnv("SHOP_API_BASE_URL", "http://localhost:8080/api"),
		HTTPTimeout:   getEnvDuration("SHOP_HTTP_TIMEOUT_SECONDS", 15) * time.Second,
		PollInterval:  getEnvDuration("SHOP_POLL_INTERVAL_SECONDS", 5) * time.Second,
		CountdownTick: 500 * time.Millisecond,
		SlipMaxBytes:  getEnvInt64("SHOP_SLIP_MAX_MB", 5) << 20,
		TryOnMaxBytes: getEnvInt64("SHOP_TRYON_MAX_MB", 8) << 20,
		TokenDir:      getEnv("SHOP_TOKEN_DIR", defaultTokenDir()),
	}

	return cfg
}

func defaultTokenDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return ".shopcore"
	}
	return filepath.Join(base, "shopcore")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvDuration(key string, fallback int) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return time.Duration(parsed)
		}
	}
	return time.Duration(fallback)
}

func getEnvInt64(key string, fallback int64) int64 {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}
