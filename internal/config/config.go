package config

import (
	"os"
	"time"
)

type Config struct {
	// Client settings
	APIBaseURL  string
	TokenFile   string
	HTTPTimeout time.Duration

	// Dev server settings
	Port      string
	DBPath    string
	JWTSecret string
	GinMode   string
}

func Load() *Config {
	return &Config{
		APIBaseURL:  getEnv("TASKFLOW_API_URL", "http://localhost:8080/api"),
		TokenFile:   getEnv("TASKFLOW_TOKEN_FILE", ""),
		HTTPTimeout: getDuration("TASKFLOW_HTTP_TIMEOUT", 30*time.Second),
		Port:        getEnv("PORT", "8080"),
		DBPath:      getEnv("DB_PATH", "file::memory:?cache=shared"),
		JWTSecret:   getEnv("JWT_SECRET", "default-secret-key-change-me"),
		GinMode:     getEnv("GIN_MODE", "debug"),
	}
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}
