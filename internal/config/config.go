package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

type Config struct {
	ServerPort       string
	DatabaseURL      string
	RedisURL         string
	SessionTTL       time.Duration
	StoreTimeout     time.Duration
	RequestTimeout   time.Duration
	CleanupInterval  time.Duration
	GatewayJWTSecret string
	LogLevel         string
	MigrateOnStart   bool
}

// AgentConfig configures the client side: where the session manager lives
// and where the local session cache is kept.
type AgentConfig struct {
	SessionManagerURL string
	APIKey            string
	CacheDir          string
	Timeout           time.Duration
	LogLevel          string
}

func LoadConfig() (*Config, error) {
	sessionTTL, err := getDuration("SESSION_TTL", "24h")
	if err != nil {
		return nil, err
	}
	storeTimeout, err := getDuration("STORE_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}
	requestTimeout, err := getDuration("REQUEST_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	cleanupInterval, err := getDuration("CLEANUP_INTERVAL", "15m")
	if err != nil {
		return nil, err
	}
	migrateOnStart, err := getBool("MIGRATE_ON_START", false)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ServerPort:       getEnv("SERVER_PORT", "8080"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		SessionTTL:       sessionTTL,
		StoreTimeout:     storeTimeout,
		RequestTimeout:   requestTimeout,
		CleanupInterval:  cleanupInterval,
		GatewayJWTSecret: os.Getenv("GATEWAY_JWT_SECRET"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		MigrateOnStart:   migrateOnStart,
	}

	// Validate required fields
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}

	return cfg, nil
}

func LoadAgentConfig() (*AgentConfig, error) {
	timeout, err := getDuration("AGENT_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}

	cacheDir := os.Getenv("AGENT_CACHE_DIR")
	if cacheDir == "" {
		dir, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("resolve cache dir: %w", err)
		}
		cacheDir = filepath.Join(dir, "chatweet")
	}

	cfg := &AgentConfig{
		SessionManagerURL: getEnv("SESSION_MANAGER_URL", "http://localhost:8080/session-manager"),
		APIKey:            os.Getenv("SESSION_API_KEY"),
		CacheDir:          cacheDir,
		Timeout:           timeout,
		LogLevel:          getEnv("LOG_LEVEL", "warn"),
	}

	return cfg, nil
}

// Helper: get env with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key, defaultValue string) (time.Duration, error) {
	d, err := time.ParseDuration(getEnv(key, defaultValue))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s format", key)
	}
	return d, nil
}

func getBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s format", key)
	}
	return b, nil
}
