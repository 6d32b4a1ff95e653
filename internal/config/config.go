package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the attempt engine.
type Config struct {
	Port        string
	Environment string
	LogLevel    slog.Level

	RedisURL string

	TestService TestServiceConfig
	Kafka       KafkaConfig
	Casdoor     CasdoorConfig

	// AutosaveThreshold is the number of distinct dirty questions that
	// triggers an automatic progress flush.
	AutosaveThreshold int

	// FallbackDuration is granted to a session when the attempt-status call
	// fails after a successful question fetch.
	FallbackDuration time.Duration

	// HandoffTTL bounds how long a start/resume handoff payload stays
	// claimable before it expires unread.
	HandoffTTL time.Duration
}

type TestServiceConfig struct {
	BaseURL string
	Timeout time.Duration
	APIKey  string
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type CasdoorConfig struct {
	Endpoint     string
	ClientID     string
	ClientSecret string
	Cert         string
	Organization string
	Application  string
}

// LoadConfig reads configuration from the environment, optionally seeded from
// a local .env file.
func LoadConfig() (*Config, error) {
	// .env is a development convenience; absence is not an error.
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    parseLogLevel(getEnv("LOG_LEVEL", "info")),
		RedisURL:    getEnv("REDIS_URL", ""),
		TestService: TestServiceConfig{
			BaseURL: getEnv("TEST_SERVICE_URL", ""),
			Timeout: getDuration("TEST_SERVICE_TIMEOUT", 15*time.Second),
			APIKey:  getEnv("TEST_SERVICE_API_KEY", ""),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(getEnv("KAFKA_BROKERS", "")),
			Topic:   getEnv("KAFKA_TOPIC", "attempt-events"),
		},
		Casdoor: CasdoorConfig{
			Endpoint:     getEnv("CASDOOR_ENDPOINT", ""),
			ClientID:     getEnv("CASDOOR_CLIENT_ID", ""),
			ClientSecret: getEnv("CASDOOR_CLIENT_SECRET", ""),
			Cert:         getEnv("CASDOOR_CERT", ""),
			Organization: getEnv("CASDOOR_ORGANIZATION", ""),
			Application:  getEnv("CASDOOR_APPLICATION", ""),
		},
		AutosaveThreshold: getInt("AUTOSAVE_THRESHOLD", 2),
		FallbackDuration:  getDuration("FALLBACK_DURATION", 180*time.Minute),
		HandoffTTL:        getDuration("HANDOFF_TTL", 5*time.Minute),
	}

	if cfg.TestService.BaseURL == "" {
		return nil, fmt.Errorf("TEST_SERVICE_URL is required")
	}
	if cfg.AutosaveThreshold < 1 {
		return nil, fmt.Errorf("AUTOSAVE_THRESHOLD must be at least 1, got %d", cfg.AutosaveThreshold)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
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

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseLogLevel(v string) slog.Level {
	switch strings.ToLower(v) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
