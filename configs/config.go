package configs

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	API     APIConfig
	Cache   CacheConfig
	Retry   RetryConfig
	Search  SearchConfig
	Polling PollingConfig
	Upload  UploadConfig
	Log     LogConfig
}

type APIConfig struct {
	BaseURL string
	// Timeout applies to the underlying HTTP client, not the runtime itself.
	Timeout  time.Duration
	TokenEnv string
}

type CacheConfig struct {
	MaxEntries int
	DefaultTTL time.Duration
}

type RetryConfig struct {
	Count int
	Delay time.Duration
}

type SearchConfig struct {
	Debounce time.Duration
}

type PollingConfig struct {
	Interval time.Duration
}

type UploadConfig struct {
	MaxSize      int64
	AllowedTypes []string
	Endpoint     string
	FieldName    string
}

type LogConfig struct {
	Level  string
	Format string // json or text
}

func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		API: APIConfig{
			BaseURL:  getEnv("API_BASE_URL", "http://localhost:8080/api"),
			Timeout:  getDurationEnv("API_TIMEOUT", 30*time.Second),
			TokenEnv: getEnv("API_TOKEN_ENV", "API_TOKEN"),
		},
		Cache: CacheConfig{
			MaxEntries: getIntEnv("CACHE_MAX_ENTRIES", 100),
			DefaultTTL: getDurationEnv("CACHE_DEFAULT_TTL", time.Minute),
		},
		Retry: RetryConfig{
			Count: getIntEnv("RETRY_COUNT", 0),
			Delay: getDurationEnv("RETRY_DELAY", time.Second),
		},
		Search: SearchConfig{
			Debounce: getDurationEnv("SEARCH_DEBOUNCE", 300*time.Millisecond),
		},
		Polling: PollingConfig{
			Interval: getDurationEnv("POLLING_INTERVAL", 30*time.Second),
		},
		Upload: UploadConfig{
			MaxSize:      getInt64Env("UPLOAD_MAX_SIZE", 50*1024*1024),
			AllowedTypes: getSliceEnv("UPLOAD_ALLOWED_TYPES", nil),
			Endpoint:     getEnv("UPLOAD_ENDPOINT", "/uploads"),
			FieldName:    getEnv("UPLOAD_FIELD_NAME", "file"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if cfg.Cache.MaxEntries <= 0 {
		return nil, fmt.Errorf("CACHE_MAX_ENTRIES must be positive, got %d", cfg.Cache.MaxEntries)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getInt64Env(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
