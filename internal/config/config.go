package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	BackendBaseURL string
	BackendToken   string
	HTTPAddr       string
	LogLevel       string
	LogFormat      string

	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration
	RequestsPerSec  float64

	PageSize      int
	PageFields    string
	PageCacheSize int // 0 disables the page cache

	// Kafka export configuration.
	KafkaBrokers   []string
	KafkaSinkTopic string
	ExportEnabled  bool
}

// The backend caps limit at 2000; requesting more silently truncates, so the
// config rejects it instead.
const maxPageSize = 2000

var validFields = map[string]bool{"minimal": true, "basic": true, "full": true}

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := durationOrDefault("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	requestTimeout, err := durationOrDefault("REQUEST_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	pageSize, err := intOrDefault("PAGE_SIZE", 500)
	if err != nil {
		return nil, err
	}
	cacheSize, err := intOrDefault("PAGE_CACHE_SIZE", 0)
	if err != nil {
		return nil, err
	}
	rps, err := floatOrDefault("REQUESTS_PER_SEC", 10)
	if err != nil {
		return nil, err
	}

	exportEnabled := false
	if v := os.Getenv("KAFKA_EXPORT_ENABLED"); v != "" {
		exportEnabled = v == "true"
	}

	cfg := &Config{
		BackendBaseURL:  envOrDefault("BACKEND_BASE_URL", "http://localhost:8000/api"),
		BackendToken:    os.Getenv("BACKEND_TOKEN"),
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		RequestTimeout:  requestTimeout,
		RequestsPerSec:  rps,
		PageSize:        pageSize,
		PageFields:      envOrDefault("PAGE_FIELDS", "basic"),
		PageCacheSize:   cacheSize,
		KafkaBrokers:    parseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaSinkTopic:  envOrDefault("KAFKA_SINK_TOPIC", "classified-sample-points"),
		ExportEnabled:   exportEnabled,
	}

	if cfg.BackendBaseURL == "" {
		return nil, errors.New("BACKEND_BASE_URL is required")
	}
	if cfg.PageSize <= 0 || cfg.PageSize > maxPageSize {
		return nil, fmt.Errorf("PAGE_SIZE must be between 1 and %d", maxPageSize)
	}
	if !validFields[cfg.PageFields] {
		return nil, fmt.Errorf("PAGE_FIELDS must be minimal, basic, or full, got %q", cfg.PageFields)
	}
	if cfg.PageCacheSize < 0 {
		return nil, errors.New("PAGE_CACHE_SIZE must not be negative")
	}
	if cfg.ExportEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_EXPORT_ENABLED is true but KAFKA_BROKERS is not set")
	}
	if cfg.ExportEnabled && cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_EXPORT_ENABLED is true but KAFKA_SINK_TOPIC is empty")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationOrDefault(key string, fallback time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return d, nil
}

func intOrDefault(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return n, nil
}

func floatOrDefault(key string, fallback float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return f, nil
}

func parseBrokers(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			brokers = append(brokers, p)
		}
	}
	return brokers
}
