package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fabianodin23-lab/senapred-monitor/internal/domain"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	IndexURL string
	BaseURL  string

	PollInterval time.Duration
	RunOnce      bool

	StatePath    string
	HistoryLimit int

	// Retention/filter policy applied to each batch before reconciliation.
	MaxAgeDays     int
	CategoryFilter []domain.Category
	RegionFilter   []string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	FetchTimeout time.Duration
	FetchRetries int

	// Kafka change-event publishing configuration.
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	pollInterval, err := parseDuration("POLL_INTERVAL", "5m")
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	fetchTimeout, err := parseDuration("FETCH_TIMEOUT", "20s")
	if err != nil {
		return nil, err
	}

	historyLimit, err := parseInt("CHANGE_HISTORY_LIMIT", 100)
	if err != nil {
		return nil, err
	}
	maxAgeDays, err := parseInt("MAX_AGE_DAYS", 14)
	if err != nil {
		return nil, err
	}
	fetchRetries, err := parseInt("FETCH_RETRIES", 2)
	if err != nil {
		return nil, err
	}

	categories, err := parseCategories(os.Getenv("CATEGORY_FILTER"))
	if err != nil {
		return nil, err
	}

	kafkaBrokers := splitCSV(os.Getenv("KAFKA_BROKERS"))
	kafkaEnabled := len(kafkaBrokers) > 0
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	cfg := &Config{
		IndexURL:        envOrDefault("SENAPRED_INDEX_URL", "https://senapred.cl/alertas/"),
		BaseURL:         envOrDefault("SENAPRED_BASE_URL", "https://senapred.cl"),
		PollInterval:    pollInterval,
		RunOnce:         os.Getenv("RUN_ONCE") == "true",
		StatePath:       envOrDefault("STATE_PATH", "alert-state.json"),
		HistoryLimit:    historyLimit,
		MaxAgeDays:      maxAgeDays,
		CategoryFilter:  categories,
		RegionFilter:    splitCSV(os.Getenv("REGION_FILTER")),
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		FetchTimeout:    fetchTimeout,
		FetchRetries:    fetchRetries,
		KafkaEnabled:    kafkaEnabled,
		KafkaBrokers:    kafkaBrokers,
		KafkaTopic:      envOrDefault("KAFKA_TOPIC", "alert-change-events"),
	}

	if cfg.PollInterval <= 0 {
		return nil, errors.New("POLL_INTERVAL must be positive")
	}
	if cfg.HistoryLimit <= 0 {
		return nil, errors.New("CHANGE_HISTORY_LIMIT must be positive")
	}
	if cfg.MaxAgeDays < 0 {
		return nil, errors.New("MAX_AGE_DAYS must not be negative")
	}
	if cfg.FetchRetries < 0 {
		return nil, errors.New("FETCH_RETRIES must not be negative")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func parseInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func parseCategories(s string) ([]domain.Category, error) {
	var out []domain.Category
	for _, v := range splitCSV(s) {
		c := domain.Category(v)
		switch c {
		case domain.CategoryHigh, domain.CategoryMedium, domain.CategoryEarly:
			out = append(out, c)
		default:
			return nil, fmt.Errorf("invalid CATEGORY_FILTER value %q", v)
		}
	}
	return out, nil
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
