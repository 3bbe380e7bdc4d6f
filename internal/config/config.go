package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	RedisURL           string
	MenuBaseURL        string
	OrdersBaseURL      string
	GeocodeBaseURL     string
	CORSAllowedOrigins []string

	// Business origin used for delivery distance calculation.
	OriginLat float64
	OriginLon float64

	DraftTTL       time.Duration
	MenuCacheTTL   time.Duration
	GeocodeTimeout time.Duration
	SubmitTimeout  time.Duration

	// QuoteRateLimit is a ulule/limiter formatted rate, e.g. "10-M".
	QuoteRateLimit string
}

// Default business origin: the flagship branch in Boac, Marinduque.
const (
	defaultOriginLat = 13.475246207507663
	defaultOriginLon = 121.85945810514359
)

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		RedisURL:           k.String("REDIS_URL"),
		MenuBaseURL:        strings.TrimRight(k.String("MENU_BASE_URL"), "/"),
		OrdersBaseURL:      strings.TrimRight(k.String("ORDERS_BASE_URL"), "/"),
		GeocodeBaseURL:     k.String("GEOCODE_BASE_URL"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		OriginLat:          parseFloat(k.String("ORIGIN_LAT"), defaultOriginLat),
		OriginLon:          parseFloat(k.String("ORIGIN_LON"), defaultOriginLon),
		DraftTTL:           parseDuration(k.String("DRAFT_TTL"), "12h"),
		MenuCacheTTL:       parseDuration(k.String("MENU_CACHE_TTL"), "1m"),
		GeocodeTimeout:     parseDuration(k.String("GEOCODE_TIMEOUT"), "10s"),
		SubmitTimeout:      parseDuration(k.String("SUBMIT_TIMEOUT"), "15s"),
		QuoteRateLimit:     valueOrDefault(k.String("QUOTE_RATE_LIMIT"), "30-M"),
	}

	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.MenuBaseURL == "" {
		return nil, errors.New("MENU_BASE_URL is required")
	}
	if cfg.OrdersBaseURL == "" {
		return nil, errors.New("ORDERS_BASE_URL is required")
	}
	if cfg.GeocodeBaseURL == "" {
		return nil, errors.New("GEOCODE_BASE_URL is required")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseFloat(value string, fallback float64) float64 {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
