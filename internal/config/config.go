// Package config handles environment variable loading for ports, database strings, etc.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration values for the application.
type Config struct {
	// Database connection string
	DatabaseURL string

	// HTTP server port for the controller
	HTTPPort int

	// Shared secret guarding the internal worker endpoints
	InternalSecret string

	// URL of the controller (e.g., "http://localhost:6161")
	ControllerURL string

	// URL of the pricing estimator the worker calls per report
	EstimatorURL string

	// OTLP collector endpoint for traces
	OTELEndpoint string

	// How long completed results stay servable from cache
	CacheTTL time.Duration

	// Submission rate limit, requests per second per client. 0 disables.
	RateLimit      float64
	RateLimitBurst int

	// Worker-specific configuration
	WorkerConcurrency       int
	WorkerPollInterval      time.Duration
	WorkerMaxBackoff        time.Duration
	WorkerHeartbeatInterval time.Duration
	WorkerStaleAfter        time.Duration
	WorkerMaxAttempts       int
}

// Load reads configuration from the environment. A .env file in the
// working directory is applied first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbUrl := os.Getenv("DATABASE_URL")
	if dbUrl == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	cfg := &Config{
		DatabaseURL:    dbUrl,
		InternalSecret: os.Getenv("INTERNAL_API_SECRET"),
		ControllerURL:  os.Getenv("CONTROLLER_URL"),
		EstimatorURL:   os.Getenv("ESTIMATOR_URL"),
	}
	if cfg.ControllerURL == "" {
		cfg.ControllerURL = "http://localhost:6161"
	}
	cfg.OTELEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if cfg.OTELEndpoint == "" {
		cfg.OTELEndpoint = "localhost:4317"
	}

	var err error
	if cfg.HTTPPort, err = intEnv("PORT", 6161); err != nil {
		return nil, err
	}
	if cfg.CacheTTL, err = durationEnv("CACHE_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.RateLimit, err = floatEnv("RATE_LIMIT_PER_SECOND", 1); err != nil {
		return nil, err
	}
	if cfg.RateLimitBurst, err = intEnv("RATE_LIMIT_BURST", 5); err != nil {
		return nil, err
	}
	if cfg.WorkerConcurrency, err = intEnv("WORKER_CONCURRENCY", 1); err != nil {
		return nil, err
	}
	if cfg.WorkerPollInterval, err = durationEnv("WORKER_POLL_INTERVAL", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.WorkerMaxBackoff, err = durationEnv("WORKER_MAX_BACKOFF", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.WorkerHeartbeatInterval, err = durationEnv("WORKER_HEARTBEAT_INTERVAL", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.WorkerStaleAfter, err = durationEnv("WORKER_STALE_AFTER", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.WorkerMaxAttempts, err = intEnv("WORKER_MAX_ATTEMPTS", 3); err != nil {
		return nil, err
	}

	return cfg, nil
}

func intEnv(name string, def int) (int, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return v, nil
}

func floatEnv(name string, def float64) (float64, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return v, nil
}

func durationEnv(name string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return v, nil
}
