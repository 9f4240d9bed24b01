package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	DatabaseURL string

	// CommerceBaseURL and CatalogBaseURL point at the external order and
	// sellable/component services.
	CommerceBaseURL string
	CatalogBaseURL  string

	// DefaultHorizonDays bounds expansion when a caller does not pass an
	// explicit horizon.
	DefaultHorizonDays int

	// Worker sweep intervals.
	GenerateInterval    time.Duration
	MaterializeInterval time.Duration

	// MaterializeLead is how far before its planned start an occurrence
	// becomes due for order materialization.
	MaterializeLead time.Duration

	LogLevel  string
	LogFormat string

	// DevMode flips the logging defaults to debug/console; explicit
	// LOG_LEVEL / LOG_FORMAT values still win.
	DevMode bool
}

func FromEnv() (Config, error) {
	devMode := strings.TrimSpace(os.Getenv("DEV_MODE")) == "1"
	logLevel, logFormat := "info", "json"
	if devMode {
		logLevel, logFormat = "debug", "console"
	}
	cfg := Config{
		DatabaseURL:     strings.TrimSpace(os.Getenv("DATABASE_URL")),
		CommerceBaseURL: envDefault("COMMERCE_BASE_URL", "http://localhost:8091"),
		CatalogBaseURL:  envDefault("CATALOG_BASE_URL", "http://localhost:8092"),
		LogLevel:        envDefault("LOG_LEVEL", logLevel),
		LogFormat:       envDefault("LOG_FORMAT", logFormat),
		DevMode:         devMode,
	}
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}

	var err error
	if cfg.DefaultHorizonDays, err = envInt("DEFAULT_HORIZON_DAYS", 60); err != nil {
		return cfg, err
	}
	if cfg.GenerateInterval, err = envDuration("GENERATE_INTERVAL", 5*time.Minute); err != nil {
		return cfg, err
	}
	if cfg.MaterializeInterval, err = envDuration("MATERIALIZE_INTERVAL", time.Minute); err != nil {
		return cfg, err
	}
	if cfg.MaterializeLead, err = envDuration("MATERIALIZE_LEAD", 24*time.Hour); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func envDefault(k, d string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return d
	}
	return v
}

func envInt(k string, d int) (int, error) {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return d, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", k, err)
	}
	return n, nil
}

func envDuration(k string, d time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return d, nil
	}
	dur, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration (e.g. 5m): %w", k, err)
	}
	return dur, nil
}
