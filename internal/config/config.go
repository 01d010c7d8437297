// Package config defines service configuration and its defaults.
package config

import (
	"runtime"
)

// Store drivers.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// ReadingQueueSize bounds the in-memory reading queue.
	ReadingQueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of reading workers. It also bounds the
	// parallelism of population recomputes.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets the size of the reading id cache.
	DedupeSize int `koanf:"dedupe_size"`

	// MatchCount is the number of fated matches kept per profile.
	MatchCount int `koanf:"match_count"`

	// MaxRankingLimit caps GET /couples/ranking?limit.
	MaxRankingLimit int `koanf:"max_ranking_limit"`

	// StoreDriver selects profile and match storage: memory or postgres.
	StoreDriver string `koanf:"store_driver"`

	// DatabaseURL is the Postgres connection string, required for the
	// postgres driver.
	DatabaseURL string `koanf:"database_url"`

	// SensorLatencyMinMS and SensorLatencyMaxMS bound the simulated sensor
	// read time.
	SensorLatencyMinMS int `koanf:"sensor_latency_min_ms"`
	SensorLatencyMaxMS int `koanf:"sensor_latency_max_ms"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		LogFormat:          LogFormatText,
		Addr:               ":9080",
		ReadingQueueSize:   10_000,
		WorkerCount:        runtime.NumCPU() * 2,
		DedupeSize:         100_000,
		MatchCount:         2,
		MaxRankingLimit:    100,
		StoreDriver:        StoreMemory,
		SensorLatencyMinMS: 20,
		SensorLatencyMaxMS: 60,
	}
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return invalid("addr must not be empty")
	case c.ReadingQueueSize <= 0:
		return invalid("queue_size must be positive")
	case c.WorkerCount <= 0:
		return invalid("worker_count must be positive")
	case c.DedupeSize <= 0:
		return invalid("dedupe_size must be positive")
	case c.MatchCount <= 0:
		return invalid("match_count must be positive")
	case c.MaxRankingLimit <= 0:
		return invalid("max_ranking_limit must be positive")
	case c.SensorLatencyMinMS < 0 || c.SensorLatencyMaxMS < c.SensorLatencyMinMS:
		return invalid("sensor latency bounds must satisfy 0 <= min <= max")
	}

	switch c.LogFormat {
	case LogFormatText, LogFormatJSON:
	default:
		return invalid("log_format must be text or json")
	}

	switch c.StoreDriver {
	case StoreMemory:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return invalid("database_url is required for the postgres store")
		}
	default:
		return invalid("store_driver must be memory or postgres")
	}
	return nil
}
