// Package config manages application configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"ytingest/throttle"
)

// Config holds all configuration for the ingestion pipeline.
type Config struct {
	// APIKey is the YouTube Data API key. Required: the pipeline fails
	// fast without credentials.
	APIKey string `json:"api_key"`
	// DatabasePath is the SQLite database file path.
	DatabasePath string `json:"database_path"`

	// Languages overrides the transcript language-variant order.
	Languages []string `json:"languages,omitempty"`
	// MinTranscriptLength is the usable-transcript floor in characters.
	MinTranscriptLength int `json:"min_transcript_length"`

	// Throttle tunes extraction pacing and the circuit breaker.
	Throttle throttle.Config `json:"throttle"`

	// StatsMaxAge is how stale statistics may get before refresh.
	StatsMaxAge time.Duration `json:"stats_max_age"`
	// StatsChunkDelay is the pause between statistics API chunks.
	StatsChunkDelay time.Duration `json:"stats_chunk_delay"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		DatabasePath:        "ytingest.db",
		MinTranscriptLength: 50,
		Throttle:            throttle.DefaultConfig(),
		StatsMaxAge:         24 * time.Hour,
		StatsChunkDelay:     2 * time.Second,
	}
}

// Load builds configuration from defaults, an optional JSON file, and
// environment variable overrides, then validates.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	if err := cfg.loadFromFile(); err != nil {
		// Config file is optional
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFromFile attempts to load config from ytingest.json in the
// current directory or the user config directory.
func (c *Config) loadFromFile() error {
	paths := []string{
		"ytingest.json",
		filepath.Join(os.Getenv("HOME"), ".config", "ytingest", "ytingest.json"),
	}

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return err
		}

		if err := json.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		return nil
	}

	return os.ErrNotExist
}

// loadFromEnv overrides config with environment variables.
func (c *Config) loadFromEnv() {
	if v := os.Getenv("YTINGEST_API_KEY"); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv("YOUTUBE_API_KEY"); v != "" && c.APIKey == "" {
		c.APIKey = v
	}
	if v := os.Getenv("YTINGEST_DB_PATH"); v != "" {
		c.DatabasePath = v
	}
	if v := os.Getenv("YTINGEST_MIN_TRANSCRIPT_LENGTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MinTranscriptLength = n
		}
	}
	if v := os.Getenv("YTINGEST_BASE_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Throttle.BaseDelay = d
		}
	}
	if v := os.Getenv("YTINGEST_MAX_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Throttle.MaxDelay = d
		}
	}
	if v := os.Getenv("YTINGEST_FAILURE_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Throttle.FailureThreshold = n
		}
	}
	if v := os.Getenv("YTINGEST_COOLDOWN"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Throttle.Cooldown = d
		}
	}
	if v := os.Getenv("YTINGEST_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Throttle.BatchSize = n
		}
	}
	if v := os.Getenv("YTINGEST_STATS_MAX_AGE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.StatsMaxAge = d
		}
	}
}

// Validate checks that configuration values are valid and consistent.
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("database_path must not be empty")
	}
	if c.MinTranscriptLength < 0 {
		return fmt.Errorf("min_transcript_length must be non-negative")
	}
	if c.Throttle.FailureThreshold < 0 {
		return fmt.Errorf("failure_threshold must be non-negative")
	}
	if c.Throttle.MaxDelay > 0 && c.Throttle.BaseDelay > c.Throttle.MaxDelay {
		return fmt.Errorf("base_delay must be <= max_delay")
	}
	if c.StatsMaxAge < 0 {
		return fmt.Errorf("stats_max_age must be non-negative")
	}
	return nil
}
