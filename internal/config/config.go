// Package config provides configuration for the colindex tools.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	ierrors "github.com/arkilian/colindex/internal/errors"
)

// Config holds the full configuration.
type Config struct {
	// Logging configuration
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Index maintenance and warm-up policy
	Index IndexConfig `json:"index" yaml:"index"`

	// Source is the SQLite table records are loaded from
	Source SourceConfig `json:"source" yaml:"source"`

	// Metrics configuration
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error
	Level string `json:"level" yaml:"level"`

	// Format is text or json
	Format string `json:"format" yaml:"format"`
}

// IndexConfig controls index verification and the warm-up policy.
type IndexConfig struct {
	// VerifyOnMutate rebuilds and compares every index after each mutation.
	// Expensive; meant for tests and debugging.
	VerifyOnMutate bool `json:"verify_on_mutate" yaml:"verify_on_mutate"`

	// WarmProperties are indexed eagerly whenever the collection is replaced
	WarmProperties []string `json:"warm_properties" yaml:"warm_properties"`

	// CreateThreshold is the lookup count at which a property is warmed
	CreateThreshold int64 `json:"create_threshold" yaml:"create_threshold"`

	// DropThreshold is the lookup count below which an index is dropped
	DropThreshold int64 `json:"drop_threshold" yaml:"drop_threshold"`

	// MaxIndexes bounds the number of indexes the policy keeps
	MaxIndexes int `json:"max_indexes" yaml:"max_indexes"`

	// StatsWindow is how long lookup statistics are kept
	StatsWindow time.Duration `json:"stats_window" yaml:"stats_window"`
}

// SourceConfig describes the SQLite fixture.
type SourceConfig struct {
	// Path is the SQLite database file
	Path string `json:"path" yaml:"path"`

	// Table is the table to load
	Table string `json:"table" yaml:"table"`

	// Limit caps the number of rows loaded (0 = all)
	Limit int `json:"limit" yaml:"limit"`
}

// MetricsConfig controls Prometheus metrics.
type MetricsConfig struct {
	// Enabled registers index metrics on the default registry
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Index: IndexConfig{
			VerifyOnMutate:  false,
			CreateThreshold: 10,
			DropThreshold:   1,
			MaxIndexes:      8,
			StatsWindow:     time.Hour,
		},
		Source: SourceConfig{
			Table: "records",
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return ierrors.NewConfigError(fmt.Sprintf("invalid logging.level: %s (must be debug, info, warn, or error)", c.Logging.Level))
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return ierrors.NewConfigError(fmt.Sprintf("invalid logging.format: %s (must be text or json)", c.Logging.Format))
	}

	if c.Index.CreateThreshold < 1 {
		return ierrors.NewConfigError(fmt.Sprintf("index.create_threshold must be at least 1, got %d", c.Index.CreateThreshold))
	}

	if c.Index.DropThreshold < 0 || c.Index.DropThreshold > c.Index.CreateThreshold {
		return ierrors.NewConfigError(fmt.Sprintf("index.drop_threshold must be between 0 and create_threshold, got %d", c.Index.DropThreshold))
	}

	if c.Index.MaxIndexes < 1 {
		return ierrors.NewConfigError(fmt.Sprintf("index.max_indexes must be at least 1, got %d", c.Index.MaxIndexes))
	}

	if c.Index.StatsWindow <= 0 {
		return ierrors.NewConfigError(fmt.Sprintf("index.stats_window must be positive, got %s", c.Index.StatsWindow))
	}

	for _, p := range c.Index.WarmProperties {
		if p == "" {
			return ierrors.NewConfigError("index.warm_properties must not contain empty names")
		}
	}

	if c.Source.Limit < 0 {
		return ierrors.NewConfigError(fmt.Sprintf("source.limit must not be negative, got %d", c.Source.Limit))
	}

	return nil
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the COLINDEX_ prefix. A malformed number or
// duration is reported as a config error.
func LoadFromEnv(cfg *Config) error {
	if v := os.Getenv("COLINDEX_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("COLINDEX_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	// Index configuration
	if v := os.Getenv("COLINDEX_VERIFY_ON_MUTATE"); v != "" {
		cfg.Index.VerifyOnMutate = v == "true" || v == "1"
	}
	if v := os.Getenv("COLINDEX_WARM_PROPERTIES"); v != "" {
		cfg.Index.WarmProperties = strings.Split(v, ",")
	}
	if err := envInt64("COLINDEX_CREATE_THRESHOLD", &cfg.Index.CreateThreshold); err != nil {
		return err
	}
	if err := envInt64("COLINDEX_DROP_THRESHOLD", &cfg.Index.DropThreshold); err != nil {
		return err
	}
	if err := envInt("COLINDEX_MAX_INDEXES", &cfg.Index.MaxIndexes); err != nil {
		return err
	}
	if v := os.Getenv("COLINDEX_STATS_WINDOW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return ierrors.NewConfigError(fmt.Sprintf("invalid COLINDEX_STATS_WINDOW %q: %v", v, err))
		}
		cfg.Index.StatsWindow = d
	}

	// Source configuration
	if v := os.Getenv("COLINDEX_SOURCE_PATH"); v != "" {
		cfg.Source.Path = v
	}
	if v := os.Getenv("COLINDEX_SOURCE_TABLE"); v != "" {
		cfg.Source.Table = v
	}
	if err := envInt("COLINDEX_SOURCE_LIMIT", &cfg.Source.Limit); err != nil {
		return err
	}

	if v := os.Getenv("COLINDEX_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = v == "true" || v == "1"
	}
	return nil
}

func envInt(name string, dst *int) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return ierrors.NewConfigError(fmt.Sprintf("invalid %s %q: must be an integer", name, v))
	}
	*dst = n
	return nil
}

func envInt64(name string, dst *int64) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return ierrors.NewConfigError(fmt.Sprintf("invalid %s %q: must be an integer", name, v))
	}
	*dst = n
	return nil
}
