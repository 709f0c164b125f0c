// Package main implements the colindex binary.
// It loads a SQLite table into a record set and answers value lookups
// through the collection index.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/arkilian/colindex/internal/collection"
	"github.com/arkilian/colindex/internal/config"
	"github.com/arkilian/colindex/internal/indexer"
	"github.com/arkilian/colindex/internal/logging"
	"github.com/arkilian/colindex/internal/observability"
	"github.com/arkilian/colindex/internal/source"
)

var (
	version = "dev"
	commit  = "unknown"
)

// lookupResult is the JSON document printed for a lookup.
type lookupResult struct {
	Property  string `json:"property"`
	Value     any    `json:"value"`
	Positions []int  `json:"positions"`
	First     int    `json:"first"`
	Records   int    `json:"records"`
	Verified  bool   `json:"verified,omitempty"`
}

func main() {
	var (
		configFile  string
		dbPath      string
		table       string
		limit       int
		property    string
		value       string
		valueType   string
		verify      bool
		logLevel    string
		showVersion bool
		showHelp    bool
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&dbPath, "db", "", "Path to the SQLite database")
	flag.StringVar(&table, "table", "", "Table to load")
	flag.IntVar(&limit, "limit", -1, "Maximum number of rows to load (0 for all)")
	flag.StringVar(&property, "property", "", "Property to look up")
	flag.StringVar(&value, "value", "", "Value to look up")
	flag.StringVar(&valueType, "type", "string", "Value type: string, int, float, bool, uuid, null")
	flag.BoolVar(&verify, "verify", false, "Verify every index against the records")
	flag.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showHelp, "help", false, "Show help message")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "colindex - value lookups over SQLite tables\n\n")
		fmt.Fprintf(os.Stderr, "Usage: colindex [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  colindex -db tasks.sqlite -table tasks -property status -value open\n")
		fmt.Fprintf(os.Stderr, "  colindex -db tasks.sqlite -table tasks -property priority -value 3 -type int\n")
		fmt.Fprintf(os.Stderr, "  colindex -config /etc/colindex/config.yaml -property @id -value <uuid> -type uuid -verify\n")
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  COLINDEX_LOG_LEVEL        Log level\n")
		fmt.Fprintf(os.Stderr, "  COLINDEX_SOURCE_PATH      SQLite database path\n")
		fmt.Fprintf(os.Stderr, "  COLINDEX_SOURCE_TABLE     Table to load\n")
		fmt.Fprintf(os.Stderr, "  COLINDEX_WARM_PROPERTIES  Comma-separated properties indexed on load\n")
		fmt.Fprintf(os.Stderr, "  COLINDEX_METRICS_ENABLED  Print index metrics to stderr on exit\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("colindex version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	cfg, err := loadConfig(configFile, dbPath, table, limit, logLevel, verify)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	if err := run(context.Background(), os.Stdout, cfg, property, value, valueType, verify); err != nil {
		slog.Error("colindex failed", "error", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration from file, environment, and command line flags.
func loadConfig(configFile, dbPath, table string, limit int, logLevel string, verify bool) (*config.Config, error) {
	var cfg *config.Config
	var err error

	if configFile != "" {
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	} else {
		cfg = config.DefaultConfig()
	}

	if err := config.LoadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	// Command line flags take priority.
	if dbPath != "" {
		cfg.Source.Path = dbPath
	}
	if table != "" {
		cfg.Source.Table = table
	}
	if limit >= 0 {
		cfg.Source.Limit = limit
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if verify {
		cfg.Index.VerifyOnMutate = true
	}

	if cfg.Source.Path == "" {
		return nil, fmt.Errorf("no database given (use -db or source.path)")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(ctx context.Context, out io.Writer, cfg *config.Config, property, raw, valueType string, verify bool) error {
	logger := logging.WithComponent("colindex")

	value, err := parseValue(raw, valueType)
	if err != nil {
		return err
	}

	stats := observability.NewLookupStats(cfg.Index.StatsWindow)
	observers := observability.Multi{stats}
	var registry *prometheus.Registry
	if cfg.Metrics.Enabled {
		registry = prometheus.NewRegistry()
		observers = append(observers, observability.NewMetrics(registry))
	}

	start := time.Now()
	records, err := source.LoadSQLite(ctx, cfg.Source.Path, cfg.Source.Table, cfg.Source.Limit)
	if err != nil {
		return err
	}
	logger.Info("records loaded",
		"path", cfg.Source.Path,
		"table", cfg.Source.Table,
		"records", len(records),
		"elapsed", time.Since(start))

	rs := collection.New(nil,
		collection.WithPolicy(indexer.NewPolicy(stats, cfg.Index, logger)),
		collection.WithVerifyOnMutate(cfg.Index.VerifyOnMutate),
		collection.WithObserver(observers),
		collection.WithLogger(logger),
	)
	if err := rs.Assign(records); err != nil {
		return err
	}

	result := lookupResult{Records: rs.Count(), First: indexer.NotFound, Positions: []int{}}
	if property != "" {
		result.Property = property
		result.Value = value
		if result.Positions, err = rs.IndicesOf(property, value); err != nil {
			return err
		}
		if len(result.Positions) > 0 {
			result.First = result.Positions[0]
		}
	}

	if verify {
		if err := rs.Verify(); err != nil {
			return err
		}
		result.Verified = true
		logger.Info("indexes verified", "properties", rs.IndexedProperties())
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}

	if registry != nil {
		return writeMetrics(registry)
	}
	return nil
}

// parseValue converts the -value flag into the type stored in SQLite rows.
// Integers are int64 to match what the driver returns; uuid matches the
// record IDs indexed under @id.
func parseValue(raw, valueType string) (any, error) {
	switch valueType {
	case "string":
		return raw, nil
	case "int":
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid int value %q: %w", raw, err)
		}
		return v, nil
	case "float":
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid float value %q: %w", raw, err)
		}
		return v, nil
	case "bool":
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid bool value %q: %w", raw, err)
		}
		return v, nil
	case "uuid":
		v, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid uuid value %q: %w", raw, err)
		}
		return v, nil
	case "null":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown value type: %s", valueType)
	}
}

func writeMetrics(registry *prometheus.Registry) error {
	families, err := registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(os.Stderr, mf); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}
	return nil
}
