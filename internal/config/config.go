// Package config provides the configuration of the roomsql engine and CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"

	engerrors "github.com/arkilian/roomsql/internal/errors"
)

// Config holds the engine configuration. File values are overridden by
// ROOMSQL_* environment variables.
type Config struct {
	// Declarations lists declaration files, directories or globs
	Declarations DeclarationsConfig `json:"declarations" yaml:"declarations"`

	// Logging configuration
	Log LogConfig `json:"log" yaml:"log"`

	// Statement parsing
	Parser ParserConfig `json:"parser" yaml:"parser"`

	// Reference resolution
	Resolver ResolverConfig `json:"resolver" yaml:"resolver"`

	// Literal inlining
	Inline InlineConfig `json:"inline" yaml:"inline"`

	// Statement execution
	Exec ExecConfig `json:"exec" yaml:"exec"`

	// Schema export
	Export ExportConfig `json:"export" yaml:"export"`

	// Automatic index management
	Index IndexConfig `json:"index" yaml:"index"`
}

// DeclarationsConfig holds where declarations are read from.
type DeclarationsConfig struct {
	Paths []string `json:"paths" yaml:"paths" env:"ROOMSQL_DECLARATIONS" env-separator:","`
}

// LogConfig holds logger configuration.
type LogConfig struct {
	// Level is one of debug, info, warn, error
	Level string `json:"level" yaml:"level" env:"ROOMSQL_LOG_LEVEL"`

	// Format is console or json
	Format string `json:"format" yaml:"format" env:"ROOMSQL_LOG_FORMAT"`
}

// ParserConfig holds statement parsing options.
type ParserConfig struct {
	// CacheBytes bounds the statement text whose parse trees are cached
	CacheBytes int64 `json:"cache_bytes" yaml:"cache_bytes" env:"ROOMSQL_PARSER_CACHE_BYTES"`
}

// ResolverConfig holds reference resolution options.
type ResolverConfig struct {
	// CaseInsensitiveTables folds case when matching table names
	CaseInsensitiveTables bool `json:"case_insensitive_tables" yaml:"case_insensitive_tables" env:"ROOMSQL_RESOLVER_CASE_INSENSITIVE_TABLES"`

	// Suggestions attaches "did you mean" names to unresolved tables
	Suggestions bool `json:"suggestions" yaml:"suggestions" env:"ROOMSQL_RESOLVER_SUGGESTIONS"`
}

// InlineConfig holds literal inlining options.
type InlineConfig struct {
	// Audit scans inlined string values for SQL injection patterns
	Audit bool `json:"audit" yaml:"audit" env:"ROOMSQL_INLINE_AUDIT"`
}

// ExecConfig holds statement execution configuration.
type ExecConfig struct {
	// DSN is the SQLite data source name
	DSN string `json:"dsn" yaml:"dsn" env:"ROOMSQL_EXEC_DSN"`
}

// ExportConfig holds schema export configuration.
type ExportConfig struct {
	// Type is the storage type: local, s3
	Type string `json:"type" yaml:"type" env:"ROOMSQL_EXPORT_TYPE"`

	// Path is the local storage path (for local type)
	Path string `json:"path" yaml:"path" env:"ROOMSQL_EXPORT_PATH"`

	// Prefix is prepended to every object key
	Prefix string `json:"prefix" yaml:"prefix" env:"ROOMSQL_EXPORT_PREFIX"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	// Bucket is the S3 bucket name
	Bucket string `json:"bucket" yaml:"bucket" env:"ROOMSQL_S3_BUCKET"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region" env:"ROOMSQL_S3_REGION"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint" env:"ROOMSQL_S3_ENDPOINT"`

	// UsePathStyle addresses buckets by path, as MinIO and LocalStack need
	UsePathStyle bool `json:"use_path_style" yaml:"use_path_style" env:"ROOMSQL_S3_USE_PATH_STYLE"`
}

// IndexConfig holds automatic index management configuration.
type IndexConfig struct {
	// Enabled runs the index policy in the background
	Enabled bool `json:"enabled" yaml:"enabled" env:"ROOMSQL_INDEX_ENABLED"`

	// CreateThreshold is the predicate count at which a column gets an index
	CreateThreshold int64 `json:"create_threshold" yaml:"create_threshold" env:"ROOMSQL_INDEX_CREATE_THRESHOLD"`

	// DropThreshold is the predicate count below which an index is dropped
	DropThreshold int64 `json:"drop_threshold" yaml:"drop_threshold" env:"ROOMSQL_INDEX_DROP_THRESHOLD"`

	// CheckInterval is the interval between policy evaluations
	CheckInterval time.Duration `json:"check_interval" yaml:"check_interval" env:"ROOMSQL_INDEX_CHECK_INTERVAL"`

	// MaxIndexes bounds the number of managed indices
	MaxIndexes int `json:"max_indexes" yaml:"max_indexes" env:"ROOMSQL_INDEX_MAX_INDEXES"`
}

// DefaultConfig returns the default configuration for local use.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Parser: ParserConfig{
			CacheBytes: 1 << 20,
		},
		Resolver: ResolverConfig{
			Suggestions: true,
		},
		Inline: InlineConfig{
			Audit: true,
		},
		Exec: ExecConfig{
			DSN: ":memory:",
		},
		Export: ExportConfig{
			Type:   "local",
			Prefix: "schemas/",
		},
		Index: IndexConfig{
			CreateThreshold: 50,
			DropThreshold:   5,
			CheckInterval:   5 * time.Minute,
			MaxIndexes:      8,
		},
	}
}

// Resolve fills in settings derived from others.
func (c *Config) Resolve() {
	if c.Export.Type == "local" && c.Export.Path == "" {
		c.Export.Path = filepath.Join(".", "data", "roomsql")
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return invalid("invalid log level: %s (must be debug, info, warn or error)", c.Log.Level)
	}

	if c.Log.Format != "console" && c.Log.Format != "json" {
		return invalid("invalid log format: %s (must be console or json)", c.Log.Format)
	}

	if c.Parser.CacheBytes < 0 {
		return invalid("parser.cache_bytes must not be negative")
	}

	if c.Exec.DSN == "" {
		return invalid("exec.dsn is required")
	}

	if c.Export.Type != "local" && c.Export.Type != "s3" {
		return invalid("invalid export type: %s (must be local or s3)", c.Export.Type)
	}

	if c.Export.Type == "local" && c.Export.Path == "" {
		return invalid("export.path is required when export type is local")
	}

	if c.Export.Type == "s3" && c.Export.S3.Bucket == "" {
		return invalid("export.s3.bucket is required when export type is s3")
	}

	if c.Index.DropThreshold > c.Index.CreateThreshold {
		return invalid("index.drop_threshold (%d) must not exceed index.create_threshold (%d)",
			c.Index.DropThreshold, c.Index.CreateThreshold)
	}

	if c.Index.MaxIndexes < 0 {
		return invalid("index.max_indexes must not be negative")
	}

	return nil
}

func invalid(format string, args ...interface{}) error {
	return engerrors.NewValidationError(engerrors.CodeInvalidConfig, fmt.Sprintf(format, args...))
}

// LoadFromFile loads configuration from a YAML or JSON file on top of the
// defaults.
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

// LoadFromEnv overrides cfg with the ROOMSQL_* environment variables that are
// set. Unset variables leave the current values alone.
func LoadFromEnv(cfg *Config) error {
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}
	return nil
}

// Load reads the file at path (if any), applies the environment, resolves
// derived settings and validates the result.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		var err error
		if cfg, err = LoadFromFile(path); err != nil {
			return nil, err
		}
	}
	if err := LoadFromEnv(cfg); err != nil {
		return nil, err
	}
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
