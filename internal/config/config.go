// Package config loads the ordinal configuration from YAML and the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jacentio/ordinal/store"
)

// Backends
const (
	BackendSQLite   = "sqlite"
	BackendDynamoDB = "dynamodb"
)

// Config holds the application configuration
type Config struct {
	Backend  string         `yaml:"backend"` // sqlite, dynamodb
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	DynamoDB DynamoDBConfig `yaml:"dynamodb"`
	NATS     NATSConfig     `yaml:"nats"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// SQLiteConfig holds the SQLite backend settings
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// DynamoDBConfig holds the DynamoDB backend settings
type DynamoDBConfig struct {
	Table        string        `yaml:"table"`
	Region       string        `yaml:"region"`
	Endpoint     string        `yaml:"endpoint"` // optional, e.g. DynamoDB Local
	MaxRetries   int           `yaml:"max_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
}

// NATSConfig holds change event publishing settings. Empty URL disables publishing.
type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
	StreamName    string `yaml:"stream_name"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Backend: BackendSQLite,
		SQLite: SQLiteConfig{
			Path: "ordinal.db",
		},
		DynamoDB: DynamoDBConfig{
			Table:        store.DefaultConfig().Table,
			MaxRetries:   store.DefaultConfig().MaxRetries,
			RetryBackoff: store.DefaultConfig().RetryBackoff,
		},
		NATS: NATSConfig{
			SubjectPrefix: "ORDINAL",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from an optional YAML file and environment variables.
// Order: defaults -> file -> ApplyEnvOverrides -> Validate
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return cfg, nil
}

// ApplyEnvOverrides applies environment variable overrides.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("ORDINAL_BACKEND"); v != "" {
		c.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("ORDINAL_SQLITE_PATH"); v != "" {
		c.SQLite.Path = v
	}
	if v := os.Getenv("ORDINAL_DYNAMODB_TABLE"); v != "" {
		c.DynamoDB.Table = v
	}
	if v := os.Getenv("ORDINAL_DYNAMODB_ENDPOINT"); v != "" {
		c.DynamoDB.Endpoint = v
	}
	if v := os.Getenv("ORDINAL_NATS_URL"); v != "" {
		c.NATS.URL = v
	}
	if v := os.Getenv("ORDINAL_LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
}

// Validate returns an error if the configuration is invalid.
func (c *Config) Validate() error {
	var errs []error

	switch c.Backend {
	case BackendSQLite:
		if c.SQLite.Path == "" {
			errs = append(errs, errors.New("sqlite.path is required"))
		}
	case BackendDynamoDB:
		if c.DynamoDB.Table == "" {
			errs = append(errs, errors.New("dynamodb.table is required"))
		}
		if c.DynamoDB.MaxRetries < 0 || c.DynamoDB.MaxRetries > 10 {
			errs = append(errs, fmt.Errorf("dynamodb.max_retries must be between 0 and 10, got %d", c.DynamoDB.MaxRetries))
		}
		if c.DynamoDB.RetryBackoff < 0 {
			errs = append(errs, fmt.Errorf("dynamodb.retry_backoff must not be negative, got %s", c.DynamoDB.RetryBackoff))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown backend %q (want %s or %s)", c.Backend, BackendSQLite, BackendDynamoDB))
	}

	if c.NATS.URL != "" && c.NATS.SubjectPrefix == "" {
		errs = append(errs, errors.New("nats.subject_prefix is required when nats.url is set"))
	}

	if _, err := parseLevel(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown logging.format %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}

// Level returns the configured slog level.
func (c *Config) Level() slog.Level {
	level, _ := parseLevel(c.Logging.Level)
	return level
}

// StoreConfig returns the DynamoDB store configuration.
func (c *Config) StoreConfig() store.Config {
	return store.Config{
		Table:        c.DynamoDB.Table,
		MaxRetries:   c.DynamoDB.MaxRetries,
		RetryBackoff: c.DynamoDB.RetryBackoff,
	}
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown logging.level %q", s)
	}
	return level, nil
}
