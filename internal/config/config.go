// Package config loads kittycore settings from an optional YAML file with
// environment variable overrides.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"kittycore/internal/logging"
)

// Storage drivers.
const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
	StorageRedis    = "redis"
)

// Archive drivers.
const (
	ArchiveFS     = "fs"
	ArchiveMemory = "memory"
	ArchiveS3     = "s3"
)

// Config is the full kittycore configuration.
type Config struct {
	Storage   Storage   `yaml:"storage"`
	Log       Log       `yaml:"log"`
	Archive   Archive   `yaml:"archive"`
	Telemetry Telemetry `yaml:"telemetry"`
	// Seed is the hex encoded entropy seed used when none is given on the command line.
	Seed string `yaml:"seed" env:"KITTYCORE_SEED"`
}

// Storage selects and configures the registry backend.
type Storage struct {
	Driver      string `yaml:"driver" env:"KITTYCORE_STORAGE_DRIVER"`
	SQLitePath  string `yaml:"sqlite_path" env:"KITTYCORE_SQLITE_PATH"`
	PostgresDSN string `yaml:"postgres_dsn" env:"KITTYCORE_POSTGRES_DSN"`
	Redis       Redis  `yaml:"redis"`
}

// Redis configures the redis backend.
type Redis struct {
	Addr     string `yaml:"addr" env:"KITTYCORE_REDIS_ADDR"`
	Password string `yaml:"password" env:"KITTYCORE_REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"KITTYCORE_REDIS_DB"`
	Prefix   string `yaml:"prefix" env:"KITTYCORE_REDIS_PREFIX"`
}

// Log configures the slog handler.
type Log struct {
	Level  string `yaml:"level" env:"KITTYCORE_LOG_LEVEL"`
	Format string `yaml:"format" env:"KITTYCORE_LOG_FORMAT"`
}

// Archive configures where registry snapshots are written.
type Archive struct {
	Driver string `yaml:"driver" env:"KITTYCORE_ARCHIVE_DRIVER"`
	// Dir is the snapshot directory of the fs driver.
	Dir string `yaml:"dir" env:"KITTYCORE_ARCHIVE_DIR"`
	S3  S3     `yaml:"s3"`
}

// Telemetry configures optional metrics and trace output. Both are off when empty.
type Telemetry struct {
	// MetricsFile receives the Prometheus text exposition when a command exits.
	MetricsFile  string `yaml:"metrics_file" env:"KITTYCORE_METRICS_FILE"`
	OTelEndpoint string `yaml:"otel_endpoint" env:"KITTYCORE_OTEL_ENDPOINT"`
}

// S3 configures the S3 archive bucket.
type S3 struct {
	Bucket          string `yaml:"bucket" env:"KITTYCORE_ARCHIVE_S3_BUCKET"`
	Region          string `yaml:"region" env:"KITTYCORE_ARCHIVE_S3_REGION"`
	Endpoint        string `yaml:"endpoint" env:"KITTYCORE_ARCHIVE_S3_ENDPOINT"`
	PathStyle       bool   `yaml:"path_style" env:"KITTYCORE_ARCHIVE_S3_PATH_STYLE"`
	AccessKeyID     string `yaml:"access_key_id" env:"KITTYCORE_ARCHIVE_S3_ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"secret_access_key" env:"KITTYCORE_ARCHIVE_S3_SECRET_ACCESS_KEY"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	var cfg Config
	cfg.applyDefaults()
	return cfg
}

// Load reads path (if non-empty and present), overlays the environment, fills
// defaults and validates the result. A missing file is not an error.
func Load(path string) (Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Storage.Driver == "" {
		c.Storage.Driver = StorageSQLite
	}
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = "kittycore.db"
	}
	if c.Storage.PostgresDSN == "" {
		c.Storage.PostgresDSN = "postgres://localhost/kittycore?sslmode=disable"
	}
	if c.Storage.Redis.Addr == "" {
		c.Storage.Redis.Addr = "localhost:6379"
	}
	if c.Storage.Redis.Prefix == "" {
		c.Storage.Redis.Prefix = "kittycore:"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = string(logging.FormatText)
	}
	if c.Archive.Driver == "" {
		c.Archive.Driver = ArchiveFS
	}
	if c.Archive.Dir == "" {
		c.Archive.Dir = "kittycore-archive"
	}
	if c.Archive.S3.Region == "" {
		c.Archive.S3.Region = "us-east-1"
	}
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case StorageMemory, StorageSQLite, StoragePostgres, StorageRedis:
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}
	if c.Storage.Redis.DB < 0 {
		errs = append(errs, fmt.Errorf("redis db must be non-negative"))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if _, err := logging.ParseFormat(c.Log.Format); err != nil {
		errs = append(errs, err)
	}
	switch c.Archive.Driver {
	case ArchiveFS, ArchiveMemory:
	case ArchiveS3:
		if c.Archive.S3.Bucket == "" {
			errs = append(errs, fmt.Errorf("archive s3 bucket required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown archive driver %q", c.Archive.Driver))
	}
	if _, err := c.SeedBytes(); err != nil {
		errs = append(errs, fmt.Errorf("invalid seed: %w", err))
	}
	return errors.Join(errs...)
}

// SeedBytes decodes the configured seed. An empty seed yields nil.
func (c Config) SeedBytes() ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(c.Seed, "0x"))
}
