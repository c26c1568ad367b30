// Package config provides configuration management for the prime sieve.
//
// Values come from, in increasing priority: built-in defaults, an optional
// YAML file, SIEVE_* environment variables and command-line flags bound to
// the same viper instance.
package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/prime-sieve/pkg/compression"
	apperrors "github.com/prime-sieve/pkg/errors"
	"github.com/prime-sieve/pkg/telemetry"
)

// EnvPrefix prefixes every environment override, e.g. SIEVE_SIEVE_LIMIT.
const EnvPrefix = "SIEVE"

// Config holds all configuration for the application.
type Config struct {
	Sieve       SieveConfig       `mapstructure:"sieve"`
	Distributed DistributedConfig `mapstructure:"distributed"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Output      OutputConfig      `mapstructure:"output"`
	Log         LogConfig         `mapstructure:"log"`
	Telemetry   telemetry.Config  `mapstructure:"telemetry"`
}

// SieveConfig holds the run parameters.
type SieveConfig struct {
	Limit      int    `mapstructure:"limit"`
	Count      int    `mapstructure:"count"`
	Workers    int    `mapstructure:"workers"` // 0 = backend default
	Backend    string `mapstructure:"backend"`
	Collectors int    `mapstructure:"collectors"`
	Ranks      int    `mapstructure:"ranks"`
	MaxLimit   int    `mapstructure:"max_limit"`
}

// DistributedConfig holds the settings of the distributed backend.
type DistributedConfig struct {
	Transport         string        `mapstructure:"transport"` // local or grpc
	Addr              string        `mapstructure:"addr"`
	CollectiveTimeout time.Duration `mapstructure:"collective_timeout"`
}

// DatabaseConfig holds the run history database configuration.
type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Type     string `mapstructure:"type"`   // sqlite, postgres or mysql
	Driver   string `mapstructure:"driver"` // gorm or sql
	Path     string `mapstructure:"path"`   // sqlite file
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	MaxConns int    `mapstructure:"max_conns"`
}

// StorageConfig holds artifact storage configuration.
type StorageConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Type      string `mapstructure:"type"` // cos or local
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	SecretID  string `mapstructure:"secret_id"`
	SecretKey string `mapstructure:"secret_key"`
	Domain    string `mapstructure:"domain"`     // e.g., "myqcloud.com"
	Scheme    string `mapstructure:"scheme"`     // e.g., "https" or "http"
	LocalPath string `mapstructure:"local_path"` // for local storage
}

// OutputConfig controls what a run prints and writes.
type OutputConfig struct {
	Dir         string `mapstructure:"dir"` // result files; empty disables them
	PerLine     int    `mapstructure:"per_line"`
	Format      string `mapstructure:"format"`      // text or json
	Compression string `mapstructure:"compression"` // none, gzip or zstd
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or text
}

// Load reads configuration from configPath, or from the standard locations
// when configPath is empty. A missing file is not an error.
func Load(configPath string) (*Config, error) {
	return LoadWithViper(viper.New(), configPath)
}

// LoadWithViper is Load on a caller-supplied viper instance, typically one
// with command-line flags already bound.
func LoadWithViper(v *viper.Viper, configPath string) (*Config, error) {
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("sieve")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/prime-sieve")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, apperrors.Wrap(apperrors.CodeConfigError, "failed to read config file", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return unmarshal(v)
}

// LoadFromReader loads configuration from YAML content (useful for testing).
func LoadFromReader(configType string, content []byte) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType(configType)
	if err := v.ReadConfig(bytes.NewReader(content)); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeConfigError, "failed to read config", err)
	}
	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeConfigError, "failed to unmarshal config", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("sieve.limit", 1_000_000)
	v.SetDefault("sieve.count", 1000)
	v.SetDefault("sieve.workers", 0)
	v.SetDefault("sieve.backend", "threads")
	v.SetDefault("sieve.collectors", 1)
	v.SetDefault("sieve.ranks", 4)
	v.SetDefault("sieve.max_limit", 1<<31)

	v.SetDefault("distributed.transport", "local")
	v.SetDefault("distributed.addr", "127.0.0.1:7946")
	v.SetDefault("distributed.collective_timeout", 30*time.Second)

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.driver", "gorm")
	v.SetDefault("database.path", "./sieve.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.max_conns", 10)

	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local_path", "./storage")

	v.SetDefault("output.dir", "")
	v.SetDefault("output.per_line", 10)
	v.SetDefault("output.format", "text")
	v.SetDefault("output.compression", "none")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", telemetry.DefaultServiceName)
	v.SetDefault("telemetry.protocol", "grpc")
	v.SetDefault("telemetry.sampler", "parentbased_always_on")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	s := c.Sieve
	switch {
	case s.Limit < 2:
		return configErrorf("sieve.limit must be at least 2, got %d", s.Limit)
	case s.MaxLimit > 0 && s.Limit > s.MaxLimit:
		return apperrors.Newf(apperrors.CodeResourceExhausted,
			"sieve.limit %d exceeds sieve.max_limit %d", s.Limit, s.MaxLimit)
	case s.Count <= 0:
		return configErrorf("sieve.count must be positive, got %d", s.Count)
	case s.Workers < 0:
		return configErrorf("sieve.workers must not be negative, got %d", s.Workers)
	case s.Collectors <= 0:
		return configErrorf("sieve.collectors must be positive, got %d", s.Collectors)
	case s.Ranks <= 0:
		return configErrorf("sieve.ranks must be positive, got %d", s.Ranks)
	}

	switch c.Distributed.Transport {
	case "local", "grpc":
	default:
		return configErrorf("unsupported distributed.transport: %s", c.Distributed.Transport)
	}
	if c.Distributed.CollectiveTimeout <= 0 {
		return configErrorf("distributed.collective_timeout must be positive")
	}

	if c.Database.Enabled {
		switch c.Database.Type {
		case "sqlite":
			if c.Database.Path == "" {
				return configErrorf("database.path is required for sqlite")
			}
		case "postgres", "mysql":
			if c.Database.Host == "" {
				return configErrorf("database host is required")
			}
		default:
			return configErrorf("unsupported database type: %s", c.Database.Type)
		}
		switch c.Database.Driver {
		case "", "gorm", "sql":
		default:
			return configErrorf("unsupported database.driver: %s", c.Database.Driver)
		}
	}

	// Storage config validation is delegated to storage package

	switch c.Output.Format {
	case "text", "json":
	default:
		return configErrorf("unsupported output.format: %s", c.Output.Format)
	}
	if c.Output.PerLine <= 0 {
		return configErrorf("output.per_line must be positive, got %d", c.Output.PerLine)
	}
	if _, err := compression.ParseType(c.Output.Compression); err != nil {
		return configErrorf("invalid output.compression: %v", err)
	}

	return nil
}

// EnsureOutputDir creates the output directory if one is configured.
func (c *Config) EnsureOutputDir() error {
	if c.Output.Dir == "" {
		return nil
	}
	return os.MkdirAll(c.Output.Dir, 0755)
}

// GetRunDir returns the run-specific output directory.
func (c *Config) GetRunDir(runID string) string {
	return filepath.Join(c.Output.Dir, runID)
}

func configErrorf(format string, args ...interface{}) error {
	return apperrors.Newf(apperrors.CodeConfigError, format, args...)
}
