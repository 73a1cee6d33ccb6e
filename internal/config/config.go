// Package config loads object store settings from objectstore.yml and OBJECTSTORE_* variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// FileName is the config file name searched for, without extension
const FileName = "objectstore"

// EnvPrefix prefixes environment overrides: OBJECTSTORE_DATABASE_DSN overrides database.dsn
const EnvPrefix = "OBJECTSTORE"

// Config represents the object store configuration
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Query    QueryConfig    `mapstructure:"query"`
	Session  SessionConfig  `mapstructure:"session"`
	Log      LogConfig      `mapstructure:"log"`
	Model    ModelConfig    `mapstructure:"model"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"`
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

// QueryConfig holds execution defaults
type QueryConfig struct {
	DefaultMaxRows int           `mapstructure:"default_max_rows"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// SessionConfig holds per-session settings
type SessionConfig struct {
	CacheSize int `mapstructure:"cache_size"`
}

// LogConfig represents logger configuration
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// ModelConfig points at the class model file
type ModelConfig struct {
	Path string `mapstructure:"path"`
}

var supportedDrivers = map[string]bool{
	"sqlite3":  true,
	"pgx":      true,
	"postgres": true,
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.dsn", "file:objectstore.db?_foreign_keys=on")
	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("query.default_max_rows", 100)
	v.SetDefault("query.timeout", 30*time.Second)
	v.SetDefault("session.cache_size", 1024)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("model.path", "model.yml")
}

// Load reads configuration from path, or from objectstore.yml in the current directory
// when path is empty. A missing default file is not an error; defaults apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if !supportedDrivers[c.Database.Driver] {
		return fmt.Errorf("database.driver must be one of sqlite3, pgx, postgres, got: %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Database.MaxOpenConns < 0 {
		return fmt.Errorf("database.max_open_conns must not be negative, got: %d", c.Database.MaxOpenConns)
	}
	if c.Query.DefaultMaxRows == 0 || c.Query.DefaultMaxRows < -1 {
		return fmt.Errorf("query.default_max_rows must be positive or -1 for unbounded, got: %d", c.Query.DefaultMaxRows)
	}
	if c.Query.Timeout < 0 {
		return fmt.Errorf("query.timeout must not be negative, got: %s", c.Query.Timeout)
	}
	if c.Session.CacheSize <= 0 {
		return fmt.Errorf("session.cache_size must be positive, got: %d", c.Session.CacheSize)
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// FindConfigFile looks for objectstore.yml or objectstore.yaml from the working
// directory upwards and returns the first match
func FindConfigFile() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		for _, ext := range []string{".yml", ".yaml"} {
			candidate := filepath.Join(dir, FileName+ext)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no %s.yml found", FileName)
		}
		dir = parent
	}
}
