// Package config loads the engine configuration from a yaml file with
// environment variable overrides.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Deepreo/reportsched/modules/lock"
	"github.com/Deepreo/reportsched/modules/repository"
)

type Config struct {
	Database repository.Config `mapstructure:"database"`
	Redis    lock.Config       `mapstructure:"redis"`
	Sweep    SweepConfig       `mapstructure:"sweep"`
	Log      LogConfig         `mapstructure:"log"`
}

// SweepConfig controls the background jobs and the execution lease.
type SweepConfig struct {
	DueInterval   time.Duration `mapstructure:"due_interval"`
	StaleInterval time.Duration `mapstructure:"stale_interval"`
	StaleAfter    time.Duration `mapstructure:"stale_after"`
	LeaseTTL      time.Duration `mapstructure:"lease_ttl"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SlogLevel maps the configured level name onto a slog.Level.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Load reads config.yaml from the given path (or the working directory when
// empty), applies defaults and lets REPORTSCHED_* environment variables
// override individual keys.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "reportsched")
	v.SetDefault("database.dbname", "reportsched")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", "6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "reportsched:")
	v.SetDefault("sweep.due_interval", time.Minute)
	v.SetDefault("sweep.stale_interval", 10*time.Minute)
	v.SetDefault("sweep.stale_after", time.Hour)
	v.SetDefault("sweep.lease_ttl", 2*time.Minute)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if path != "" {
		v.AddConfigPath(path)
	}
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Defaults plus environment variables are enough to run.
	}

	v.SetEnvPrefix("REPORTSCHED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}
