package main

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/SizovOleg/eo-services/internal/auth"
)

// ServerConfig holds HTTP settings.
type ServerConfig struct {
	Addr          string
	RunTimeout    time.Duration
	MaxSweep      int
	RatePerMinute float64
	RateBurst     int
	TrustProxy    bool
}

// JobsConfig holds async job settings.
type JobsConfig struct {
	MaxActive     int
	Retention     time.Duration
	SweepWorkers  int
	PruneInterval time.Duration
}

// CacheConfig holds result cache settings.
type CacheConfig struct {
	Enabled    bool
	MaxEntries int
	TTL        time.Duration
}

// Config is the effective service configuration.
type Config struct {
	Server ServerConfig
	Jobs   JobsConfig
	Cache  CacheConfig
	Auth   auth.Config
}

// newViper returns a viper instance reading COVSIM_* variables (server.addr is
// COVSIM_SERVER_ADDR) and, when path is set, a config file.
func newViper(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("covsim")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.run_timeout", "60s")
	v.SetDefault("server.max_sweep", 16)
	v.SetDefault("server.rate_per_minute", 30)
	v.SetDefault("server.rate_burst", 5)
	v.SetDefault("server.trust_proxy", false)
	v.SetDefault("jobs.max_active", 4)
	v.SetDefault("jobs.retention", "15m")
	v.SetDefault("jobs.sweep_workers", runtime.NumCPU())
	v.SetDefault("jobs.prune_interval", "1m")
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.max_entries", 64)
	v.SetDefault("cache.ttl", "30m")
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.token", "")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}
	return v, nil
}

// loadConfig builds the effective configuration. Out-of-range values are logged
// and replaced by defaults; only an inconsistent auth setup is an error.
func loadConfig(path string, logger *slog.Logger) (Config, error) {
	v, err := newViper(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Server: ServerConfig{
			Addr:          v.GetString("server.addr"),
			RunTimeout:    positiveDuration(v, logger, "server.run_timeout", 60*time.Second),
			MaxSweep:      positiveInt(v, logger, "server.max_sweep", 16),
			RatePerMinute: v.GetFloat64("server.rate_per_minute"),
			RateBurst:     positiveInt(v, logger, "server.rate_burst", 5),
			TrustProxy:    v.GetBool("server.trust_proxy"),
		},
		Jobs: JobsConfig{
			MaxActive:     positiveInt(v, logger, "jobs.max_active", 4),
			Retention:     positiveDuration(v, logger, "jobs.retention", 15*time.Minute),
			SweepWorkers:  positiveInt(v, logger, "jobs.sweep_workers", runtime.NumCPU()),
			PruneInterval: positiveDuration(v, logger, "jobs.prune_interval", time.Minute),
		},
		Cache: CacheConfig{
			Enabled:    v.GetBool("cache.enabled"),
			MaxEntries: positiveInt(v, logger, "cache.max_entries", 64),
			TTL:        positiveDuration(v, logger, "cache.ttl", 30*time.Minute),
		},
		Auth: auth.Config{
			Enabled: v.GetBool("auth.enabled"),
			Token:   v.GetString("auth.token"),
		},
	}

	if cfg.Server.RatePerMinute < 0 {
		logger.Warn("invalid server.rate_per_minute value, disabling rate limit", "value", cfg.Server.RatePerMinute)
		cfg.Server.RatePerMinute = 0
	}
	if cfg.Auth.Enabled && cfg.Auth.Token == "" {
		return cfg, errors.New("COVSIM_AUTH_TOKEN is required when auth is enabled")
	}

	logger.Info("server config",
		"addr", cfg.Server.Addr,
		"run_timeout_seconds", cfg.Server.RunTimeout.Seconds(),
		"max_sweep", cfg.Server.MaxSweep,
		"rate_per_minute", cfg.Server.RatePerMinute,
		"auth_enabled", cfg.Auth.Enabled,
	)
	logger.Info("jobs config",
		"max_active", cfg.Jobs.MaxActive,
		"retention_seconds", cfg.Jobs.Retention.Seconds(),
		"sweep_workers", cfg.Jobs.SweepWorkers,
	)
	logger.Info("cache config",
		"enabled", cfg.Cache.Enabled,
		"max_entries", cfg.Cache.MaxEntries,
		"ttl_seconds", cfg.Cache.TTL.Seconds(),
	)
	return cfg, nil
}

func positiveInt(v *viper.Viper, logger *slog.Logger, key string, def int) int {
	n := v.GetInt(key)
	if n < 1 {
		logger.Warn("invalid "+key+" value, using default", "value", v.Get(key), "default", def)
		return def
	}
	return n
}

func positiveDuration(v *viper.Viper, logger *slog.Logger, key string, def time.Duration) time.Duration {
	d := v.GetDuration(key)
	if d <= 0 {
		logger.Warn("invalid "+key+" value, using default", "value", v.Get(key), "default", def.String())
		return def
	}
	return d
}
