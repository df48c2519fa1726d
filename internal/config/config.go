// Package config loads the service configuration from an optional
// YAML file with environment variable overrides on top.
package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Backend selectors for the session repository.
const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Config holds everything the service needs at startup.
type Config struct {
	ListenAddr string `yaml:"listen_addr" env:"SESSIONTRACK_LISTEN_ADDR"`
	Backend    string `yaml:"backend" env:"SESSIONTRACK_BACKEND"`

	RedisAddr     string `yaml:"redis_addr" env:"SESSIONTRACK_REDIS_ADDR"`
	RedisPassword string `yaml:"redis_password" env:"SESSIONTRACK_REDIS_PASSWORD"`
	RedisDB       int    `yaml:"redis_db" env:"SESSIONTRACK_REDIS_DB"`

	KeyPrefix string `yaml:"key_prefix" env:"SESSIONTRACK_KEY_PREFIX"`
	ScanCount int64  `yaml:"scan_count" env:"SESSIONTRACK_SCAN_COUNT"`
	LogLevel  string `yaml:"log_level" env:"SESSIONTRACK_LOG_LEVEL"`
}

// Default returns the configuration used when nothing is provided.
func Default() Config {
	return Config{
		ListenAddr: ":8080",
		Backend:    BackendRedis,
		RedisAddr:  "localhost:6379",
		KeyPrefix:  "sessiontrack:",
		ScanCount:  100,
		LogLevel:   "info",
	}
}

// Load builds the configuration: defaults, then the YAML file at path
// (skipped when path is empty or the file does not exist), then
// environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Missing file means "run on defaults and env".
		case err != nil:
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot start with.
func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr is required")
	}
	switch c.Backend {
	case BackendRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("redis_addr is required when backend is %q", BackendRedis)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("backend must be %q or %q, got %q", BackendRedis, BackendMemory, c.Backend)
	}
	if c.ScanCount <= 0 {
		return fmt.Errorf("scan_count must be positive, got %d", c.ScanCount)
	}
	return nil
}
