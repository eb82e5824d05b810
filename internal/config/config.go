// Package config loads feedctl settings from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/feedstore/internal/store"
)

// Session backends.
const (
	SessionsSQLite = "sqlite"
	SessionsRedis  = "redis"
)

// Config is the whole file.
type Config struct {
	LogLevel string       `yaml:"log_level"`
	Client   ClientConfig `yaml:"client"`
	Server   ServerConfig `yaml:"server"`
}

// ClientConfig configures the feed client.
type ClientConfig struct {
	BaseURL           string        `yaml:"base_url"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	NotificationDelay time.Duration `yaml:"notification_delay"`
	MaxSteps          int           `yaml:"max_steps"`
}

// ServerConfig configures the fake API server.
type ServerConfig struct {
	Addr     string `yaml:"addr"`
	Database string `yaml:"database"`
	// Seed is a CUE file; empty means the built-in demo data.
	Seed     string        `yaml:"seed"`
	Latency  time.Duration `yaml:"latency"`
	Sessions string        `yaml:"sessions"`
	RedisURL string        `yaml:"redis_url"`
}

// Default returns the settings used when no file is given.
func Default() Config {
	return Config{
		LogLevel: "info",
		Client: ClientConfig{
			BaseURL:           "http://127.0.0.1:8080",
			RequestTimeout:    5 * time.Second,
			NotificationDelay: 5 * time.Second,
			MaxSteps:          store.DefaultMaxSteps,
		},
		Server: ServerConfig{
			Addr:     "127.0.0.1:8080",
			Database: "feed.db",
			Sessions: SessionsSQLite,
			RedisURL: "redis://127.0.0.1:6379/0",
		},
	}
}

// Load reads path over the defaults. Unknown keys are rejected.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate reports every invalid field.
func (c Config) Validate() error {
	var errs []error

	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}

	if u, err := url.Parse(c.Client.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("client.base_url: %q is not an absolute URL", c.Client.BaseURL))
	}
	if c.Client.RequestTimeout <= 0 {
		errs = append(errs, errors.New("client.request_timeout must be positive"))
	}
	if c.Client.NotificationDelay <= 0 {
		errs = append(errs, errors.New("client.notification_delay must be positive"))
	}
	if c.Client.MaxSteps <= 0 {
		errs = append(errs, errors.New("client.max_steps must be positive"))
	}

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Server.Database == "" {
		errs = append(errs, errors.New("server.database is required"))
	}
	if c.Server.Latency < 0 {
		errs = append(errs, errors.New("server.latency must not be negative"))
	}
	switch c.Server.Sessions {
	case SessionsSQLite:
	case SessionsRedis:
		if c.Server.RedisURL == "" {
			errs = append(errs, errors.New("server.redis_url is required for redis sessions"))
		}
	default:
		errs = append(errs, fmt.Errorf("server.sessions: unknown backend %q", c.Server.Sessions))
	}

	return errors.Join(errs...)
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return level, nil
}
