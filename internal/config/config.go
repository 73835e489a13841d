// Package config loads and validates the application configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Configuration validation errors.
var (
	ErrInvalidPageSize    = errors.New("vk.page_size must be at least 1")
	ErrMissingUploadDir   = errors.New("upload.dir is required")
	ErrNoAllowedTypes     = errors.New("upload.allowed_types must list at least one content type")
	ErrInvalidLogLevel    = errors.New("logging.level must be one of: debug, info, warn, error")
	ErrInvalidTimezone    = errors.New("vk.timezone is not a valid IANA timezone")
	ErrInvalidRateLimit   = errors.New("server.rate_limit_rps must be positive")
	ErrInvalidRateBurst   = errors.New("server.rate_limit_burst must be at least 1")
	ErrInvalidAPITimeout  = errors.New("vk.timeout_sec must be at least 1")
	ErrMissingDatabaseDSN = errors.New("database.path is required")
)

// Config is the immutable application configuration, read once at startup.
type Config struct {
	Server   ServerConfig  `yaml:"server"`
	Database DBConfig      `yaml:"database"`
	Upload   UploadConfig  `yaml:"upload"`
	VK       VKConfig      `yaml:"vk"`
	Logging  LoggingConfig `yaml:"logging"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Addr           string  `yaml:"addr"`
	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`
}

// DBConfig contains persistence settings.
type DBConfig struct {
	Path string `yaml:"path"`
}

// UploadConfig contains local media storage settings.
type UploadConfig struct {
	Dir          string   `yaml:"dir"`
	AllowedTypes []string `yaml:"allowed_types"`
}

// VKConfig contains feed ingestion settings.
type VKConfig struct {
	AppID      int    `yaml:"app_id"`
	AppSecret  string `yaml:"app_secret"`
	GroupID    int    `yaml:"group_id"`
	PageSize   int    `yaml:"page_size"`
	TimeoutSec int    `yaml:"timeout_sec"`
	Timezone   string `yaml:"timezone"`
	BaseURL    string `yaml:"base_url"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads the YAML configuration at path, applies defaults, and
// validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config

	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg.applyDefaults()

	err = cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// Default returns a configuration with every default applied, suitable for
// tests and for running without a config file.
func Default() *Config {
	cfg := new(Config)
	cfg.applyDefaults()

	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}

	if c.Server.RateLimitRPS == 0 {
		c.Server.RateLimitRPS = 20
	}

	if c.Server.RateLimitBurst == 0 {
		c.Server.RateLimitBurst = 40
	}

	if c.Database.Path == "" {
		c.Database.Path = "sportnews.db"
	}

	if c.Upload.Dir == "" {
		c.Upload.Dir = "uploads"
	}

	if len(c.Upload.AllowedTypes) == 0 {
		c.Upload.AllowedTypes = []string{"image/jpeg"}
	}

	if c.VK.PageSize == 0 {
		c.VK.PageSize = 100
	}

	if c.VK.TimeoutSec == 0 {
		c.VK.TimeoutSec = 15
	}

	if c.VK.Timezone == "" {
		c.VK.Timezone = "Europe/Moscow"
	}

	if c.VK.BaseURL == "" {
		c.VK.BaseURL = "https://api.vk.com/method"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks the configuration for errors. GroupID is allowed to be
// empty only when feed ingestion is never triggered, so it is validated at
// client construction instead.
func (c *Config) Validate() error {
	if c.VK.PageSize < 1 {
		return ErrInvalidPageSize
	}

	if c.VK.TimeoutSec < 1 {
		return ErrInvalidAPITimeout
	}

	if c.Upload.Dir == "" {
		return ErrMissingUploadDir
	}

	if len(c.Upload.AllowedTypes) == 0 {
		return ErrNoAllowedTypes
	}

	if c.Database.Path == "" {
		return ErrMissingDatabaseDSN
	}

	if c.Server.RateLimitRPS <= 0 {
		return ErrInvalidRateLimit
	}

	if c.Server.RateLimitBurst < 1 {
		return ErrInvalidRateBurst
	}

	if !validLogLevel(c.Logging.Level) {
		return ErrInvalidLogLevel
	}

	_, err := time.LoadLocation(c.VK.Timezone)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidTimezone, c.VK.Timezone)
	}

	return nil
}

// Location resolves the configured feed timezone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.VK.Timezone)
	if err != nil {
		return time.UTC
	}

	return loc
}

// APITimeout returns the feed API timeout as a duration.
func (c *Config) APITimeout() time.Duration {
	return time.Duration(c.VK.TimeoutSec) * time.Second
}

// UploadTypeAllowed reports whether a manual upload content type is in the
// allow-list. Feed-sourced media is not subject to the allow-list.
func (c *Config) UploadTypeAllowed(contentType string) bool {
	for _, allowed := range c.Upload.AllowedTypes {
		if allowed == contentType {
			return true
		}
	}

	return false
}

func validLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}
