package apiapp

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultAddr           = ":8080"
	defaultMaxUploadBytes = 20 << 20
	defaultSessionTTL     = 2 * time.Hour
)

type Config struct {
	Addr           string        `yaml:"addr"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
	SessionTTL     time.Duration `yaml:"session_ttl"`
	Workers        int           `yaml:"workers"`
	AuthUsername   string        `yaml:"auth_username"`
	AuthPassword   string        `yaml:"auth_password"`
}

func defaultConfig() Config {
	return Config{
		Addr:           defaultAddr,
		MaxUploadBytes: defaultMaxUploadBytes,
		SessionTTL:     defaultSessionTTL,
	}
}

func DefaultConfigFromEnv() Config {
	cfg := defaultConfig()
	cfg.applyEnvOverrides()
	return cfg
}

// LoadConfig layers defaults, the optional YAML file at path and the
// environment, in that order, then validates the result.
func LoadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := envOrDefault("API_ADDR", ""); v != "" {
		c.Addr = v
	}
	if v := envOrDefault("MAX_UPLOAD_MB", ""); v != "" {
		if mb, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.MaxUploadBytes = mb << 20
		}
	}
	if v := envOrDefault("SESSION_TTL", ""); v != "" {
		if ttl, err := time.ParseDuration(v); err == nil {
			c.SessionTTL = ttl
		}
	}
	if v := envOrDefault("WORKERS", ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Workers = n
		}
	}
	if v := envOrDefault("AUTH_USERNAME", ""); v != "" {
		c.AuthUsername = v
	}
	if v := os.Getenv("AUTH_PASSWORD"); v != "" {
		c.AuthPassword = v
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return errors.New("addr is required")
	}
	if c.MaxUploadBytes <= 0 {
		return errors.New("max upload size must be positive")
	}
	if c.SessionTTL <= 0 {
		return errors.New("session ttl must be positive")
	}
	if c.Workers < 0 {
		return errors.New("workers cannot be negative")
	}
	if (c.AuthUsername == "") != (c.AuthPassword == "") {
		return errors.New("AUTH_USERNAME and AUTH_PASSWORD must be set together")
	}
	return nil
}

func (c Config) authEnabled() bool {
	return c.AuthUsername != "" && c.AuthPassword != ""
}

func envOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}
