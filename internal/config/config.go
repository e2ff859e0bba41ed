package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the initiativectl CLI.
type Config struct {
	API   APIConfig
	Redis RedisConfig
	Poll  PollConfig
}

type APIConfig struct {
	BaseURL string
	Key     string
	Timeout time.Duration
}

type RedisConfig struct {
	URL string
}

// PollConfig tunes the job watcher.
type PollConfig struct {
	Interval    time.Duration
	MaxDuration time.Duration
	MaxRetries  int
}

// DevServerConfig holds configuration for the stub Initiative API server.
type DevServerConfig struct {
	Port   int
	Env    string
	APIKey string
}

// Load reads CLI configuration from environment variables and returns a
// validated Config. Returns an error with a descriptive message if any
// required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		API: APIConfig{
			BaseURL: os.Getenv("INITIATIVE_API_URL"),
			Key:     os.Getenv("INITIATIVE_API_KEY"),
			Timeout: envDuration("INITIATIVE_API_TIMEOUT", 30*time.Second),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Poll: PollConfig{
			Interval:    envDuration("POLL_INTERVAL", 3*time.Second),
			MaxDuration: envDuration("POLL_MAX_DURATION", 10*time.Minute),
			MaxRetries:  envInt("POLL_MAX_RETRIES", 5),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadDevServer reads stub server configuration. The API key defaults to a
// well-known development value so the server comes up with zero setup.
func LoadDevServer() *DevServerConfig {
	return &DevServerConfig{
		Port:   envInt("DEVSERVER_PORT", 8080),
		Env:    envString("DEVSERVER_ENV", "development"),
		APIKey: envString("DEVSERVER_API_KEY", "dev-local-key"),
	}
}

func (c *Config) validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("INITIATIVE_API_URL is required")
	}
	if !strings.HasPrefix(c.API.BaseURL, "http://") && !strings.HasPrefix(c.API.BaseURL, "https://") {
		return fmt.Errorf("INITIATIVE_API_URL must start with http:// or https://, got %q", c.API.BaseURL)
	}

	if c.Poll.Interval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive, got %s", c.Poll.Interval)
	}
	if c.Poll.MaxDuration <= 0 {
		return fmt.Errorf("POLL_MAX_DURATION must be positive, got %s", c.Poll.MaxDuration)
	}
	if c.Poll.MaxRetries <= 0 {
		return fmt.Errorf("POLL_MAX_RETRIES must be positive, got %d", c.Poll.MaxRetries)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
