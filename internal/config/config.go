package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for a ferret project.
type Config struct {
	Version    int        `yaml:"version"`
	Generation Generation `yaml:"generation"`
	Search     Search     `yaml:"search"`
	Server     Server     `yaml:"server"`
}

// Generation describes the text-generation backend.
type Generation struct {
	Provider   string `yaml:"provider"`              // openai, anthropic, google
	Model      string `yaml:"model,omitempty"`       // model name
	APIKeyEnv  string `yaml:"api_key_env"`           // env var holding the API key
	TimeoutSec int    `yaml:"timeout_sec,omitempty"` // 0 = default 300
}

// Search describes the web search backend.
type Search struct {
	APIKeyEnv  string `yaml:"api_key_env"`           // env var holding the API key
	TimeoutSec int    `yaml:"timeout_sec,omitempty"` // 0 = default 30
}

// Server describes the HTTP read/write surface.
type Server struct {
	Listen     string `yaml:"listen,omitempty"`      // default :8080
	MaxWorkers int    `yaml:"max_workers,omitempty"` // concurrent pipelines, default 4
}

// Timeout returns the effective generation timeout.
func (g Generation) Timeout() time.Duration {
	if g.TimeoutSec > 0 {
		return time.Duration(g.TimeoutSec) * time.Second
	}
	return 300 * time.Second
}

// Timeout returns the effective search timeout.
func (s Search) Timeout() time.Duration {
	if s.TimeoutSec > 0 {
		return time.Duration(s.TimeoutSec) * time.Second
	}
	return 30 * time.Second
}

// Addr returns the effective listen address.
func (s Server) Addr() string {
	if s.Listen != "" {
		return s.Listen
	}
	return ":8080"
}

// Workers returns the effective pipeline concurrency.
func (s Server) Workers() int {
	if s.MaxWorkers > 0 {
		return s.MaxWorkers
	}
	return 4
}

// Load reads and parses the config file at the given path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the config to the given path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns a starter config.
func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		Generation: Generation{
			Provider:  "anthropic",
			APIKeyEnv: "ANTHROPIC_API_KEY",
		},
		Search: Search{
			APIKeyEnv: "TAVILY_API_KEY",
		},
	}
}

func (c *Config) validate() error {
	switch c.Generation.Provider {
	case "openai", "anthropic", "google":
	case "":
		return fmt.Errorf("generation: provider is required (openai, anthropic or google)")
	default:
		return fmt.Errorf("generation: unknown provider %q", c.Generation.Provider)
	}
	if c.Generation.APIKeyEnv == "" {
		return fmt.Errorf("generation: api_key_env is required")
	}
	if c.Search.APIKeyEnv == "" {
		return fmt.Errorf("search: api_key_env is required")
	}
	return nil
}
