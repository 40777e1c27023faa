package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/chatglot/chatglot/selector"
)

// Config is the top-level chatglot configuration.
type Config struct {
	URL      string `yaml:"url"`
	Listen   string `yaml:"listen"`
	DB       string `yaml:"db"`
	LogLevel string `yaml:"log_level"`

	Browser  BrowserConfig  `yaml:"browser"`
	Debounce DebounceConfig `yaml:"debounce"`
	OpenAI   OpenAIConfig   `yaml:"openai"`

	// Selectors overrides the built-in pattern lists per category
	// (scroller, message, content, reply, editor, ...).
	Selectors map[string][]string `yaml:"selectors"`
}

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig struct {
	Remote   string `yaml:"remote"`
	Headless bool   `yaml:"headless"`
}

// DebounceConfig controls candidate batching.
type DebounceConfig struct {
	Window    time.Duration `yaml:"window"`
	MaxBuffer int           `yaml:"max_buffer"`
}

// OpenAIConfig configures the translation engine. The API key can also
// come from the OPENAI_API_KEY environment variable.
type OpenAIConfig struct {
	APIKey       string  `yaml:"api_key"`
	BaseURL      string  `yaml:"base_url"`
	Model        string  `yaml:"model"`
	RateLimitRPS float64 `yaml:"rate_limit_rps"`
}

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = ":8086"
	}
	if c.DB == "" {
		c.DB = "db/chatglot.db"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Debounce.Window <= 0 {
		c.Debounce.Window = 250 * time.Millisecond
	}
	if c.Debounce.MaxBuffer <= 0 {
		c.Debounce.MaxBuffer = 200
	}
	if c.OpenAI.APIKey == "" {
		c.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
}

// selectorOverrides converts the YAML selector map to registry categories.
func (c *Config) selectorOverrides() map[selector.Category][]string {
	if len(c.Selectors) == 0 {
		return nil
	}
	out := make(map[selector.Category][]string, len(c.Selectors))
	for name, pats := range c.Selectors {
		out[selector.Category(name)] = pats
	}
	return out
}
