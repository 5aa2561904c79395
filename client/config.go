package client

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the environment-driven client configuration.
type Config struct {
	APIKey   string        `env:"ANTHROPIC_API_KEY"`
	BaseURL  string        `env:"ANTHROPIC_BASE_URL" envDefault:"https://api.anthropic.com"`
	LogLevel string        `env:"CLAUDE_LOG_LEVEL" envDefault:"info"`
	Timeout  time.Duration `env:"ANTHROPIC_TIMEOUT" envDefault:"10m"`
}

// LoadConfig reads Config from the environment.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
