package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// ClientConfig configures the terminal companion client.
type ClientConfig struct {
	// APIURL is the companion backend base URL.
	APIURL string `env:"COMPANION_API_URL" envDefault:"http://localhost:8080"`

	// Token is the owner's bearer token.
	Token string `env:"COMPANION_TOKEN"`

	RequestTimeout time.Duration `env:"COMPANION_REQUEST_TIMEOUT" envDefault:"15s"`

	// The terminal is owned by the UI, so logs go to a file.
	LogFile  string `env:"COMPANION_LOG_FILE" envDefault:"companion.log"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	Companion CompanionConfig
}

// LoadClient loads the client configuration from the environment.
func LoadClient() (*ClientConfig, error) {
	cfg := &ClientConfig{}
	if err := ParseEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// Validate checks the client configuration.
func (c *ClientConfig) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("COMPANION_API_URL must be an absolute URL")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("COMPANION_REQUEST_TIMEOUT must be positive")
	}
	if errs := c.Companion.validate(); len(errs) > 0 {
		return errors.New(errs[0])
	}
	return nil
}
