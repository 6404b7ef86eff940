package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// ParseEnv fills a struct tagged with `env` and `envDefault` from the environment.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
