// Package config loads process configuration from the environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// ParseEnv populates target's env-tagged fields from the process
// environment. envDefault values apply only when a variable is unset;
// a variable set to the empty string stays empty.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("load environment: %w", err)
	}
	return nil
}
