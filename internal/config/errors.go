package config

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is returned when a configuration value cannot be parsed.
var ErrInvalidConfig = errors.New("invalid config")

func invalid(field, value string) error {
	return fmt.Errorf("%w: %s: %q", ErrInvalidConfig, field, value)
}
