package model

import (
	"errors"
	"fmt"
)

// ErrConfiguration is matched by every configuration-class error: a call
// that cannot be attempted because no backend or endpoint is configured.
var ErrConfiguration = errors.New("configuration error")

// ConfigurationError reports which component is missing its configuration.
type ConfigurationError struct {
	Component string
	Reason    string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Component, e.Reason)
}

// Is makes errors.Is(err, ErrConfiguration) true.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// NewConfigurationError creates a ConfigurationError.
func NewConfigurationError(component, reason string) error {
	return &ConfigurationError{Component: component, Reason: reason}
}
