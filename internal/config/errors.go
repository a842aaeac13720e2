package config

import "fmt"

// ConfigurationError reports an invalid run parameter or input shape.
// It is always fatal at initialization, before any simulated year runs.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s: %s", e.Field, e.Reason)
}

// RosterMismatch reports a roster whose length disagrees with what was expected.
func RosterMismatch(want, got int) error {
	return &ConfigurationError{
		Field:  "roster",
		Reason: fmt.Sprintf("expected %d households, got %d", want, got),
	}
}
