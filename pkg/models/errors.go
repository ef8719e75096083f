package models

import "fmt"

// ConfigurationError reports invalid or missing order configuration.
type ConfigurationError struct {
	Key    string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("order configuration %q %s", e.Key, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }
