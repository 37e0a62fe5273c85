package pgutils

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownClient is returned when a client id is not present in the
	// configuration file.
	ErrUnknownClient = errors.New("pgutils: unknown client")

	// ErrDuplicateClient is returned when two configuration entries share
	// an id.
	ErrDuplicateClient = errors.New("pgutils: duplicate client id")

	// ErrMigrationsDisabled is returned by operations that require
	// manageMigrations to be enabled for the client.
	ErrMigrationsDisabled = errors.New("pgutils: migration management disabled")
)

// ConfigurationError reports an unusable client configuration file or entry.
type ConfigurationError struct {
	Path string
	Err  error
}

// Error returns the error string.
func (e *ConfigurationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("pgutils: config: %v", e.Err)
	}
	return fmt.Sprintf("pgutils: config %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// IsConfigurationError returns true if the error is a ConfigurationError.
func IsConfigurationError(err error) bool {
	if err == nil {
		return false
	}
	var e *ConfigurationError
	return errors.As(err, &e)
}
