package pgdb

import (
	"errors"
	"fmt"
)

// ConnectionError reports a database that could not be reached.
type ConnectionError struct {
	Host     string
	Port     int
	Database string
	Err      error
}

// Error returns the error string.
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("pgdb: connect %s:%d/%s: %v", e.Host, e.Port, e.Database, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// IsConnectionError returns true if the error is a ConnectionError.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	var e *ConnectionError
	return errors.As(err, &e)
}
