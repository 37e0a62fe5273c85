package migrate

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingDownMarker is returned when a migration file has no
	// "-- down" marker line.
	ErrMissingDownMarker = errors.New("migrate: missing -- down marker")

	// ErrDuplicateDownMarker is returned when a migration file has more
	// than one "-- down" marker line.
	ErrDuplicateDownMarker = errors.New("migrate: duplicate -- down marker")
)

// ParseError reports a migration file that could not be split into its up and
// down sections. Raised before any SQL is sent.
type ParseError struct {
	File string
	Err  error
}

// Error returns the error string.
func (e *ParseError) Error() string {
	return fmt.Sprintf("migrate: parse %s: %v", e.File, e.Err)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsParseError returns true if the error is a ParseError.
func IsParseError(err error) bool {
	if err == nil {
		return false
	}
	var e *ParseError
	return errors.As(err, &e)
}

// ExecError reports a migration whose SQL failed inside its transaction.
type ExecError struct {
	File      string
	Direction string
	Err       error
}

// Error returns the error string.
func (e *ExecError) Error() string {
	return fmt.Sprintf("migrate: %s %s: %v", e.Direction, e.File, e.Err)
}

// Unwrap returns the underlying error.
func (e *ExecError) Unwrap() error {
	return e.Err
}

// IsExecError returns true if the error is an ExecError.
func IsExecError(err error) bool {
	if err == nil {
		return false
	}
	var e *ExecError
	return errors.As(err, &e)
}

// LedgerError reports a failed read or write of the migrations ledger table.
type LedgerError struct {
	Op  string
	Err error
}

// Error returns the error string.
func (e *LedgerError) Error() string {
	return fmt.Sprintf("migrate: ledger %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *LedgerError) Unwrap() error {
	return e.Err
}

// IsLedgerError returns true if the error is a LedgerError.
func IsLedgerError(err error) bool {
	if err == nil {
		return false
	}
	var e *LedgerError
	return errors.As(err, &e)
}
