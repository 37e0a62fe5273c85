package pgsql

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the statement builders.
var (
	// ErrEmptyIn is returned when an IN condition is built with no values.
	// Rendering "col IN ()" is invalid SQL, so the build fails instead.
	ErrEmptyIn = errors.New("pgsql: IN condition requires at least one value")

	// ErrNestedOr is returned when an Or group contains another Or group.
	// The compiler supports a single level of disjunction.
	ErrNestedOr = errors.New("pgsql: OR groups cannot be nested")

	// ErrNoValues is returned when an INSERT or UPDATE has no bindable
	// values left after nil filtering.
	ErrNoValues = errors.New("pgsql: statement has no values to bind")

	// ErrNoJoinOn is returned when a join specifies no column pairs.
	ErrNoJoinOn = errors.New("pgsql: join requires at least one column pair")

	// ErrMixedRows is returned when a bulk insert receives rows with
	// differing key sets.
	ErrMixedRows = errors.New("pgsql: bulk insert rows must share the same columns")

	// ErrBadIdentifier is returned when a table or database name is not a
	// valid SQL identifier.
	ErrBadIdentifier = errors.New("pgsql: invalid SQL identifier")
)

// BuildError wraps a builder failure with the table and operation it
// occurred in.
type BuildError struct {
	Table string // Table the statement targets.
	Op    string // Operation (e.g., "select", "insert").
	Err   error  // Underlying error.
}

// Error returns the error string.
func (e *BuildError) Error() string {
	return fmt.Sprintf("pgsql: build %s %q: %v", e.Op, e.Table, e.Err)
}

// Unwrap returns the underlying error.
func (e *BuildError) Unwrap() error {
	return e.Err
}

// IsBuildError returns true if the error is a BuildError.
func IsBuildError(err error) bool {
	if err == nil {
		return false
	}
	var e *BuildError
	return errors.As(err, &e)
}
