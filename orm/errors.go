package orm

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// DatabaseError carries an unexpected failure of the underlying database.
// Callers treat it as an infrastructure fault, never as user input.
type DatabaseError struct {
	Inner error
}

func (e *DatabaseError) Error() string {
	return "database operation failed: " + e.Inner.Error()
}

func (e *DatabaseError) Unwrap() error {
	return e.Inner
}

// NotFoundError reports a catalog lookup that expected a row and found
// none. Lookups where absence is a normal outcome return nil instead.
type NotFoundError struct {
	Search string
}

func (e *NotFoundError) Error() string {
	return "record not found for search: " + e.Search
}

// ConflictError reports a uniqueness violation, e.g. two concurrent
// imports creating the same (name, architecture, repository) package or a
// sign-up reusing a taken username.
type ConflictError struct {
	Conflict string
}

func (e *ConflictError) Error() string {
	return "conflicting record: " + e.Conflict
}

// BadInputError reports arguments the query layer refuses to run with.
type BadInputError struct {
	Reason string
}

func (e *BadInputError) Error() string {
	return "bad input: " + e.Reason
}

// wrapErrorWithDetails classifies a gorm error into the catalog's error
// vocabulary, tagging it with the operation and its lookup details.
func wrapErrorWithDetails(err error, operation, details string) error {
	if err == nil {
		return nil
	}

	subject := operation
	if details != "" {
		subject = fmt.Sprintf("%s (%s)", operation, details)
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return &NotFoundError{Search: subject}
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return &ConflictError{Conflict: subject}
	default:
		return &DatabaseError{Inner: fmt.Errorf("%s: %w", operation, err)}
	}
}
