package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

// ErrorCode categorizes failures surfaced by the library layer.
type ErrorCode string

const (
	// ErrCodeNotFound indicates a lookup matched zero rows.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeConflict indicates a unique-constraint violation that was not
	// absorbed as an idempotent no-op.
	ErrCodeConflict ErrorCode = "CONFLICT"

	// ErrCodeUnavailable indicates a connection, I/O or authentication failure.
	ErrCodeUnavailable ErrorCode = "STORE_UNAVAILABLE"

	// ErrCodeConfiguration indicates missing or invalid credentials or settings.
	ErrCodeConfiguration ErrorCode = "CONFIGURATION"

	// ErrCodeAllocationExhausted indicates the identifier allocator ran out of attempts.
	ErrCodeAllocationExhausted ErrorCode = "ALLOCATION_EXHAUSTED"
)

// Error is the structured error returned by every store-backed operation.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Op names the operation that failed, e.g. "tag content".
	Op string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates an Error with the given code.
func NewError(code ErrorCode, op string, err error) *Error {
	return &Error{Code: code, Op: op, Err: err}
}

// Classify wraps a raw driver error into an Error. Errors that are already
// classified keep their code and gain the outer operation name.
//
//   - sql.ErrNoRows becomes NOT_FOUND
//   - SQLite constraint violations become CONFLICT
//   - context cancellation is returned unchanged
//   - anything else from the driver becomes STORE_UNAVAILABLE
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var se *Error
	if errors.As(err, &se) {
		return &Error{Code: se.Code, Op: op, Err: err}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) {
		return NewError(ErrCodeNotFound, op, err)
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		return NewError(ErrCodeConflict, op, err)
	}
	return NewError(ErrCodeUnavailable, op, err)
}

// CodeOf returns the code of the outermost Error in err's chain, or "" if none.
func CodeOf(err error) ErrorCode {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// IsNotFound returns true if err is a NOT_FOUND error.
func IsNotFound(err error) bool {
	return CodeOf(err) == ErrCodeNotFound
}

// IsConflict returns true if err is a CONFLICT error.
func IsConflict(err error) bool {
	return CodeOf(err) == ErrCodeConflict
}

// IsUnavailable returns true if err is a STORE_UNAVAILABLE error.
func IsUnavailable(err error) bool {
	return CodeOf(err) == ErrCodeUnavailable
}

// IsConfiguration returns true if err is a CONFIGURATION error.
func IsConfiguration(err error) bool {
	return CodeOf(err) == ErrCodeConfiguration
}

// IsExhausted returns true if err is an ALLOCATION_EXHAUSTED error.
func IsExhausted(err error) bool {
	return CodeOf(err) == ErrCodeAllocationExhausted
}
