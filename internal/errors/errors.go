// Package errors provides the structured error type used throughout Quern.
// Every error carries a code from the engine's error taxonomy so callers can
// branch on failure kind without string matching.
package errors

import (
	"errors"
	"fmt"
)

// Code classifies an error by failure kind.
type Code string

const (
	// CodeNotFound indicates a missing database, table, column, or row.
	CodeNotFound Code = "NOT_FOUND"

	// CodeSyntax indicates builder misuse: a missing or doubled clause, or a
	// reference to an unknown column. Never recoverable by retry.
	CodeSyntax Code = "SYNTAX"

	// CodeConstraint indicates a primary-key, unique, foreign-key, or
	// nullability violation.
	CodeConstraint Code = "CONSTRAINT"

	// CodeType indicates a value that does not match its declared column type.
	CodeType Code = "TYPE"

	// CodeScope indicates a transaction used across inconsistent tables or
	// after it has completed.
	CodeScope Code = "SCOPE"

	// CodeStore indicates a backing-store adapter failure.
	CodeStore Code = "STORE"

	// CodeCancelled indicates a transaction cancelled before commit. It is the
	// only non-error non-success outcome.
	CodeCancelled Code = "CANCELLED"

	// CodeUnknown indicates an invariant breach inside the engine.
	CodeUnknown Code = "UNKNOWN"
)

// Error is the structured error type used throughout the engine.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

// Error returns a formatted error string.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// New creates a new Error with the given code.
func New(code Code, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing cause.
func Wrap(code Code, cause error, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// CodeOf extracts the code from an error chain.
// Returns CodeUnknown if the error is not a Quern error.
func CodeOf(err error) Code {
	var qe *Error
	if errors.As(err, &qe) {
		return qe.Code
	}
	return CodeUnknown
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	return errors.Is(err, &Error{Code: code})
}

// Convenience constructors for the common codes.

func NewNotFound(format string, args ...interface{}) *Error {
	return New(CodeNotFound, format, args...)
}

func NewSyntax(format string, args ...interface{}) *Error {
	return New(CodeSyntax, format, args...)
}

func NewConstraint(format string, args ...interface{}) *Error {
	return New(CodeConstraint, format, args...)
}

func NewType(format string, args ...interface{}) *Error {
	return New(CodeType, format, args...)
}

func NewScope(format string, args ...interface{}) *Error {
	return New(CodeScope, format, args...)
}

func NewStore(cause error, format string, args ...interface{}) *Error {
	return Wrap(CodeStore, cause, format, args...)
}

func NewCancelled(format string, args ...interface{}) *Error {
	return New(CodeCancelled, format, args...)
}

func NewUnknown(cause error, format string, args ...interface{}) *Error {
	return Wrap(CodeUnknown, cause, format, args...)
}
