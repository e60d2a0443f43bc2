// Package qerr defines the stable error taxonomy shared by the ingestion and
// query pipelines. Every user-visible failure carries one of these kinds so
// the API layer can map it to a status code without string matching.
package qerr

import (
	"errors"
	"fmt"
)

// Kind is a stable, machine-readable error category.
type Kind string

const (
	// KindValidation covers malformed input files (ragged rows).
	KindValidation Kind = "VALIDATION_ERROR"
	// KindUnsupportedFormat covers empty or untypeable data and parse failures.
	KindUnsupportedFormat Kind = "UNSUPPORTED_FORMAT"
	// KindGeneration means the language model produced no usable SQL.
	KindGeneration Kind = "GENERATION_ERROR"
	// KindScopeViolation means SQL referenced a table outside the caller's scope.
	KindScopeViolation Kind = "SCOPE_VIOLATION"
	// KindUnsupportedOperation means SQL was not a single read-only statement.
	KindUnsupportedOperation Kind = "UNSUPPORTED_OPERATION"
	// KindTimeout means query execution exceeded its wall-clock bound.
	KindTimeout Kind = "TIMEOUT"
	// KindNotFound means the file ID (or turn ID) is unknown.
	KindNotFound Kind = "NOT_FOUND"
)

// Error is a categorized error with an optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// New creates an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an error of the given kind around a cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// KindOf returns the kind of err, or "" if err carries no kind.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
