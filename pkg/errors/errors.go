// Package errors provides error wrapping utilities and the typed error kinds
// surfaced by the cart store.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies store failures so callers can pick a recovery path.
type Kind string

const (
	KindInitialization  Kind = "initialization"
	KindInvalidArgument Kind = "invalid_argument"
	KindStockExceeded   Kind = "stock_exceeded"
	KindNotFound        Kind = "not_found"
	KindSnapshotMissing Kind = "snapshot_missing"
)

// Error is a store error tagged with a Kind.
type Error struct {
	kind    Kind
	message string
	details map[string]any
	cause   error
}

// New creates a typed error.
func New(kind Kind, message string) *Error {
	return &Error{kind: kind, message: message}
}

// Newf creates a typed error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{kind: kind, message: fmt.Sprintf(format, args...)}
}

// WrapKind tags err with kind. A nil err still yields an error of that kind.
func WrapKind(kind Kind, err error, message string) *Error {
	return &Error{kind: kind, message: message, cause: err}
}

// WithDetails attaches structured details (for example requested/available stock).
func (e *Error) WithDetails(details map[string]any) *Error {
	e.details = details
	return e
}

// Kind returns the error kind.
func (e *Error) Kind() Kind {
	return e.kind
}

// Details returns attached details, or nil.
func (e *Error) Details() map[string]any {
	return e.details
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// KindOf returns the kind of the first typed error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.kind
	}
	return ""
}

// IsKind reports whether err's chain contains a typed error of kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Wrap wraps an error with additional context information.
// If err is nil, it returns nil without wrapping.
func Wrap(err error, context string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", context, err)
}

// As is errors.As from the standard library.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Is is errors.Is from the standard library.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}
