// Package apperr classifies every admission and lifecycle failure into a
// fixed taxonomy so handlers can map errors to stable status codes without
// ever leaking raw storage errors to callers.
package apperr

import (
	"errors"
	"net/http"
)

// Kind identifies one taxonomy entry.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidInput
	KindSessionNotFound
	KindSessionClosed
	KindDuplicateStudent
	KindDuplicateOrigin
	KindRateLimited
	KindUnauthorized
	KindForbidden
	KindStore
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindSessionNotFound:
		return "session_not_found"
	case KindSessionClosed:
		return "session_closed"
	case KindDuplicateStudent:
		return "duplicate_student"
	case KindDuplicateOrigin:
		return "duplicate_origin"
	case KindRateLimited:
		return "rate_limited"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindStore:
		return "store_failure"
	default:
		return "unknown"
	}
}

// Error carries a taxonomy kind and a human-readable message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a classified error.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap classifies an underlying error. The wrapped error is kept for logs;
// callers only ever see the message.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the taxonomy kind, or KindUnknown for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Message returns the user-facing message for a classified error, or a
// generic one otherwise.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}

// HTTPStatus maps a kind to its fixed status code. Unclassified errors are
// treated as store failures.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindSessionNotFound:
		return http.StatusNotFound
	case KindSessionClosed, KindForbidden:
		return http.StatusForbidden
	case KindDuplicateStudent:
		return http.StatusConflict
	case KindDuplicateOrigin, KindRateLimited:
		return http.StatusTooManyRequests
	case KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
