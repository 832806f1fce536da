// Package apperr defines the error taxonomy shared by services and HTTP handlers.
//
// Every error is an oops error carrying one of the Code* values. The public
// message is kept in the error context under "message" so that handlers can
// render it without exposing the wrapped cause.
package apperr

import (
	"net/http"
	"strings"

	"github.com/samber/oops"
)

const (
	CodeValidation      = "VALIDATION"
	CodeConflict        = "CONFLICT"
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeForbidden       = "FORBIDDEN"
	CodeNotFound        = "NOT_FOUND"
	CodeRateLimited     = "RATE_LIMITED"
	CodeInternal        = "INTERNAL"
)

const (
	keyMessage = "message"
	keyErrors  = "errors"
)

// DefaultInternalMessage is returned to clients for unexpected failures.
const DefaultInternalMessage = "Server error"

// Validation reports malformed input. Each entry of details is shown to the client.
func Validation(details ...string) error {
	return oops.
		Code(CodeValidation).
		With(keyMessage, "Validation error").
		With(keyErrors, details).
		Errorf("validation failed: %s", strings.Join(details, "; "))
}

// BadRequest reports a single rejected input with its own message.
func BadRequest(message string) error {
	return oops.Code(CodeValidation).With(keyMessage, message).New(message)
}

func Conflict(message string) error {
	return oops.Code(CodeConflict).With(keyMessage, message).New(message)
}

func Unauthenticated(message string) error {
	return oops.Code(CodeUnauthenticated).With(keyMessage, message).New(message)
}

func Forbidden(message string) error {
	return oops.Code(CodeForbidden).With(keyMessage, message).New(message)
}

func NotFound(message string) error {
	return oops.Code(CodeNotFound).With(keyMessage, message).New(message)
}

func RateLimited(message string) error {
	return oops.Code(CodeRateLimited).With(keyMessage, message).New(message)
}

// Internal wraps an unexpected failure. message is the generic text shown to
// the client; the cause is only logged. Errors that already carry a code are
// returned unchanged.
func Internal(err error, message string) error {
	if message == "" {
		message = DefaultInternalMessage
	}
	b := oops.Code(CodeInternal).With(keyMessage, message)
	if err == nil {
		return b.New(message)
	}
	if _, ok := oops.AsOops(err); ok {
		return err
	}
	return b.Wrap(err)
}

// Code returns the taxonomy code of err, or CodeInternal for foreign errors.
func Code(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return CodeInternal
	}
	code, ok := oopsErr.Code().(string)
	if !ok || code == "" {
		return CodeInternal
	}
	return code
}

// Is reports whether err carries the given code.
func Is(err error, code string) bool {
	return err != nil && Code(err) == code
}

// HTTPStatus maps err to a response status code.
func HTTPStatus(err error) int {
	switch Code(err) {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeConflict:
		return http.StatusConflict
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the client-facing message of err.
func Message(err error) string {
	if oopsErr, ok := oops.AsOops(err); ok {
		if msg, ok := oopsErr.Context()[keyMessage].(string); ok && msg != "" {
			return msg
		}
	}
	return DefaultInternalMessage
}

// Details returns the itemized validation messages of err, if any.
func Details(err error) []string {
	if oopsErr, ok := oops.AsOops(err); ok {
		if details, ok := oopsErr.Context()[keyErrors].([]string); ok {
			return details
		}
	}
	return nil
}
