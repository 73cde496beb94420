// Package apperr defines the error taxonomy shared by services and
// handlers. Services return *Error values; handlers translate the Code to
// an HTTP status and a short JSON message.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

type Code string

const (
	CodeUnauthorized    Code = "UNAUTHORIZED"
	CodeForbidden       Code = "FORBIDDEN"
	CodeNotFound        Code = "NOT_FOUND"
	CodeInvalidInput    Code = "INVALID_INPUT"
	CodeCooldown        Code = "COOLDOWN"
	CodeConflict        Code = "CONFLICT"
	CodeUpstreamFailure Code = "UPSTREAM_FAILURE"
	CodeNotImplemented  Code = "NOT_IMPLEMENTED"
	CodeInternal        Code = "INTERNAL"
)

func (c Code) HTTPStatus() int {
	switch c {
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInvalidInput:
		return http.StatusBadRequest
	case CodeCooldown:
		return http.StatusTooManyRequests
	case CodeConflict:
		return http.StatusConflict
	case CodeNotImplemented:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

type Error struct {
	Code       Code
	Message    string
	Details    any
	RetryAfter time.Duration
	cause      error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches any *Error carrying the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

func (e *Error) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

var (
	ErrUnauthorized   = &Error{Code: CodeUnauthorized, Message: "unauthorized"}
	ErrForbidden      = &Error{Code: CodeForbidden, Message: "forbidden"}
	ErrNotFound       = &Error{Code: CodeNotFound, Message: "not found"}
	ErrInvalidInput   = &Error{Code: CodeInvalidInput, Message: "invalid input"}
	ErrCooldown       = &Error{Code: CodeCooldown, Message: "cooldown"}
	ErrConflict       = &Error{Code: CodeConflict, Message: "conflict"}
	ErrUpstream       = &Error{Code: CodeUpstreamFailure, Message: "upstream failure"}
	ErrNotImplemented = &Error{Code: CodeNotImplemented, Message: "not implemented"}
)

func Unauthorized(msg string) *Error {
	return &Error{Code: CodeUnauthorized, Message: msg}
}

func Forbidden(msg string) *Error {
	return &Error{Code: CodeForbidden, Message: msg}
}

func NotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

func InvalidInput(msg string) *Error {
	return &Error{Code: CodeInvalidInput, Message: msg}
}

func InvalidInputf(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidInput, Message: fmt.Sprintf(format, args...)}
}

func InvalidInputWithDetails(msg string, details any) *Error {
	return &Error{Code: CodeInvalidInput, Message: msg, Details: details}
}

func Conflict(msg string) *Error {
	return &Error{Code: CodeConflict, Message: msg}
}

// Cooldown reports a throttled action. retryAfter is rounded up to whole
// seconds when written to the Retry-After header.
func Cooldown(retryAfter time.Duration) *Error {
	return &Error{
		Code:       CodeCooldown,
		Message:    "you are doing that too often, try again later",
		RetryAfter: retryAfter,
	}
}

func Upstream(msg string, cause error) *Error {
	return &Error{Code: CodeUpstreamFailure, Message: msg, cause: cause}
}

func NotImplemented(msg string) *Error {
	return &Error{Code: CodeNotImplemented, Message: msg}
}

func Internal(msg string, cause error) *Error {
	return &Error{Code: CodeInternal, Message: msg, cause: cause}
}

// CodeOf returns the Code of the first *Error in err's chain, or
// CodeInternal when err carries none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}
