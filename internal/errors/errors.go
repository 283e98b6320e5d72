// Package errors defines the coded errors shared by the backend client, the
// services and both HTTP surfaces. Callers branch on the Code only:
//
//	if errors.Is(err, errors.ErrForbidden) {
//	    // not a librarian
//	}
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Is and As are the standard library functions, re-exported so callers
// need only one errors import.
var (
	Is = errors.Is
	As = errors.As
)

// Code is a machine-readable error kind.
type Code string

const (
	CodeNotFound           Code = "NOT_FOUND"
	CodeUnauthorized       Code = "UNAUTHORIZED"
	CodeForbidden          Code = "FORBIDDEN"
	CodeValidation         Code = "VALIDATION"
	CodeConflict           Code = "CONFLICT"
	CodeInvalidCredentials Code = "INVALID_CREDENTIALS"
	CodeSessionExpired     Code = "SESSION_EXPIRED"
	CodeRateLimited        Code = "RATE_LIMITED"
	CodeBusy               Code = "BUSY"
	CodeBackend            Code = "BACKEND"
	CodeInternal           Code = "INTERNAL"
)

var statusOfCode = map[Code]int{
	CodeNotFound:           http.StatusNotFound,
	CodeUnauthorized:       http.StatusUnauthorized,
	CodeInvalidCredentials: http.StatusUnauthorized,
	CodeSessionExpired:     http.StatusUnauthorized,
	CodeForbidden:          http.StatusForbidden,
	CodeValidation:         http.StatusBadRequest,
	CodeConflict:           http.StatusConflict,
	CodeBusy:               http.StatusConflict,
	CodeRateLimited:        http.StatusTooManyRequests,
	CodeBackend:            http.StatusBadGateway,
}

var codeOfStatus = map[int]Code{
	http.StatusBadRequest:          CodeValidation,
	http.StatusUnprocessableEntity: CodeValidation,
	http.StatusUnauthorized:        CodeUnauthorized,
	http.StatusForbidden:           CodeForbidden,
	http.StatusNotFound:            CodeNotFound,
	http.StatusConflict:            CodeConflict,
	http.StatusTooManyRequests:     CodeRateLimited,
}

// HTTPStatus is the status a response carrying c should use.
func (c Code) HTTPStatus() int {
	if status, ok := statusOfCode[c]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// CodeForStatus maps an upstream HTTP status onto a Code. Statuses with no
// dedicated code are CodeBackend.
func CodeForStatus(status int) Code {
	if code, ok := codeOfStatus[status]; ok {
		return code
	}
	return CodeBackend
}

// Error is a coded error. Details, when set, is shown to API clients.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	cause   error
}

func (e *Error) Error() string {
	if e.cause == nil {
		return e.Message
	}
	return e.Message + ": " + e.cause.Error()
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches any *Error with the same Code, so the Err sentinels work with
// errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// HTTPStatus is e.Code.HTTPStatus.
func (e *Error) HTTPStatus() int { return e.Code.HTTPStatus() }

// Sentinels for errors.Is.
var (
	ErrNotFound           = &Error{Code: CodeNotFound, Message: "not found"}
	ErrUnauthorized       = &Error{Code: CodeUnauthorized, Message: "unauthorized"}
	ErrForbidden          = &Error{Code: CodeForbidden, Message: "forbidden"}
	ErrValidation         = &Error{Code: CodeValidation, Message: "validation error"}
	ErrConflict           = &Error{Code: CodeConflict, Message: "conflict"}
	ErrInvalidCredentials = &Error{Code: CodeInvalidCredentials, Message: "invalid credentials"}
	ErrSessionExpired     = &Error{Code: CodeSessionExpired, Message: "session expired"}
	ErrRateLimited        = &Error{Code: CodeRateLimited, Message: "too many requests"}
	ErrBusy               = &Error{Code: CodeBusy, Message: "operation already in progress"}
	ErrBackend            = &Error{Code: CodeBackend, Message: "backend error"}
	ErrInternal           = &Error{Code: CodeInternal, Message: "internal error"}
)

func coded(code Code) func(string) *Error {
	return func(msg string) *Error { return &Error{Code: code, Message: msg} }
}

// Constructors for each code a caller raises directly.
var (
	NotFound           = coded(CodeNotFound)
	Unauthorized       = coded(CodeUnauthorized)
	Forbidden          = coded(CodeForbidden)
	Validation         = coded(CodeValidation)
	Conflict           = coded(CodeConflict)
	InvalidCredentials = coded(CodeInvalidCredentials)
	Backend            = coded(CodeBackend)
	Internal           = coded(CodeInternal)
)

func NotFoundf(format string, args ...any) *Error {
	return NotFound(fmt.Sprintf(format, args...))
}

func Validationf(format string, args ...any) *Error {
	return Validation(fmt.Sprintf(format, args...))
}

// ValidationWithDetails carries per-field messages in Details.
func ValidationWithDetails(msg string, details any) *Error {
	return &Error{Code: CodeValidation, Message: msg, Details: details}
}

// Wrap gives err a code and a message.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, cause: err}
}

func Wrapf(err error, code Code, format string, args ...any) *Error {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// CodeOf is the Code of the outermost *Error in err's chain, or
// CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// MessageOf is the Message of the outermost *Error in err's chain, or
// err.Error().
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
