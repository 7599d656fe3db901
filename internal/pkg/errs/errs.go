/*
Package errs provides custom error types and application-level error code constants.

This file defines CustomError, which carries a business code, a client-facing message and
an HTTP status, and classifies codes into the error kinds the dispatcher reports on.
*/
package errs

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"originchats/internal/pkg/logx"
)

// Kind groups error codes by how the dispatcher reports them.
type Kind int

const (
	KindInternal Kind = iota
	KindProtocol
	KindValidation
	KindState
	KindAuth
	KindPermission
)

// CustomError is the error type returned by every handler and domain operation that
// a client is expected to see.
type CustomError struct {
	// Code is the business error code (see constants definition).
	Code int

	// Message is the client-facing description.
	Message string

	// Status is the HTTP status used when the error is reported over plain HTTP.
	Status int
}

// Error implements the error interface.
func (e CustomError) Error() string {
	return fmt.Sprintf("Error Code %d (HTTP %d): %s", e.Code, e.Status, e.Message)
}

// Kind classifies the error by code range.
func (e CustomError) Kind() Kind {
	switch {
	case e.Code == ErrInvalidFormat, e.Code == ErrUnknownCommand,
		e.Code == ErrAlreadyAuthenticated, e.Code == ErrRateLimitExceeded:
		return KindProtocol
	case e.Code >= 1000 && e.Code < 2000:
		return KindValidation
	case e.Code >= 2000 && e.Code < 3000:
		return KindState
	case e.Code >= 3000 && e.Code < 3100:
		return KindAuth
	case e.Code >= 3100 && e.Code < 4000:
		return KindPermission
	default:
		return KindInternal
	}
}

// Is reports whether target is a CustomError with the same code.
func (e CustomError) Is(target error) bool {
	var other *CustomError
	if errors.As(target, &other) {
		return other.Code == e.Code
	}
	return false
}

// NewError builds a *CustomError from a predefined code.
// Details are printf arguments for templates that contain a verb. For ErrUnknown the
// first detail may be the underlying error, which is logged and never shown to clients.
func NewError(code int, details ...any) *CustomError {
	templateErr, ok := errorMap[code]

	if !ok {
		logx.Error(
			fmt.Errorf("attempted to create an error with an unknown code in errorMap"),
			"Unknown error code requested",
			"requested_code", code,
		)

		unknownErr := errorMap[ErrUnknown]
		return &unknownErr
	}

	customErr := templateErr

	if customErr.Status == 0 {
		customErr.Status = http.StatusOK
	}

	switch {
	case code == ErrUnknown:
		if len(details) > 0 {
			if originalErr, ok := details[0].(error); ok {
				logx.Error(originalErr, "Handling ErrUnknown with underlying error")
			}
		}
	case strings.Contains(customErr.Message, "%"):
		if len(details) == 0 {
			details = []any{"?"}
		}
		customErr.Message = fmt.Sprintf(customErr.Message, details...)
	case len(details) > 0:
		logx.Warn(
			"Details provided for error, but message template has no formatting placeholders. Details ignored.",
			"code", code,
		)
	}

	return &customErr
}

// Internal wraps an unexpected error as ErrUnknown, logging the cause.
// A *CustomError passes through unchanged.
func Internal(err error) *CustomError {
	var customErr *CustomError
	if errors.As(err, &customErr) {
		return customErr
	}
	return NewError(ErrUnknown, err)
}

// CodeOf returns the business code carried by err, or 0 when err is not a CustomError.
func CodeOf(err error) int {
	var customErr *CustomError
	if errors.As(err, &customErr) {
		return customErr.Code
	}
	return 0
}
