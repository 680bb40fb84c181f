package common

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes used across the checkout gateway.
const (
	CodeValidation          = "VALIDATION"
	CodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	CodeUpstreamMalformed   = "UPSTREAM_MALFORMED"
)

// AppError represents an error with an attached code and HTTP status.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap allows errors.Is/As to inspect the underlying error.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// NewValidationError reports a local pre-flight failure. Validation errors
// never reach the network.
func NewValidationError(message string) *AppError {
	return &AppError{Code: CodeValidation, Message: message, HTTPStatus: http.StatusUnprocessableEntity}
}

// NewRemoteCallError reports a transport or HTTP-level failure from an
// upstream collaborator.
func NewRemoteCallError(target string, err error) *AppError {
	return &AppError{
		Code:       CodeUpstreamUnavailable,
		Message:    fmt.Sprintf("%s unavailable", target),
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

// NewMalformedResponseError reports a 200-level upstream response whose body
// lacks the expected fields.
func NewMalformedResponseError(target, detail string) *AppError {
	return &AppError{
		Code:       CodeUpstreamMalformed,
		Message:    fmt.Sprintf("%s returned an unexpected response: %s", target, detail),
		HTTPStatus: http.StatusBadGateway,
	}
}

// IsValidation reports whether the error is a local validation failure.
func IsValidation(err error) bool { return hasCode(err, CodeValidation) }

// IsRemoteCall reports whether the error is an upstream transport failure.
func IsRemoteCall(err error) bool { return hasCode(err, CodeUpstreamUnavailable) }

// IsMalformedResponse reports whether the error is an upstream contract failure.
func IsMalformedResponse(err error) bool { return hasCode(err, CodeUpstreamMalformed) }

func hasCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
