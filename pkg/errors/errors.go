package errors

import (
	"errors"
	"fmt"
)

// ErrorCode classifies application errors for callers that need to
// branch on failure kind without string matching.
type ErrorCode string

const (
	CodeInvalidInput   ErrorCode = "INVALID_INPUT"
	CodeInvalidState   ErrorCode = "INVALID_STATE"
	CodeNotFound       ErrorCode = "NOT_FOUND"
	CodeAlreadyExists  ErrorCode = "ALREADY_EXISTS"
	CodeInternal       ErrorCode = "INTERNAL_ERROR"
	CodeServiceUnavail ErrorCode = "SERVICE_UNAVAILABLE"
)

// AppError carries a code, a human-readable message, and an optional cause.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewInvalidInputError builds an INVALID_INPUT error.
func NewInvalidInputError(message string) *AppError {
	return &AppError{Code: CodeInvalidInput, Message: message}
}

// NewInvalidStateError builds an INVALID_STATE error, used when an
// operation is attempted from a lifecycle state that forbids it.
func NewInvalidStateError(message string) *AppError {
	return &AppError{Code: CodeInvalidState, Message: message}
}

// NewNotFoundError builds a NOT_FOUND error.
func NewNotFoundError(message string) *AppError {
	return &AppError{Code: CodeNotFound, Message: message}
}

// NewInternalError builds an INTERNAL_ERROR error.
func NewInternalError(message string) *AppError {
	return &AppError{Code: CodeInternal, Message: message}
}

// NewInternalErrorWithCause builds an INTERNAL_ERROR wrapping a cause.
func NewInternalErrorWithCause(message string, cause error) *AppError {
	return &AppError{Code: CodeInternal, Message: message, Err: cause}
}

// NewServiceUnavailableError builds a SERVICE_UNAVAILABLE error.
func NewServiceUnavailableError(message string) *AppError {
	return &AppError{Code: CodeServiceUnavail, Message: message}
}

// IsNotFound reports whether err is a NOT_FOUND AppError.
func IsNotFound(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == CodeNotFound
	}
	return false
}

// IsInvalidInput reports whether err is an INVALID_INPUT AppError.
func IsInvalidInput(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == CodeInvalidInput
	}
	return false
}

// IsInvalidState reports whether err is an INVALID_STATE AppError.
func IsInvalidState(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == CodeInvalidState
	}
	return false
}
