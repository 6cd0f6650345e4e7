package process

import (
	"errors"
	"fmt"
)

// ErrorCode classifies pool errors.
type ErrorCode string

// Error codes.
const (
	ErrCodeLaunch          ErrorCode = "LAUNCH_FAILURE"
	ErrCodeTimeout         ErrorCode = "TIMEOUT_EXCEEDED"
	ErrCodeDuplicateID     ErrorCode = "DUPLICATE_ID"
	ErrCodeClosed          ErrorCode = "POOL_CLOSED"
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
)

// Sentinels for errors.Is. They match any *Error with the same code.
var (
	ErrLaunch          = &Error{Code: ErrCodeLaunch}
	ErrTimeout         = &Error{Code: ErrCodeTimeout}
	ErrDuplicateID     = &Error{Code: ErrCodeDuplicateID}
	ErrClosed          = &Error{Code: ErrCodeClosed}
	ErrInvalidArgument = &Error{Code: ErrCodeInvalidArgument}
)

// Error is returned by Pool operations.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches errors by code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewError creates a new pool error.
func NewError(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}
