package runner

import (
	"errors"
	"fmt"
)

// ErrorCode classifies runner setup errors.
type ErrorCode string

// Error codes.
const (
	ErrCodeProgramNotFound     ErrorCode = "PROGRAM_NOT_FOUND"
	ErrCodeInterpreterNotFound ErrorCode = "INTERPRETER_NOT_FOUND"
	ErrCodeDirNotFound         ErrorCode = "DIR_NOT_FOUND"
	ErrCodeResourceSetup       ErrorCode = "RESOURCE_SETUP_FAILURE"
	ErrCodeEscape              ErrorCode = "ESCAPING_FAILURE"
)

// Sentinels for errors.Is. They match any *Error with the same code.
var (
	ErrProgramNotFound     = &Error{Code: ErrCodeProgramNotFound}
	ErrInterpreterNotFound = &Error{Code: ErrCodeInterpreterNotFound}
	ErrDirNotFound         = &Error{Code: ErrCodeDirNotFound}
	ErrResourceSetup       = &Error{Code: ErrCodeResourceSetup}
	ErrEscape              = &Error{Code: ErrCodeEscape}
)

// Error is returned when a runner cannot be set up or a process cannot be added.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
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

// NewError creates a new runner error.
func NewError(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}
