package batch

import (
	"errors"
	"fmt"
)

// ErrorCode classifies batch file errors.
type ErrorCode string

// Error codes.
const (
	ErrCodeRead    ErrorCode = "BATCH_READ_FAILURE"
	ErrCodeParse   ErrorCode = "BATCH_PARSE_FAILURE"
	ErrCodeInvalid ErrorCode = "BATCH_INVALID"
	ErrCodeEntry   ErrorCode = "BATCH_ENTRY_FAILURE"
)

// Sentinels for errors.Is. They match any *Error with the same code.
var (
	ErrRead    = &Error{Code: ErrCodeRead}
	ErrParse   = &Error{Code: ErrCodeParse}
	ErrInvalid = &Error{Code: ErrCodeInvalid}
	ErrEntry   = &Error{Code: ErrCodeEntry}
)

// Error is returned when a batch file cannot be loaded, validated or built.
type Error struct {
	Code    ErrorCode
	Path    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Path)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
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

// NewError creates a new batch error.
func NewError(code ErrorCode, path, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Path:    path,
		Message: message,
		Cause:   cause,
	}
}
