package escape

import (
	"errors"
	"fmt"
)

// ErrInvalidUTF8 is returned when an argument is not valid UTF-8 text.
var ErrInvalidUTF8 = errors.New("invalid UTF-8 string")

// InvalidByteError reports a byte that cannot be passed through a command line.
type InvalidByteError struct {
	Offset int
	Value  byte
}

func (e *InvalidByteError) Error() string {
	return fmt.Sprintf("invalid byte at offset %d: 0x%02X", e.Offset, e.Value)
}

// Error is a generic escaping failure.
type Error struct {
	Input string
	Cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("escaping %q: %v", e.Input, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}
