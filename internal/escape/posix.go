package escape

import (
	"strings"
	"unicode/utf8"
)

// POSIX escapes for /bin/sh.
type POSIX struct{}

// Name implements Policy.
func (POSIX) Name() string { return "posix" }

// Arg implements Policy. The argument is wrapped in single quotes and every
// embedded single quote becomes '\''. NUL cannot be passed to exec and is rejected.
func (POSIX) Arg(arg string) (string, error) {
	if i := strings.IndexByte(arg, 0); i >= 0 {
		return "", &InvalidByteError{Offset: i, Value: 0}
	}
	return "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'", nil
}

// shellMetachars are backslash-escaped by Command.
const shellMetachars = "#&;`|*?~<>^()[]{}$\\\n\xFF"

// Command implements Policy. Shell metacharacters are prefixed with a
// backslash; quotes are escaped only when they have no matching partner.
func (POSIX) Command(cmd string) (string, error) {
	if !utf8.ValidString(strings.ReplaceAll(cmd, "\xFF", "")) {
		return "", &Error{Input: cmd, Cause: ErrInvalidUTF8}
	}

	var sb strings.Builder
	sb.Grow(len(cmd))
	open := -1 // offset of an unclosed quote, or -1

	for i := 0; i < len(cmd); i++ {
		c := cmd[i]
		switch {
		case c == '\'' || c == '"':
			switch {
			case open < 0 && strings.IndexByte(cmd[i+1:], c) >= 0:
				open = i
			case open >= 0 && cmd[open] == c:
				open = -1
			default:
				sb.WriteByte('\\')
			}
		case strings.IndexByte(shellMetachars, c) >= 0:
			sb.WriteByte('\\')
		}
		sb.WriteByte(c)
	}
	return sb.String(), nil
}
