package escape

import (
	"strings"
	"unicode/utf8"
)

// Windows escapes for processes created without a shell, whose command line
// is split by the C runtime argv parser.
type Windows struct{}

// Name implements Policy.
func (Windows) Name() string { return "windows" }

// Arg implements Policy.
//
// Rules:
//   - an empty argument becomes "".
//   - a double quote becomes \" and forces quoting.
//   - a space or tab forces quoting.
//   - a run of backslashes followed by a quote or by the end of the argument
//     is doubled, so the closing quote is not escaped away.
//   - other control bytes are rejected.
//
// Arguments that need no quoting are returned unchanged.
func (Windows) Arg(arg string) (string, error) {
	if arg == "" {
		return `""`, nil
	}
	if !utf8.ValidString(arg) {
		return "", ErrInvalidUTF8
	}

	var sb strings.Builder
	sb.Grow(len(arg) + 2)
	quote := false

	for i := 0; i < len(arg); {
		c := arg[i]
		switch {
		case c == '\\':
			j := i
			for j < len(arg) && arg[j] == '\\' {
				j++
			}
			run := arg[i:j]
			if j == len(arg) || arg[j] == '"' {
				sb.WriteString(run)
			}
			sb.WriteString(run)
			i = j
			continue
		case c == '"':
			sb.WriteString(`\"`)
			quote = true
		case c == ' ' || c == '\t':
			sb.WriteByte(c)
			quote = true
		case c < 0x20 || c == 0x7F:
			return "", &InvalidByteError{Offset: i, Value: c}
		default:
			sb.WriteByte(c)
		}
		i++
	}

	if !quote {
		return arg, nil
	}
	return `"` + sb.String() + `"`, nil
}

// cmdMetachars are the characters cmd.exe interprets; each is prefixed with a caret.
const cmdMetachars = `()%!^"<>&|`

// Command implements Policy for cmd.exe.
func (Windows) Command(cmd string) (string, error) {
	if !utf8.ValidString(cmd) {
		return "", &Error{Input: cmd, Cause: ErrInvalidUTF8}
	}
	var sb strings.Builder
	sb.Grow(len(cmd))
	for _, r := range cmd {
		if strings.ContainsRune(cmdMetachars, r) {
			sb.WriteByte('^')
		}
		sb.WriteRune(r)
	}
	return sb.String(), nil
}
