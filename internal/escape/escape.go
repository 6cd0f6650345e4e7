// Package escape turns a program and its arguments into a single command line
// that the target platform's process loader splits back into the original
// argument vector.
//
// Two policies exist:
//
//   - POSIX wraps every token in single quotes. Process creation on these
//     platforms goes through /bin/sh, so the line must survive the shell.
//   - Windows follows the C runtime argv rules used by CreateProcess children.
//     No shell is involved, so shell metacharacters need no escaping but
//     quotes and backslash runs do.
//
// Use [Default] to get the policy of the running platform, or [ForGOOS] to
// build command lines for another one.
package escape

import (
	"runtime"
	"strings"
)

// Policy escapes arguments and whole command lines for one platform family.
type Policy interface {
	// Name returns a short identifier, "posix" or "windows".
	Name() string

	// Arg escapes a single argument so it reaches the child unchanged.
	Arg(arg string) (string, error)

	// Command escapes an assembled command line for direct submission to
	// the platform's command interpreter.
	Command(cmd string) (string, error)
}

// Default returns the policy for the running platform.
func Default() Policy {
	return ForGOOS(runtime.GOOS)
}

// ForGOOS returns the policy for a GOOS value.
func ForGOOS(goos string) Policy {
	if goos == "windows" {
		return Windows{}
	}
	return POSIX{}
}

// ByName returns the policy with the given Name.
func ByName(name string) (Policy, bool) {
	switch strings.ToLower(name) {
	case "posix", "unix", "linux", "darwin":
		return POSIX{}, true
	case "windows", "win32":
		return Windows{}, true
	default:
		return nil, false
	}
}

// cmdInterpreter is the shorthand of the Windows command interpreter.
const cmdInterpreter = "cmd"

// groupsScriptArgs reports whether the interpreter needs the script path
// and its arguments wrapped in one extra pair of double quotes.
// cmd /c regroups quoted arguments otherwise.
func groupsScriptArgs(interpreter string) bool {
	return strings.EqualFold(interpreter, cmdInterpreter)
}

// ScriptExtension returns the file extension a script needs so that the
// interpreter accepts it. Only cmd cares.
func ScriptExtension(interpreter string) string {
	if groupsScriptArgs(interpreter) {
		return ".cmd"
	}
	return ""
}

// CommandLine assembles program, programArgs, script and scriptArgs into
// one escaped command line. An empty script means a plain program call and
// scriptArgs are ignored.
func CommandLine(p Policy, program string, programArgs []string, script string, scriptArgs []string) (string, error) {
	var sb strings.Builder

	tok, err := p.Arg(program)
	if err != nil {
		return "", err
	}
	sb.WriteString(tok)

	if err := appendArgs(&sb, p, programArgs); err != nil {
		return "", err
	}

	if script == "" {
		return sb.String(), nil
	}

	quote := ""
	if groupsScriptArgs(program) {
		quote = `"`
		sb.WriteString(" ")
		sb.WriteString(quote)
	}

	if err := appendArgs(&sb, p, []string{script}); err != nil {
		return "", err
	}
	if err := appendArgs(&sb, p, scriptArgs); err != nil {
		return "", err
	}
	sb.WriteString(quote)

	return sb.String(), nil
}

func appendArgs(sb *strings.Builder, p Policy, args []string) error {
	for _, arg := range args {
		tok, err := p.Arg(arg)
		if err != nil {
			return err
		}
		sb.WriteByte(' ')
		sb.WriteString(tok)
	}
	return nil
}
