//go:build windows

package process

import (
	"errors"
	"os"
	"os/exec"
	"strings"
	"syscall"
)

// command hands the raw command line to CreateProcess, bypassing cmd.exe.
// The program path is taken from the first token so exec can resolve it.
func command(commandLine string) (*exec.Cmd, error) {
	program := firstToken(commandLine)
	if program == "" {
		return nil, errors.New("empty command line")
	}
	cmd := exec.Command(program)
	cmd.SysProcAttr = &syscall.SysProcAttr{CmdLine: commandLine}
	return cmd, nil
}

// detachedCommand uses cmd's start builtin to launch without waiting.
func detachedCommand(commandLine string) (*exec.Cmd, error) {
	cmd := exec.Command("cmd")
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CmdLine: `cmd /c start "" /B CALL ` + commandLine + ` 1>Nul 2>&1`,
	}
	return cmd, nil
}

// firstToken returns the program part of a command line built by escape.Windows.
func firstToken(commandLine string) string {
	s := strings.TrimLeft(commandLine, " \t")
	if strings.HasPrefix(s, `"`) {
		if end := strings.IndexByte(s[1:], '"'); end >= 0 {
			return s[1 : end+1]
		}
		return s[1:]
	}
	if end := strings.IndexAny(s, " \t"); end >= 0 {
		return s[:end]
	}
	return s
}

func killTree(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return os.ErrProcessDone
	}
	return cmd.Process.Kill()
}

func exitStatus(state *os.ProcessState, waitErr error) int {
	if state == nil {
		return exitCodeFromError(waitErr)
	}
	return state.ExitCode()
}
