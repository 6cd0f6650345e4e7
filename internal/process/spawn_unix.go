//go:build !windows

package process

import (
	"os"
	"os/exec"
	"syscall"
)

const shell = "/bin/sh"

// command runs the command line through /bin/sh in its own process group,
// so that killTree reaches whatever the shell started.
func command(commandLine string) (*exec.Cmd, error) {
	cmd := exec.Command(shell, "-c", commandLine)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	return cmd, nil
}

// detachedCommand backgrounds the command line inside the shell; the shell
// exits at once and the job is re-parented to init. The group keeps
// redirections written in the command line itself intact.
func detachedCommand(commandLine string) (*exec.Cmd, error) {
	cmd := exec.Command(shell, "-c", "{ "+commandLine+"\n} </dev/null >/dev/null 2>&1 &")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	return cmd, nil
}

// killTree sends SIGKILL to the child's process group.
func killTree(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return os.ErrProcessDone
	}
	if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil {
		return cmd.Process.Kill()
	}
	return nil
}

// exitStatus maps a wait result to an exit code. A child killed by a signal
// reports 128+signal, as a shell would.
func exitStatus(state *os.ProcessState, waitErr error) int {
	if state == nil {
		return exitCodeFromError(waitErr)
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return state.ExitCode()
}
