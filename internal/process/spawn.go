package process

import (
	"errors"
	"os"
	"os/exec"
	"sync"
)

// Child is a launched OS process as seen by the pool.
type Child interface {
	// Pid returns the OS process id.
	Pid() int

	// Exited reports whether the process has terminated. It never blocks.
	// The exit code is -1 while running or when not yet known.
	Exited() (exited bool, exitCode int)

	// Kill forcibly terminates the process. Killing an exited process is not an error.
	Kill() error

	// Reap waits for the process to be gone, releases its OS resources and
	// returns its exit code. Call it only after Exited reported true or after Kill.
	Reap() int
}

// Spawner is the process creation capability used by a Pool.
type Spawner interface {
	// Spawn starts spec with stdout and stderr attached to the given files
	// and stdin attached to the null device.
	Spawn(spec LaunchSpec, stdout, stderr *os.File) (Child, error)

	// Detach starts spec with all output discarded and returns as soon as
	// the process is launched. The process is never observed again.
	Detach(spec LaunchSpec) error
}

// OSSpawner starts real processes. On POSIX the command line is run by
// /bin/sh; on Windows it is handed to CreateProcess as is.
type OSSpawner struct{}

// Spawn implements Spawner.
func (OSSpawner) Spawn(spec LaunchSpec, stdout, stderr *os.File) (Child, error) {
	cmd, err := command(spec.CommandLine)
	if err != nil {
		return nil, err
	}
	cmd.Dir = spec.Dir
	cmd.Env = envList(spec.Env)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	c := &osChild{cmd: cmd, done: make(chan struct{})}
	go c.wait()
	return c, nil
}

// Detach implements Spawner.
func (OSSpawner) Detach(spec LaunchSpec) error {
	cmd, err := detachedCommand(spec.CommandLine)
	if err != nil {
		return err
	}
	cmd.Dir = spec.Dir
	cmd.Env = envList(spec.Env)
	// The launcher itself returns immediately; the real process outlives it.
	return cmd.Run()
}

// osChild tracks an exec.Cmd. A goroutine blocks in Wait so that Exited can
// answer without blocking.
type osChild struct {
	cmd      *exec.Cmd
	done     chan struct{}
	waitErr  error
	reapOnce sync.Once
	code     int
}

func (c *osChild) wait() {
	c.waitErr = c.cmd.Wait()
	close(c.done)
}

func (c *osChild) Pid() int {
	return c.cmd.Process.Pid
}

func (c *osChild) Exited() (bool, int) {
	select {
	case <-c.done:
		return true, exitStatus(c.cmd.ProcessState, c.waitErr)
	default:
		return false, -1
	}
}

func (c *osChild) Kill() error {
	select {
	case <-c.done:
		return nil
	default:
	}
	err := killTree(c.cmd)
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

func (c *osChild) Reap() int {
	c.reapOnce.Do(func() {
		<-c.done
		c.code = exitStatus(c.cmd.ProcessState, c.waitErr)
	})
	return c.code
}

// exitCodeFromError extracts exit code from process error.
// Returns 0 for nil error, the exit code for ExitError, or 1 for other errors.
func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 1
}
