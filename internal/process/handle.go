package process

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"
)

const (
	// drainChunk is the read size for one syscall.
	drainChunk = 64 * 1024
	// drainLimit caps the bytes taken from one pipe in one pass, so a child
	// that writes continuously cannot starve its siblings.
	drainLimit = 4 * 1024 * 1024
)

// drainer takes the currently available bytes from a child's output stream.
type drainer interface {
	// drain appends available bytes to buf without waiting for more.
	drain(buf *bytes.Buffer) (int, error)
	// finish appends what is left once the child has exited.
	finish(buf *bytes.Buffer) (int, error)
	close() error
}

// Handle is the live state of one launched process. It is owned by the
// Pool and only touched from the Pool's control flow.
type Handle struct {
	id        string
	spec      LaunchSpec
	child     Child
	stdout    drainer
	stderr    *os.File
	stdoutBuf bytes.Buffer
	stderrBuf bytes.Buffer
	files     []string
	startedAt time.Time
}

// launch creates the stderr capture file and the stdout pipe, then starts
// the process. Everything created here is released if the spawn fails.
func launch(spawner Spawner, spec LaunchSpec, tempDir string) (h *Handle, err error) {
	errFile, err := os.CreateTemp(tempDir, "multirunner-stderr-*")
	if err != nil {
		return nil, fmt.Errorf("creating stderr file: %w", err)
	}
	errPath := errFile.Name()
	_ = errFile.Close()

	var cleanup []func()
	defer func() {
		if err != nil {
			for i := len(cleanup) - 1; i >= 0; i-- {
				cleanup[i]()
			}
		}
	}()
	cleanup = append(cleanup, func() { _ = os.Remove(errPath) })

	childErr, err := os.OpenFile(errPath, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return nil, fmt.Errorf("opening stderr file for the child: %w", err)
	}
	defer childErr.Close()

	parentErr, err := os.Open(errPath)
	if err != nil {
		return nil, fmt.Errorf("opening stderr file for reading: %w", err)
	}
	cleanup = append(cleanup, func() { _ = parentErr.Close() })

	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdout pipe: %w", err)
	}
	defer pw.Close()
	cleanup = append(cleanup, func() { _ = pr.Close() })

	stdout, err := newPipeDrainer(pr)
	if err != nil {
		return nil, fmt.Errorf("preparing stdout pipe: %w", err)
	}

	child, err := spawner.Spawn(spec, pw, childErr)
	if err != nil {
		return nil, err
	}

	return &Handle{
		id:        spec.ID,
		spec:      spec,
		child:     child,
		stdout:    stdout,
		stderr:    parentErr,
		files:     []string{errPath},
		startedAt: time.Now(),
	}, nil
}

// ID returns the process id.
func (h *Handle) ID() string { return h.id }

// Pid returns the OS process id.
func (h *Handle) Pid() int { return h.child.Pid() }

// drain appends currently available stdout and stderr bytes to the buffers.
// It returns the number of bytes taken.
func (h *Handle) drain() (int, error) {
	n, err := h.stdout.drain(&h.stdoutBuf)
	if err != nil {
		return n, fmt.Errorf("reading stdout of %s: %w", h.id, err)
	}
	m, err := h.stderrBuf.ReadFrom(h.stderr)
	if err != nil {
		return n + int(m), fmt.Errorf("reading stderr of %s: %w", h.id, err)
	}
	return n + int(m), nil
}

// finalize collects the last output of an exited process, releases its
// resources and returns its result. exitCode is the code seen by the
// liveness query; -1 is resolved through Reap. The result is valid even
// when an error is returned.
func (h *Handle) finalize(exitCode int) (Result, error) {
	_, outErr := h.stdout.finish(&h.stdoutBuf)
	_, errErr := h.stderrBuf.ReadFrom(h.stderr)

	reaped := h.child.Reap()
	if exitCode == -1 {
		exitCode = reaped
	}
	relErr := h.release()

	res := Result{
		ExitCode: exitCode,
		Stdout:   bytes.Clone(h.stdoutBuf.Bytes()),
		Stderr:   bytes.Clone(h.stderrBuf.Bytes()),
	}
	return res, errors.Join(outErr, errErr, relErr)
}

// abandon kills and reaps a process whose result nobody will read.
func (h *Handle) abandon() error {
	killErr := h.child.Kill()
	h.child.Reap()
	return errors.Join(killErr, h.release())
}

// release closes the output channels and removes auxiliary files.
// Files that are already gone are not an error.
func (h *Handle) release() error {
	var errs []error
	if err := h.stdout.close(); err != nil && !errors.Is(err, os.ErrClosed) {
		errs = append(errs, err)
	}
	if err := h.stderr.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		errs = append(errs, err)
	}
	for _, f := range h.files {
		if err := os.Remove(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	h.files = nil
	return errors.Join(errs...)
}
