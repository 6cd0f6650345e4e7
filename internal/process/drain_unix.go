//go:build !windows

package process

import (
	"bytes"
	"errors"
	"os"
	"syscall"
)

// pipeDrainer reads whatever is buffered in the parent's end of a pipe
// without ever waiting for more. os.Pipe leaves that end in non-blocking
// mode, so a raw read returns EAGAIN when nothing is available.
type pipeDrainer struct {
	f     *os.File
	chunk []byte
	eof   bool
}

func newPipeDrainer(f *os.File) (drainer, error) {
	return &pipeDrainer{f: f, chunk: make([]byte, drainChunk)}, nil
}

func (d *pipeDrainer) drain(buf *bytes.Buffer) (int, error) {
	if d.eof {
		return 0, nil
	}
	rc, err := d.f.SyscallConn()
	if err != nil {
		return 0, err
	}

	total := 0
	for total < drainLimit {
		var n int
		var readErr error
		// Returning true tells the runtime not to wait for readiness.
		if err := rc.Read(func(fd uintptr) bool {
			n, readErr = syscall.Read(int(fd), d.chunk)
			return true
		}); err != nil {
			return total, err
		}

		switch {
		case errors.Is(readErr, syscall.EINTR):
			continue
		case errors.Is(readErr, syscall.EAGAIN):
			return total, nil
		case readErr != nil:
			return total, readErr
		case n == 0:
			d.eof = true
			return total, nil
		}
		buf.Write(d.chunk[:n])
		total += n
	}
	return total, nil
}

func (d *pipeDrainer) finish(buf *bytes.Buffer) (int, error) {
	return d.drain(buf)
}

func (d *pipeDrainer) close() error {
	return d.f.Close()
}
