//go:build windows

package process

import (
	"bytes"
	"errors"
	"io"
	"os"
	"sync"
	"time"
)

// finishWait bounds how long finish waits for the pump to see EOF.
const finishWait = 250 * time.Millisecond

// pumpDrainer copies an anonymous pipe into a locked buffer from a single
// goroutine. Windows anonymous pipes support neither overlapped I/O nor read
// deadlines, so a raw non-blocking read is not available.
type pumpDrainer struct {
	f    *os.File
	mu   sync.Mutex
	buf  bytes.Buffer
	err  error
	done chan struct{}
}

func newPipeDrainer(f *os.File) (drainer, error) {
	d := &pumpDrainer{f: f, done: make(chan struct{})}
	go d.pump()
	return d, nil
}

func (d *pumpDrainer) pump() {
	defer close(d.done)
	chunk := make([]byte, drainChunk)
	for {
		n, err := d.f.Read(chunk)
		d.mu.Lock()
		d.buf.Write(chunk[:n])
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
			d.err = err
		}
		d.mu.Unlock()
		if err != nil {
			return
		}
	}
}

func (d *pumpDrainer) drain(buf *bytes.Buffer) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, _ := buf.Write(d.buf.Bytes())
	d.buf.Reset()
	return n, d.err
}

func (d *pumpDrainer) finish(buf *bytes.Buffer) (int, error) {
	select {
	case <-d.done:
	case <-time.After(finishWait):
	}
	return d.drain(buf)
}

// close does not wait for the pump: a read blocked on a pipe still held by a
// grandchild is not interrupted by closing the handle.
func (d *pumpDrainer) close() error {
	return d.f.Close()
}
