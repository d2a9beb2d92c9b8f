package fifo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/ardnew/usblog/pkg"
)

// pipe is a FIFO opened non-blocking whose reads and writes go straight to
// the file descriptor. The callbacks are bound once so interrupt-context I/O
// does not allocate.
type pipe struct {
	f  *os.File
	rc syscall.RawConn

	buf []byte
	n   int
	err error

	readFn  func(fd uintptr) bool
	writeFn func(fd uintptr) bool
}

func openPipe(path string) (*pipe, error) {
	// O_RDWR keeps the FIFO open without a peer, so neither open nor I/O
	// waits for the host.
	f, err := os.OpenFile(path, os.O_RDWR|syscall.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	rc, err := f.SyscallConn()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("raw conn %s: %w", filepath.Base(path), err)
	}
	p := &pipe{f: f, rc: rc}
	p.readFn = func(fd uintptr) bool {
		p.n, p.err = syscall.Read(int(fd), p.buf)
		return true
	}
	p.writeFn = func(fd uintptr) bool {
		p.n, p.err = syscall.Write(int(fd), p.buf)
		return true
	}
	return p, nil
}

// read performs one non-blocking read. An empty pipe reports
// [pkg.ErrWouldBlock].
func (p *pipe) read(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}
	p.buf = b
	err := p.rc.Read(p.readFn)
	p.buf = nil
	return p.result(err)
}

// write performs one non-blocking write, which may be partial. A full pipe
// reports [pkg.ErrWouldBlock].
func (p *pipe) write(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}
	p.buf = b
	err := p.rc.Write(p.writeFn)
	p.buf = nil
	return p.result(err)
}

func (p *pipe) result(err error) (int, error) {
	if err != nil {
		return 0, err
	}
	n, err := p.n, p.err
	if n < 0 {
		n = 0
	}
	if errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EINTR) {
		return n, pkg.ErrWouldBlock
	}
	return n, err
}

// writeAll writes b, retrying partial writes. It gives up with
// [pkg.ErrWouldBlock] if the pipe stays full.
func (p *pipe) writeAll(b []byte) error {
	for spins := 0; len(b) > 0; {
		n, err := p.write(b)
		b = b[n:]
		switch {
		case err == nil:
		case errors.Is(err, pkg.ErrWouldBlock) && n > 0:
		case errors.Is(err, pkg.ErrWouldBlock):
			if spins++; spins > maxWriteSpins {
				return err
			}
		default:
			return err
		}
	}
	return nil
}

// maxWriteSpins bounds how often writeAll retries a full pipe.
const maxWriteSpins = 64

func (p *pipe) close() error {
	return p.f.Close()
}

func createFIFO(dir, name string) error {
	path := filepath.Join(dir, name)
	os.Remove(path)
	if err := syscall.Mkfifo(path, 0o666); err != nil {
		return fmt.Errorf("mkfifo %s: %w", name, err)
	}
	return nil
}
