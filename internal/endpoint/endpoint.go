package endpoint

import (
	"fmt"
	"os"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// Endpoint is one emulated serial port: a pseudo-terminal pair whose
// controller side carries hub I/O and whose follower path is handed out to
// clients.
type Endpoint struct {
	controller *os.File
	follower   *os.File
	fd         int
	path       string
	closed     bool
}

// Allocate requests a fresh pseudo-terminal pair from the OS and prepares
// the controller side for hub I/O.
//
// The controller is placed in raw mode and switched to non-blocking, so a
// read with nothing pending returns unix.EAGAIN instead of stalling. The
// follower stays open; closing it would make the controller report EIO
// whenever no client process has the device open.
func Allocate() (*Endpoint, error) {
	controller, follower, err := pty.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open pty pair: %w", err)
	}

	// Fd() switches the runtime poller off for this descriptor; that is
	// fine here because all subsequent I/O goes through unix.Read/Write.
	fd := int(controller.Fd())

	if _, err := term.MakeRaw(fd); err != nil {
		controller.Close()
		follower.Close()
		return nil, fmt.Errorf("failed to set raw mode on %s: %w", follower.Name(), err)
	}

	if err := unix.SetNonblock(fd, true); err != nil {
		controller.Close()
		follower.Close()
		return nil, fmt.Errorf("failed to set non-blocking mode on %s: %w", follower.Name(), err)
	}

	return &Endpoint{
		controller: controller,
		follower:   follower,
		fd:         fd,
		path:       follower.Name(),
	}, nil
}

// Read reads whatever bytes are currently queued on the controller side.
// With no data pending it returns unix.EAGAIN.
func (e *Endpoint) Read(p []byte) (int, error) {
	n, err := unix.Read(e.fd, p)
	if n < 0 {
		n = 0
	}
	return n, err
}

// Write writes p to the controller side. The descriptor is non-blocking, so
// a full kernel buffer yields a short write or unix.EAGAIN rather than
// blocking the caller.
func (e *Endpoint) Write(p []byte) (int, error) {
	n, err := unix.Write(e.fd, p)
	if n < 0 {
		n = 0
	}
	return n, err
}

// Close releases both sides of the pseudo-terminal pair. Calling Close more
// than once is a no-op.
func (e *Endpoint) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true

	err := e.controller.Close()
	if ferr := e.follower.Close(); err == nil {
		err = ferr
	}
	return err
}

// Path returns the OS-visible follower device path clients open to talk to
// this endpoint.
func (e *Endpoint) Path() string {
	return e.path
}

// Fd returns the controller descriptor used for readiness polling.
func (e *Endpoint) Fd() int {
	return e.fd
}
