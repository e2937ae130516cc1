package hub

import (
	"bytes"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// testTimeout bounds every blocking wait in the tests, so a broken hub
// fails fast instead of hanging the suite.
const testTimeout = 2 * time.Second

// client opens the follower side of a port the way serial test software
// would: raw mode so bytes pass through unmodified, non-blocking so reads
// are driven by poll with a timeout instead of hanging a failed test.
type client struct {
	f  *os.File
	fd int
}

func openClient(t *testing.T, path string) *client {
	t.Helper()

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })

	fd := int(f.Fd())
	_, err = term.MakeRaw(fd)
	require.NoError(t, err)
	require.NoError(t, unix.SetNonblock(fd, true))

	return &client{f: f, fd: fd}
}

func (c *client) write(t *testing.T, data []byte) {
	t.Helper()
	n, err := unix.Write(c.fd, data)
	require.NoError(t, err)
	require.Equal(t, len(data), n)
}

// readWithTimeout returns the next chunk available on the client, or nil
// if nothing arrives before the timeout.
func (c *client) readWithTimeout(t *testing.T, timeout time.Duration) []byte {
	t.Helper()

	deadline := time.Now().Add(timeout)
	buf := make([]byte, 4096)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil
		}

		fds := []unix.PollFd{{Fd: int32(c.fd), Events: unix.POLLIN}}
		n, err := unix.Poll(fds, int(remaining.Milliseconds())+1)
		if err == unix.EINTR {
			continue
		}
		require.NoError(t, err)
		if n == 0 {
			return nil
		}

		rn, err := unix.Read(c.fd, buf)
		if err == unix.EAGAIN {
			continue
		}
		require.NoError(t, err)
		return buf[:rn]
	}
}

// syncBuffer is a bytes.Buffer safe for concurrent use: the forwarding
// loop writes debug lines while the test goroutine reads them back.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestHub(t *testing.T, cfg Config) *Hub {
	t.Helper()
	h, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h
}
